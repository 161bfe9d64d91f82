// Package config resolves the backend configuration.
//
// Precedence, lowest to highest: built-in defaults, the optional YAML file,
// the process environment (optionally seeded from a dotenv file), and CLI
// flags applied by the caller after Load returns.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendStub        = "stub"
	BackendServe       = "serve"
	BackendCompletions = "completions"
	BackendOllama      = "ollama"

	StorageFS     = "fs"
	StorageSQLite = "sqlite"
)

// DefaultStopSequences terminate generation when the model starts a new turn.
var DefaultStopSequences = []string{"\nSystem:", "\nUser:"}

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Engine       EngineConfig       `yaml:"engine"`
	Sampling     SamplingConfig     `yaml:"sampling"`
	Storage      StorageConfig      `yaml:"storage"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Network      NetworkConfig      `yaml:"network"`
	Log          LogConfig          `yaml:"log"`
}

type ServerConfig struct {
	Listen            string        `yaml:"listen"`
	AllowOrigins      []string      `yaml:"allow_origins"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type EngineConfig struct {
	// Backend is one of stub|serve|completions|ollama. Empty selects serve
	// when BaseURL is set and stub otherwise.
	Backend string `yaml:"backend"`
	// Model is the advertised model id (VLLM_MODEL); /health reports 503 without it.
	Model string `yaml:"model"`
	// ServeModel is the model name sent to remote backends (VLLM_SERVE_MODEL).
	ServeModel string   `yaml:"serve_model"`
	BaseURL    string   `yaml:"base_url"`
	APIKey     string   `yaml:"api_key"`
	Stop       []string `yaml:"stop"`
}

type SamplingConfig struct {
	MaxTokens        int     `yaml:"max_tokens"`
	Temperature      float64 `yaml:"temperature"`
	TopP             float64 `yaml:"top_p"`
	FrequencyPenalty float64 `yaml:"frequency_penalty"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"`
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

type OrchestratorConfig struct {
	MaxTranscripts        int    `yaml:"max_transcripts"`
	SummaryMaxTokens      int    `yaml:"summary_max_tokens"`
	RequirementsMaxTokens int    `yaml:"requirements_max_tokens"`
	StatePath             string `yaml:"state_path"`
	RefreshOnStartup      *bool  `yaml:"refresh_on_startup"`
}

type NetworkConfig struct {
	Disabled   bool     `yaml:"disabled"`
	AllowHosts []string `yaml:"allow_hosts"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:            "127.0.0.1:8000",
			AllowOrigins:      []string{"*"},
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Engine: EngineConfig{
			Stop: append([]string(nil), DefaultStopSequences...),
		},
		Sampling: SamplingConfig{
			MaxTokens:        1024,
			Temperature:      0.7,
			TopP:             0.95,
			FrequencyPenalty: 0.8,
		},
		Storage: StorageConfig{
			Driver:     StorageFS,
			Dir:        "chats",
			SQLitePath: "chats.db",
		},
		Orchestrator: OrchestratorConfig{
			MaxTranscripts:        5,
			SummaryMaxTokens:      512,
			RequirementsMaxTokens: 1024,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

type LoadRequest struct {
	// Path is an optional YAML file. A missing file is an error only when set.
	Path string
	// EnvFile is an optional dotenv file; existing env vars win.
	EnvFile string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

func Load(req LoadRequest) (Config, error) {
	cfg := Default()

	if p := strings.TrimSpace(req.Path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", p, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", p, err)
		}
	}

	if p := strings.TrimSpace(req.EnvFile); p != "" {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load env file %s: %w", p, err)
		}
	}

	getenv := req.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = splitList(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flt := func(key string, dst *float64) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("CHAT_LISTEN", &cfg.Server.Listen)
	list("BACKEND_ALLOW_ORIGINS", &cfg.Server.AllowOrigins)

	str("CHAT_ENGINE", &cfg.Engine.Backend)
	str("VLLM_MODEL", &cfg.Engine.Model)
	str("VLLM_SERVE_MODEL", &cfg.Engine.ServeModel)
	str("VLLM_SERVE_URL", &cfg.Engine.BaseURL)
	str("VLLM_API_KEY", &cfg.Engine.APIKey)
	list("VLLM_STOP", &cfg.Engine.Stop)

	num("VLLM_MAX_TOKENS", &cfg.Sampling.MaxTokens)
	flt("VLLM_TEMPERATURE", &cfg.Sampling.Temperature)
	flt("VLLM_TOP_P", &cfg.Sampling.TopP)
	flt("VLLM_FREQUENCY_PENALTY", &cfg.Sampling.FrequencyPenalty)

	str("CHAT_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("CHAT_STORAGE_DIR", &cfg.Storage.Dir)
	str("CHAT_SQLITE_PATH", &cfg.Storage.SQLitePath)

	str("ORCHESTRATOR_STATE_PATH", &cfg.Orchestrator.StatePath)

	list("CHAT_ALLOW_HOSTS", &cfg.Network.AllowHosts)

	str("CHAT_LOG_LEVEL", &cfg.Log.Level)
	str("CHAT_LOG_FORMAT", &cfg.Log.Format)

	return errors.Join(errs...)
}

func (c *Config) normalize() {
	c.Engine.Backend = strings.ToLower(strings.TrimSpace(c.Engine.Backend))
	c.Engine.BaseURL = strings.TrimRight(strings.TrimSpace(c.Engine.BaseURL), "/")
	if c.Engine.Backend == "" {
		if c.Engine.BaseURL != "" {
			c.Engine.Backend = BackendServe
		} else {
			c.Engine.Backend = BackendStub
		}
	}
	if c.Engine.ServeModel == "" {
		c.Engine.ServeModel = c.Engine.Model
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageFS
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"*"}
	}
}

// RefreshOnStartup defaults to true.
func (c Config) RefreshOnStartup() bool {
	if c.Orchestrator.RefreshOnStartup == nil {
		return true
	}
	return *c.Orchestrator.RefreshOnStartup
}

func (c Config) Validate() error {
	switch c.Engine.Backend {
	case BackendStub, BackendOllama:
	case BackendServe, BackendCompletions:
		if c.Engine.BaseURL == "" {
			return fmt.Errorf("config: engine backend %q requires base_url (VLLM_SERVE_URL)", c.Engine.Backend)
		}
	default:
		return fmt.Errorf("config: unknown engine backend %q", c.Engine.Backend)
	}
	switch c.Storage.Driver {
	case StorageFS, StorageSQLite:
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Sampling.MaxTokens < 1 {
		return fmt.Errorf("config: sampling max_tokens must be >= 1")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
