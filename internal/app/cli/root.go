package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/seproj/chatbackend/internal/app/wiring"
	"github.com/seproj/chatbackend/internal/platform/config"
	"github.com/seproj/chatbackend/internal/platform/logging"
)

const (
	exitOK    = 0
	exitUsage = 2
	exitError = 1
)

type stringListFlag struct {
	values []string
}

func (s *stringListFlag) String() string {
	if s == nil || len(s.values) == 0 {
		return ""
	}
	return strings.Join(s.values, ",")
}

func (s *stringListFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			s.values = append(s.values, part)
		}
	}
	return nil
}

// globals are the flags accepted before the command name.
type globals struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	backend    string
	allowHosts stringListFlag
}

// env holds the process streams so commands can be driven from tests.
type env struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

func Run(argv []string) int {
	return run(argv, env{stdout: os.Stdout, stderr: os.Stderr, getenv: os.Getenv})
}

func run(argv []string, e env) int {
	boot := logging.New(e.stderr, logging.Options{})

	var g globals
	global := flag.NewFlagSet("chatbackend", flag.ContinueOnError)
	global.SetOutput(e.stderr)
	global.StringVar(&g.configPath, "config", "", "Optional YAML config file.")
	global.StringVar(&g.envFile, "env-file", "", "Optional dotenv file; real environment variables win.")
	global.StringVar(&g.logLevel, "log-level", "", "debug|info|warn|error (overrides config).")
	global.StringVar(&g.logFormat, "log-format", "", "text|json (overrides config).")
	global.StringVar(&g.backend, "engine", "", "Engine backend: stub|serve|completions|ollama (overrides config).")
	global.Var(&g.allowHosts, "allow-host", "Allowed engine host (repeatable). If none provided, every host is allowed.")
	global.Usage = func() { writeRootHelp(e.stderr) }

	if len(argv) == 0 {
		argv = []string{"chatbackend"}
	}
	if err := global.Parse(argv[1:]); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		writeRootHelp(e.stderr)
		boot.Error(fmt.Sprintf("failed to parse global flags: %v", err))
		return exitUsage
	}

	rest := global.Args()
	if len(rest) == 0 {
		writeRootHelp(e.stderr)
		return exitUsage
	}

	cmd := rest[0]
	args := rest[1:]

	switch cmd {
	case "help", "-h", "--help":
		writeRootHelp(e.stdout)
		return exitOK
	case "serve":
		return runServe(g, args, e)
	case "orchestrate":
		return runOrchestrate(g, args, e)
	case "transcripts":
		return runTranscripts(g, args, e)
	default:
		boot.Error("unknown command: " + cmd)
		writeRootHelp(e.stderr)
		return exitUsage
	}
}

// loadConfig resolves the config file, dotenv and environment, then applies
// the global flag overrides.
func loadConfig(g globals, e env) (config.Config, error) {
	cfg, err := config.Load(config.LoadRequest{
		Path:    g.configPath,
		EnvFile: g.envFile,
		Getenv:  e.getenv,
	})
	if err != nil {
		return config.Config{}, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if g.backend != "" {
		cfg.Engine.Backend = strings.ToLower(strings.TrimSpace(g.backend))
	}
	if len(g.allowHosts.values) > 0 {
		cfg.Network.AllowHosts = g.allowHosts.values
	}
	return cfg, cfg.Validate()
}

// open loads config and builds the container. The caller closes it.
func open(g globals, e env, opts wiring.Options) (*wiring.Container, logging.Logger, bool) {
	cfg, err := loadConfig(g, e)
	if err != nil {
		logging.New(e.stderr, logging.Options{}).Error("config: " + err.Error())
		return nil, logging.Logger{}, false
	}
	log := logging.New(e.stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctr, err := wiring.New(cfg, log, opts)
	if err != nil {
		log.WithError(err).Error("startup failed")
		return nil, log, false
	}
	return ctr, log, true
}

func writeRootHelp(w io.Writer) {
	help := strings.TrimSpace(`
chatbackend - streaming chat generation backend with a transcript orchestrator

Usage:
  chatbackend [global flags] <command> [command flags]

Global flags:
  --config <file>        Optional YAML config file.
  --env-file <file>      Optional dotenv file (real environment wins).
  --engine <backend>     stub|serve|completions|ollama
  --allow-host <host>    Allowed engine host (repeatable). Subdomains match.
  --log-level <level>    debug|info|warn|error
  --log-format <format>  text|json

Commands:
  serve                  Run the HTTP server.
  orchestrate [flags]    Run the orchestrator once and print the result as JSON.
  transcripts list       Print stored transcripts grouped by persona as JSON.
  help

Environment:
  VLLM_MODEL, VLLM_SERVE_MODEL, VLLM_SERVE_URL, VLLM_API_KEY, VLLM_MAX_TOKENS,
  VLLM_TEMPERATURE, VLLM_TOP_P, VLLM_FREQUENCY_PENALTY, VLLM_STOP,
  CHAT_ENGINE, CHAT_LISTEN, CHAT_STORAGE_DRIVER, CHAT_STORAGE_DIR,
  CHAT_SQLITE_PATH, ORCHESTRATOR_STATE_PATH, CHAT_ALLOW_HOSTS,
  BACKEND_ALLOW_ORIGINS, CHAT_LOG_LEVEL, CHAT_LOG_FORMAT
`)
	_, _ = io.WriteString(w, help+"\n")
}
