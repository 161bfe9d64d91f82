package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoadRequest{Getenv: envMap(nil)})
	require.NoError(t, err)

	assert.Equal(t, BackendStub, cfg.Engine.Backend)
	assert.Equal(t, StorageFS, cfg.Storage.Driver)
	assert.Equal(t, 1024, cfg.Sampling.MaxTokens)
	assert.InDelta(t, 0.95, cfg.Sampling.TopP, 1e-9)
	assert.Equal(t, DefaultStopSequences, cfg.Engine.Stop)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)
	assert.True(t, cfg.RefreshOnStartup())
}

func TestLoadEnvOverrides(t *testing.T) {
	cfg, err := Load(LoadRequest{Getenv: envMap(map[string]string{
		"VLLM_SERVE_URL":        "http://gpu-box:8000/",
		"VLLM_MODEL":            "Qwen/Qwen3-4B",
		"VLLM_MAX_TOKENS":       "256",
		"VLLM_TEMPERATURE":      "0.2",
		"VLLM_STOP":             "END, STOP ,",
		"BACKEND_ALLOW_ORIGINS": "http://a.test,http://b.test",
		"CHAT_STORAGE_DIR":      "/tmp/chats",
	})})
	require.NoError(t, err)

	assert.Equal(t, BackendServe, cfg.Engine.Backend, "base url selects the serve backend")
	assert.Equal(t, "http://gpu-box:8000", cfg.Engine.BaseURL)
	assert.Equal(t, "Qwen/Qwen3-4B", cfg.Engine.ServeModel, "serve model falls back to model")
	assert.Equal(t, 256, cfg.Sampling.MaxTokens)
	assert.InDelta(t, 0.2, cfg.Sampling.Temperature, 1e-9)
	assert.Equal(t, []string{"END", "STOP"}, cfg.Engine.Stop)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowOrigins)
	assert.Equal(t, "/tmp/chats", cfg.Storage.Dir)
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	_, err := Load(LoadRequest{Getenv: envMap(map[string]string{"VLLM_MAX_TOKENS": "lots"})})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VLLM_MAX_TOKENS")
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backend.yaml")
	yml := `
engine:
  backend: ollama
  model: llama3
storage:
  driver: sqlite
  sqlite_path: data/chats.db
orchestrator:
  refresh_on_startup: false
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(LoadRequest{Path: path, Getenv: envMap(map[string]string{"VLLM_MODEL": "llama3.1"})})
	require.NoError(t, err)

	assert.Equal(t, BackendOllama, cfg.Engine.Backend)
	assert.Equal(t, "llama3.1", cfg.Engine.Model)
	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, "data/chats.db", cfg.Storage.SQLitePath)
	assert.False(t, cfg.RefreshOnStartup())
}

func TestLoadEnvFileDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("CHATBACKEND_TEST_MODEL=from-file\nCHATBACKEND_TEST_ONLY_FILE=yes\n"), 0o644))
	t.Setenv("CHATBACKEND_TEST_MODEL", "from-env")

	_, err := Load(LoadRequest{EnvFile: envPath, Getenv: envMap(nil)})
	require.NoError(t, err)

	assert.Equal(t, "from-env", os.Getenv("CHATBACKEND_TEST_MODEL"))
	assert.Equal(t, "yes", os.Getenv("CHATBACKEND_TEST_ONLY_FILE"))
	os.Unsetenv("CHATBACKEND_TEST_ONLY_FILE")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Engine.Backend = "gpu-magic"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Engine.Backend = BackendCompletions
	assert.Error(t, cfg.Validate(), "remote backend needs a base url")

	cfg.Engine.BaseURL = "http://localhost:8000"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "postgres"
	assert.Error(t, cfg.Validate())
}
