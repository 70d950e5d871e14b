package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MINICLAW_WORKSPACE", "MINICLAW_PROVIDER", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"OPENAI_MODEL", "OLLAMA_BASE_URL", "OLLAMA_MODEL", "TELEGRAM_BOT_TOKEN",
		"DISCORD_BOT_TOKEN", "SLACK_BOT_TOKEN", "SLACK_APP_TOKEN",
		"MINICLAW_METRICS_ADDR", "MINICLAW_ALLOW_FROM", "MINICLAW_HEARTBEAT_MINUTES",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.Local.BaseURL)
	assert.NotZero(t, cfg.Gateway.OutboundBuffer)
	assert.NoError(t, cfg.Validate())
}

func TestFileOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"provider":"openai","openai":{"api_key":"sk-test","model":"gpt-4o"},"gateway":{"metrics_addr":":9091"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, ":9091", cfg.Gateway.MetricsAddr)
}

func TestInsecureFileIgnored(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"provider":"openai"}`), 0o644))

	cfg, err := Load(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Provider, "a world-readable config file must be ignored")
}

func TestMalformedFileIsFatal(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{{{`), 0o600))

	_, err := Load(path, slog.Default())
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"openai":{"api_key":"from-file"}}`), 0o600))

	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("MINICLAW_PROVIDER", "openai")
	t.Setenv("MINICLAW_ALLOW_FROM", "111, 222")

	cfg, err := Load(path, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, []string{"111", "222"}, cfg.Channels.AllowFrom)
}

func TestValidateRejectsOpenAIWithoutKey(t *testing.T) {
	cfg := Default()
	cfg.Provider = "openai"
	cfg.OpenAI.APIKey = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Provider = "mystery"
	assert.Error(t, cfg.Validate())
}
