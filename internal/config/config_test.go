package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 0.7, cfg.Gemini.Temperature)
	assert.Equal(t, 1000, cfg.Gemini.MaxTokens)
	assert.Equal(t, 3*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, 7, cfg.Pipeline.MaxConcurrent)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, 4222, cfg.NATS.Port)
	assert.Empty(t, cfg.Store.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	// Point config to a non-existent file so we use defaults
	t.Setenv("SCENEGEN_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SCENEGEN_GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("SCENEGEN_TIMEOUT", "45s")
	t.Setenv("SCENEGEN_STORE_PATH", "/tmp/runs.db")
	t.Setenv("SCENEGEN_NATS_URL", "nats://127.0.0.1:4222")
	t.Setenv("SCENEGEN_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, "/tmp/runs.db", cfg.Store.Path)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidTimeout(t *testing.T) {
	t.Setenv("SCENEGEN_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("SCENEGEN_TIMEOUT", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "SCENEGEN_TIMEOUT")
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
gemini:
  api_key: "${SCENEGEN_TEST_KEY}"
  temperature: 0.4
  max_tokens: 2048
pipeline:
  timeout: 90s
  max_concurrent: 50
nats:
  enabled: true
  port: 0
  data_dir: "/var/lib/scenegen/nats"
store:
  path: "data/runs.db"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o644))

	t.Setenv("SCENEGEN_CONFIG", cfgPath)
	t.Setenv("SCENEGEN_TEST_KEY", "from-env")
	// Clear any env overrides
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SCENEGEN_GEMINI_MODEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 0.4, cfg.Gemini.Temperature)
	assert.Equal(t, 2048, cfg.Gemini.MaxTokens)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, 7, cfg.Pipeline.MaxConcurrent, "clamped")
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, 0, cfg.NATS.Port)
	assert.Equal(t, "/var/lib/scenegen/nats", cfg.NATS.DataDir)
	assert.Equal(t, "data/runs.db", cfg.Store.Path)
}

func TestLoadBadYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("gemini: [unclosed"), 0o644))
	t.Setenv("SCENEGEN_CONFIG", cfgPath)

	_, err := Load()
	assert.ErrorContains(t, err, "parse config")
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	err := cfg.Validate()
	assert.ErrorContains(t, err, "api key")

	cfg.Gemini.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Gemini.Temperature = 3
	cfg.Log.Level = "verbose"
	err = cfg.Validate()
	assert.ErrorContains(t, err, "temperature")
	assert.ErrorContains(t, err, "verbose")
}
