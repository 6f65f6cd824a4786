package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreguard-ai/loreguard/internal/types"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loreguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_Load(t *testing.T) {
	path := writeConfigFile(t, `
server:
  host: 0.0.0.0
  port: 9000
database:
  path: /var/lib/loreguard/loreguard.db
pipeline:
  review_enabled: true
  secrets_min_confidence: 0.6
  allowed_domains:
    - github.com
    - internal-docs.example.com
logging:
  level: debug
  format: json
`)

	cfg, err := NewLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/var/lib/loreguard/loreguard.db", cfg.Database.Path)
	assert.True(t, cfg.Pipeline.ReviewEnabled)
	assert.Equal(t, 0.6, cfg.Pipeline.SecretsMinConfidence)
	assert.Len(t, cfg.Pipeline.AllowedDomains, 2)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields keep their defaults.
	assert.Equal(t, 4, cfg.Pipeline.BatchConcurrency)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
}

func TestLoader_LoadWithDefaults(t *testing.T) {
	cfg, err := NewLoader(NewValidator()).LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8480, cfg.Server.Port)
	assert.Equal(t, "loreguard.db", cfg.Database.Path)
	assert.False(t, cfg.Pipeline.ReviewEnabled)
}

func TestLoader_MissingFileError(t *testing.T) {
	_, err := NewLoader(NewValidator()).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	var lgErr *types.LoreguardError
	require.ErrorAs(t, err, &lgErr)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, lgErr.Code)
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, v.Validate(DefaultConfig()))
	})

	t.Run("nil config", func(t *testing.T) {
		assert.Error(t, v.Validate(nil))
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Port = 70000
		err := v.Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.port")
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Level = "verbose"
		err := v.Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logging.level")
	})

	t.Run("rate limit enabled without rate", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.RateLimit.RequestsPerSecond = 0
		err := v.Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requests_per_second")
	})
}
