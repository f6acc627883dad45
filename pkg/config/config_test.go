package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/config"
)

var keys = []string{
	"LANDLEDGER_CONFIG", "PORT", "LOG_LEVEL", "DATABASE_URL", "DATA_DIR", "REDIS_URL",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_INSECURE", "ARTIFACT_STORAGE_TYPE",
}

func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.True(t, cfg.LiteMode())
	assert.Equal(t, "fs", cfg.ArtifactStorageType)
	assert.False(t, cfg.OTelEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://ledger@db:5432/ledger")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.False(t, cfg.LiteMode())
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoad_InvalidNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_BURST", "lots")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "landledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7000\"\ndata_dir: /var/lib/landledger\nredis_url: redis://cache:6379/0\n"), 0o600))
	t.Setenv("LANDLEDGER_CONFIG", path)
	t.Setenv("PORT", "7001")

	cfg, err := config.Load()
	require.NoError(t, err)

	// env wins over the file
	assert.Equal(t, "7001", cfg.Port)
	assert.Equal(t, "/var/lib/landledger", cfg.DataDir)
	assert.Equal(t, "redis://cache:6379/0", cfg.RedisURL)
	assert.Equal(t, 40, cfg.RateLimitBurst)
}

func TestLoad_YAMLUnknownField(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prot: 1\n"), 0o600))
	t.Setenv("LANDLEDGER_CONFIG", path)

	_, err := config.Load()
	assert.Error(t, err)
}
