package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Second, cfg.Jobs.PollInterval)
	assert.Equal(t, 5, cfg.Jobs.MaxAttempts)
	assert.Equal(t, 168*time.Hour, cfg.Jobs.Retention)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("CORS_ORIGINS", "https://clanhub.gg,https://admin.clanhub.gg")
	t.Setenv("JOBS_RETRY_DELAY", "2m")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, []string{"https://clanhub.gg", "https://admin.clanhub.gg"}, cfg.CORSOrigins)
	assert.Equal(t, 2*time.Minute, cfg.Jobs.RetryDelay)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "unknown driver", env: map[string]string{"JWT_SECRET": "x", "DB_DRIVER": "mysql"}},
		{name: "discord half configured", env: map[string]string{"JWT_SECRET": "x", "DISCORD_TOKEN": "token"}},
		{name: "zero batch", env: map[string]string{"JWT_SECRET": "x", "JOBS_BATCH_SIZE": "0"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
