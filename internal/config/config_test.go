package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for key := range envKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":8099", cfg.HTTPAddr)
	assert.Equal(t, "/data/bookstack.db", cfg.DBPath)
	assert.Equal(t, "/data", cfg.DBDir())
	assert.Equal(t, "/data/options.json", cfg.OptionsPath)
	assert.Equal(t, time.Minute, cfg.ConfigRefreshInterval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.WatchEnabled(), "no supervisor token")
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", " :9000 ")
	t.Setenv("DB_PATH", "/tmp/x/bs.db")
	t.Setenv("CONFIG_REFRESH_INTERVAL", "5s")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("HA_BASE_URL", "http://ha.local:8123/")
	t.Setenv("SUPERVISOR_TOKEN", "tok")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "/tmp/x", cfg.DBDir())
	assert.Equal(t, 5*time.Second, cfg.ConfigRefreshInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "http://ha.local:8123", cfg.HABaseURL)
	assert.True(t, cfg.WatchEnabled())
}

func TestLoadIgnoresInvalidInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_REFRESH_INTERVAL", "-3s")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, defaultConfigRefreshInterval, cfg.ConfigRefreshInterval)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" Warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseLogLevel(raw), "ParseLogLevel(%q)", raw)
	}
}
