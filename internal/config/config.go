package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// envKeys maps the recognised environment variables to config keys.
var envKeys = map[string]string{
	"HTTP_ADDR":               "http_addr",
	"DB_PATH":                 "db_path",
	"ADDON_OPTIONS_PATH":      "options_path",
	"CONFIG_REFRESH_INTERVAL": "config_refresh_interval",
	"LOG_LEVEL":               "log_level",
	"HA_BASE_URL":             "ha_base_url",
	"SUPERVISOR_TOKEN":        "supervisor_token",
}

// raw mirrors the environment before durations and levels are parsed.
type raw struct {
	HTTPAddr              string `koanf:"http_addr" default:":8099"`
	DBPath                string `koanf:"db_path" default:"/data/bookstack.db"`
	OptionsPath           string `koanf:"options_path" default:"/data/options.json"`
	ConfigRefreshInterval string `koanf:"config_refresh_interval" default:"60s"`
	LogLevel              string `koanf:"log_level" default:"info"`
	HABaseURL             string `koanf:"ha_base_url" default:"http://supervisor/core"`
	SupervisorToken       string `koanf:"supervisor_token"`
}

const defaultConfigRefreshInterval = 60 * time.Second

// Config stores runtime settings loaded from environment variables.
type Config struct {
	HTTPAddr              string
	DBPath                string
	OptionsPath           string
	ConfigRefreshInterval time.Duration
	LogLevel              slog.Level
	HABaseURL             string
	SupervisorToken       string
}

// Load builds Config from environment variables using stable defaults.
// Blank values fall back to the default.
func Load() (Config, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider("", ".", func(key string) string {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			return ""
		}
		return envKeys[key]
	}), nil)
	if err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}

	var r raw
	if err := k.Unmarshal("", &r); err != nil {
		return Config{}, errors.Wrap(err, "decode environment")
	}
	trimAll(&r)
	if err := defaults.Set(&r); err != nil {
		return Config{}, errors.WithStack(err)
	}

	return Config{
		HTTPAddr:              r.HTTPAddr,
		DBPath:                r.DBPath,
		OptionsPath:           r.OptionsPath,
		ConfigRefreshInterval: parseDuration(r.ConfigRefreshInterval, defaultConfigRefreshInterval),
		LogLevel:              ParseLogLevel(r.LogLevel),
		HABaseURL:             strings.TrimRight(r.HABaseURL, "/"),
		SupervisorToken:       r.SupervisorToken,
	}, nil
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

// WatchEnabled reports whether the Home Assistant event bus is reachable.
func (c Config) WatchEnabled() bool {
	return c.SupervisorToken != "" && c.HABaseURL != ""
}

func trimAll(r *raw) {
	for _, field := range []*string{
		&r.HTTPAddr, &r.DBPath, &r.OptionsPath, &r.ConfigRefreshInterval,
		&r.LogLevel, &r.HABaseURL, &r.SupervisorToken,
	} {
		*field = strings.TrimSpace(*field)
	}
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func ParseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
