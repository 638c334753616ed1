package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Port              string `yaml:"port"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Instruments struct {
	Path               string `yaml:"path"`
	RefreshIntervalMin int    `yaml:"refresh_interval_min"`
}

type Feed struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type Kite struct {
	Enabled              bool   `yaml:"enabled"`
	APIKey               string `yaml:"api_key"`
	AccessToken          string `yaml:"access_token"`
	BaseURL              string `yaml:"base_url"`
	MaxRequestsPerSecond int    `yaml:"max_requests_per_second"`
	Burst                int    `yaml:"burst"`
	CacheTTLSec          int    `yaml:"cache_ttl_sec"`
	CacheMaxItems        int    `yaml:"cache_max_items"`
}

type Yahoo struct {
	Enabled              bool   `yaml:"enabled"`
	BaseURL              string `yaml:"base_url"`
	MaxRequestsPerSecond int    `yaml:"max_requests_per_second"`
	Burst                int    `yaml:"burst"`
}

type Resolve struct {
	MaxConcurrency int `yaml:"max_concurrency"`
	TierTimeoutMS  int `yaml:"tier_timeout_ms"`
}

type Config struct {
	Server      Server      `yaml:"server"`
	Log         Log         `yaml:"log"`
	Instruments Instruments `yaml:"instruments"`
	Feed        Feed        `yaml:"feed"`
	Kite        Kite        `yaml:"kite"`
	Yahoo       Yahoo       `yaml:"yahoo"`
	Resolve     Resolve     `yaml:"resolve"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		Log:    Log{Level: "info", MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 14},
		Instruments: Instruments{
			Path:               "instruments.csv",
			RefreshIntervalMin: 15,
		},
		Feed: Feed{Enabled: false},
		Kite: Kite{
			Enabled:              true,
			BaseURL:              "https://api.kite.trade",
			MaxRequestsPerSecond: 3,
			Burst:                3,
			CacheTTLSec:          2,
			CacheMaxItems:        10000,
		},
		Yahoo: Yahoo{
			Enabled:              true,
			BaseURL:              "https://query1.finance.yahoo.com",
			MaxRequestsPerSecond: 2,
			Burst:                2,
		},
		Resolve: Resolve{MaxConcurrency: 8, TierTimeoutMS: 2000},
	}
}

// Load reads YAML config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields
// so secrets stay out of the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("INSTRUMENTS_PATH"); v != "" {
		cfg.Instruments.Path = v
	}
	if v := os.Getenv("INSTRUMENTS_REFRESH_MIN"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Instruments.RefreshIntervalMin = x
		}
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		cfg.Feed.URL = v
		cfg.Feed.Enabled = true
	}
	if v := os.Getenv("KITE_API_KEY"); v != "" {
		cfg.Kite.APIKey = v
	}
	if v := os.Getenv("KITE_ACCESS_TOKEN"); v != "" {
		cfg.Kite.AccessToken = v
	}
	if v := os.Getenv("KITE_BASE_URL"); v != "" {
		cfg.Kite.BaseURL = v
	}
	if v := os.Getenv("KITE_ENABLED"); v != "" {
		cfg.Kite.Enabled = parseBool(v, cfg.Kite.Enabled)
	}
	if v := os.Getenv("YAHOO_BASE_URL"); v != "" {
		cfg.Yahoo.BaseURL = v
	}
	if v := os.Getenv("YAHOO_ENABLED"); v != "" {
		cfg.Yahoo.Enabled = parseBool(v, cfg.Yahoo.Enabled)
	}
	if v := os.Getenv("RESOLVE_MAX_CONCURRENCY"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Resolve.MaxConcurrency = x
		}
	}
	if v := os.Getenv("RESOLVE_TIER_TIMEOUT_MS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Resolve.TierTimeoutMS = x
		}
	}
}

func parseBool(v string, def bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}
