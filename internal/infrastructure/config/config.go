package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

type Config struct {
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"` // console / json
	} `toml:"log"`

	Cache struct {
		Path                 string `toml:"path"`
		BusyTimeoutMs        int    `toml:"busy_timeout_ms"`
		RetryAttempts        int    `toml:"retry_attempts"`
		RetryBaseMs          int    `toml:"retry_base_ms"`
		HistoricalTTLSeconds int    `toml:"historical_ttl_seconds"`
		TransfersTTLSeconds  int    `toml:"transfers_ttl_seconds"`
	} `toml:"cache"`

	Brokerage struct {
		BaseURL           string  `toml:"base_url"`
		Account           string  `toml:"account"`
		Token             string  `toml:"token"`
		TimeoutSeconds    int     `toml:"timeout_seconds"`
		RequestsPerSecond float64 `toml:"requests_per_second"`
	} `toml:"brokerage"`

	Storage struct {
		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Redis struct {
			Enabled       bool   `toml:"enabled"`
			Addr          string `toml:"addr"`
			Password      string `toml:"password"`
			DB            int    `toml:"db"`
			Prefix        string `toml:"prefix"`
			TTLSeconds    int    `toml:"ttl_seconds"`
			SeriesStream  string `toml:"stream"`
			SeriesChannel string `toml:"channel"`
		} `toml:"redis"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied, for running without a file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "cache.db"
	}
	if cfg.Cache.BusyTimeoutMs <= 0 {
		cfg.Cache.BusyTimeoutMs = 10000
	}
	if cfg.Cache.RetryAttempts <= 0 {
		cfg.Cache.RetryAttempts = 5
	}
	if cfg.Cache.RetryBaseMs <= 0 {
		cfg.Cache.RetryBaseMs = 100
	}
	if cfg.Cache.HistoricalTTLSeconds <= 0 {
		cfg.Cache.HistoricalTTLSeconds = 3600
	}
	if cfg.Cache.TransfersTTLSeconds <= 0 {
		cfg.Cache.TransfersTTLSeconds = 3600
	}

	if cfg.Brokerage.BaseURL == "" {
		cfg.Brokerage.BaseURL = "https://api.robinhood.com"
	}
	if cfg.Brokerage.TimeoutSeconds <= 0 {
		cfg.Brokerage.TimeoutSeconds = 10
	}
	if cfg.Brokerage.RequestsPerSecond <= 0 {
		cfg.Brokerage.RequestsPerSecond = 2
	}

	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "snapshots.db"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "accountability"
	}
}

func validate(cfg *Config) error {
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format %q must be console or json", cfg.Log.Format)
	}

	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	return nil
}

// ValidateCredentials checks what calls to the brokerage need.
func (c *Config) ValidateCredentials() error {
	if strings.TrimSpace(c.Brokerage.Account) == "" {
		return errors.New("brokerage.account is empty")
	}
	if strings.TrimSpace(c.Brokerage.Token) == "" {
		return errors.New("brokerage.token is empty")
	}
	return nil
}

func (c *Config) HistoricalTTL() time.Duration {
	return time.Duration(c.Cache.HistoricalTTLSeconds) * time.Second
}

func (c *Config) TransfersTTL() time.Duration {
	return time.Duration(c.Cache.TransfersTTLSeconds) * time.Second
}

func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Cache.BusyTimeoutMs) * time.Millisecond
}

func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.Cache.RetryBaseMs) * time.Millisecond
}
