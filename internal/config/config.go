// Package config loads the jshunt configuration from YAML and environment
// variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration.
//
// Sources in priority order:
//  1. the explicit path passed to Load or MustLoad;
//  2. the CONFIG_PATH environment variable;
//  3. ./local.yaml in the working directory;
//  4. environment variables only.
//
// Environment variables overlay a file that was read.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Redis   RedisConfig   `yaml:"redis"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	View    ViewConfig    `yaml:"view"`
	Export  ExportConfig  `yaml:"export"`
}

// APIConfig describes the catalogue API.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"   env:"JSHUNT_API_BASE_URL"   env-required:"true"`
	UserAgent string `yaml:"user_agent" env:"JSHUNT_API_USER_AGENT" env-default:"jshunt-client/1.0"`
	// Zero disables the request timeout.
	Timeout time.Duration `yaml:"timeout" env:"JSHUNT_API_TIMEOUT" env-default:"0s"`
}

// RedisConfig enables the response cache and rate limit tracking. An empty
// Addr disables both.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"JSHUNT_REDIS_ADDR"`
	Password string `yaml:"password" env:"JSHUNT_REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"JSHUNT_REDIS_DB" env-default:"0"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"  env:"JSHUNT_LOG_LEVEL"  env-default:"info"`
	Pretty bool   `yaml:"pretty" env:"JSHUNT_LOG_PRETTY" env-default:"false"`
}

// MetricsConfig is the listen address of /health and /metrics. Empty
// disables the listener.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"JSHUNT_METRICS_ADDR"`
}

// ViewConfig sizes the terminal list.
type ViewConfig struct {
	Rows int `yaml:"rows" env:"JSHUNT_VIEW_ROWS" env-default:"10"`
	// Threshold is the near-end distance in viewport heights.
	Threshold float64 `yaml:"threshold" env:"JSHUNT_VIEW_THRESHOLD" env-default:"0.5"`
}

// ExportConfig tunes the bulk export.
type ExportConfig struct {
	Concurrency int           `yaml:"concurrency"  env:"JSHUNT_EXPORT_CONCURRENCY"  env-default:"4"`
	PageTimeout time.Duration `yaml:"page_timeout" env:"JSHUNT_EXPORT_PAGE_TIMEOUT" env-default:"15s"`
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration from the first available source and
// validates it.
func Load(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) error {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("config file does not exist: %s", p)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return fmt.Errorf("failed to read config %s: %w", p, err)
		}
		return nil
	}

	switch {
	case path != "":
		if err := readFile(path); err != nil {
			return nil, err
		}
	case os.Getenv("CONFIG_PATH") != "":
		if err := readFile(os.Getenv("CONFIG_PATH")); err != nil {
			return nil, err
		}
	case fileExists("local.yaml"):
		if err := readFile("local.yaml"); err != nil {
			return nil, err
		}
	default:
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config not found: provide -config, CONFIG_PATH, local.yaml or env vars: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Validate checks required fields and ranges.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) url (got %q)", c.API.BaseURL)
	}
	if c.API.UserAgent == "" {
		return fmt.Errorf("api.user_agent is required")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be >= 0")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	if c.View.Rows <= 0 {
		return fmt.Errorf("view.rows must be > 0")
	}
	if c.View.Threshold < 0 {
		return fmt.Errorf("view.threshold must be >= 0")
	}
	if c.Export.Concurrency <= 0 {
		return fmt.Errorf("export.concurrency must be > 0")
	}
	if c.Export.PageTimeout < 0 {
		return fmt.Errorf("export.page_timeout must be >= 0")
	}
	return nil
}
