// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay service.
package server

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST" envDefault:"5"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	// Format is the log output format: "json" or "console".
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

// Config holds the server configuration settings including security controls.
// All values come from flat environment variables; an optional .env file is
// loaded by the entrypoint before parsing.
type Config struct {
	Port           string   `env:"PORT" envDefault:"5000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	MaxMessageSize int64    `env:"MAX_MESSAGE_SIZE" envDefault:"512"`
	RateLimit      RateLimitConfig
	Log            LogConfig
}

// NewConfig returns a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := &Config{
		Port:           "5000",
		AllowedOrigins: []string{"*"},
		MaxMessageSize: 512,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
	cfg.sanitize()
	return cfg
}

// NewConfigFromEnv parses the configuration from environment variables,
// falling back to defaults for anything unset or invalid.
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.sanitize()
	return cfg, nil
}

// Addr returns the listen address for the configured port.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// sanitize replaces invalid values with defaults so a bad environment can
// degrade the configuration but never break startup.
func (c *Config) sanitize() {
	if strings.TrimSpace(c.Port) == "" {
		c.Port = "5000"
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 512
	}

	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 5
	}

	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}

	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}
