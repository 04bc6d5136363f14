// Package server provides configuration helpers that define runtime
// defaults, validation, and rate-limiting parameters for the Whismur
// service.
package server

import (
	"log/slog"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/samber/lo"
)

// RateLimitConfig defines the parameters for per-connection event rate
// limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST,default=10"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
}

// Config holds the server configuration, loaded from the environment.
type Config struct {
	Addr            string        `env:"SERVER_ADDR,default=:8080"`
	Origins         string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	RateLimit       RateLimitConfig
}

// LoadConfig reads the configuration from environment variables, falling
// back to defaults, and clamps out-of-range values.
func LoadConfig() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, err
	}
	return sanitizeConfig(cfg), nil
}

// DefaultConfig returns the configuration used when the environment sets
// nothing. Handy for tests.
func DefaultConfig() Config {
	return sanitizeConfig(Config{})
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Origins == "" {
		cfg.Origins = "http://localhost:8080"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return cfg
}

// AllowedOrigins splits the comma-separated origin list, dropping empty
// entries.
func (c Config) AllowedOrigins() []string {
	return lo.FilterMap(strings.Split(c.Origins, ","), func(origin string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(origin)
		return trimmed, trimmed != ""
	})
}

// SlogLevel maps the configured log level name onto a slog.Level,
// defaulting to info for anything unrecognized.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
