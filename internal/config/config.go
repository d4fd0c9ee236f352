// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all environment-driven settings for the service.
type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	WSPath string `env:"WS_PATH" envDefault:"/ws"`

	// ActionTimeout is how long the player to act has before a fold is
	// forced on their behalf.
	ActionTimeout time.Duration `env:"ACTION_TIMEOUT" envDefault:"40s"`

	// ReconnectGrace is how long a disconnected user's seat is preserved
	// before they are forcibly stood up.
	ReconnectGrace time.Duration `env:"RECONNECT_GRACE" envDefault:"30s"`

	// DefaultTableID is created at startup so clients always have a table
	// to join.
	DefaultTableID string `env:"DEFAULT_TABLE_ID" envDefault:"sandbox"`

	Ante       int `env:"ANTE" envDefault:"0"`
	SmallBlind int `env:"SMALL_BLIND" envDefault:"1"`
	BigBlind   int `env:"BIG_BLIND" envDefault:"2"`

	// DatabaseEnabled gates the pgx user store; when false the register
	// and login endpoints are not mounted and players use guest sessions.
	DatabaseEnabled bool   `env:"DATABASE_ENABLED" envDefault:"false"`
	DatabaseURL     string `env:"DATABASE_URL"`

	// RedisEnabled gates the action history queue.
	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisAddr    string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}
