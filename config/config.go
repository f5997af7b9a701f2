// Package config loads server configuration from environment variables.
// envconfig maps variables onto the struct fields; everything has a
// development-friendly default so `go run ./cmd/server` just works.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all settings for the points engine server.
type Config struct {
	// --- HTTP ---
	Port        int      `envconfig:"PORT" default:"8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`

	// --- Database ---
	// SQLite path; use ":memory:" for an ephemeral database.
	DBPath string `envconfig:"DB_PATH" default:"points.db"`

	// --- Logging ---
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// --- Awards ---
	// Point values for activity completions. Survey awards come from the
	// survey definition, not configuration.
	CheckinAward int64 `envconfig:"CHECKIN_AWARD" default:"5"`
	RSVPAward    int64 `envconfig:"RSVP_AWARD" default:"2"`

	// --- Demo ---
	// Scenario endpoints reset the database; disable outside development.
	EnableScenarios bool `envconfig:"ENABLE_SCENARIOS" default:"true"`
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.CheckinAward < 0 || c.RSVPAward < 0 {
		return fmt.Errorf("award amounts must be non-negative")
	}
	return nil
}

// Load reads the environment and fills a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
