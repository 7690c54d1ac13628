// Package config reads process settings from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"csrcon/internal/servers"
)

// Config holds every setting of the csrcon process.
type Config struct {
	Port        int         `env:"PORT" envDefault:"3000"`
	Connections Connections `env:"CONNECTIONS_JSON" envDefault:"[]"`
	Debug       bool        `env:"CSRCON_DEBUG"`

	DialTimeout        time.Duration `env:"CSRCON_DIAL_TIMEOUT" envDefault:"5s"`
	CommandDeadline    time.Duration `env:"CSRCON_COMMAND_DEADLINE" envDefault:"5s"`
	MinCommandInterval time.Duration `env:"CSRCON_MIN_COMMAND_INTERVAL" envDefault:"125ms"`
	StatusRetries      int           `env:"CSRCON_STATUS_RETRIES" envDefault:"10"`
	StatusRetryDelay   time.Duration `env:"CSRCON_STATUS_RETRY_DELAY" envDefault:"1s"`
	JanitorInterval    time.Duration `env:"CSRCON_JANITOR_INTERVAL" envDefault:"1m"`

	OTelEndpoint string `env:"CSRCON_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"CSRCON_OTEL_ENABLED" envDefault:"true"`
}

// Connections is the JSON list of RCON endpoints. Ids are list positions.
type Connections []servers.Config

// UnmarshalText decodes `[{"host":..,"port":..,"password":..}, ...]`.
func (c *Connections) UnmarshalText(text []byte) error {
	var list []servers.Config
	if err := json.Unmarshal(text, &list); err != nil {
		return fmt.Errorf("connections json: %w", err)
	}
	for i := range list {
		list[i].ID = i
		if list[i].Host == "" || list[i].Port <= 0 {
			return fmt.Errorf("connection %d: host and port are required", i)
		}
	}
	*c = list
	return nil
}

// Parse loads the configuration from environment variables.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StatusRetries < 0 {
		return Config{}, fmt.Errorf("parse env: CSRCON_STATUS_RETRIES must not be negative")
	}
	return cfg, nil
}

// RetryPolicy returns the status retry settings.
func (c Config) RetryPolicy() servers.RetryPolicy {
	return servers.RetryPolicy{MaxRetries: c.StatusRetries, Delay: c.StatusRetryDelay}
}
