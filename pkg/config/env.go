package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// APIURLDefault is the public Airtable REST endpoint.
	APIURLDefault = "https://api.airtable.com/v0"

	BaseIDEnvVar = "AIRTABLE_BASE_ID"
	APIKeyEnvVar = "AIRTABLE_API_KEY"
)

// Config holds the remote database connection settings.
type Config struct {
	BaseID    string        `env:"AIRTABLE_BASE_ID"`
	APIKey    string        `env:"AIRTABLE_API_KEY"`
	APIURL    string        `env:"AIRTABLE_API_URL" envDefault:"https://api.airtable.com/v0"`
	RateLimit float64       `env:"AIRTABLE_RATE_LIMIT" envDefault:"5"`
	Timeout   time.Duration `env:"AIRTABLE_TIMEOUT" envDefault:"60s"`
}

// ConfigurationError reports missing or invalid connection settings.
type ConfigurationError struct {
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing credentials: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// Load reads the connection settings from the process environment.
// Credentials are not checked here; see Validate.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the connection settings from the provided variables only.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("parse env: %v", err)}
	}
	c.BaseID = strings.TrimSpace(c.BaseID)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	return &c, nil
}

// Validate returns a *ConfigurationError when the credentials are incomplete.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigurationError{Missing: []string{BaseIDEnvVar, APIKeyEnvVar}}
	}

	var missing []string
	if c.BaseID == "" {
		missing = append(missing, BaseIDEnvVar)
	}
	if c.APIKey == "" {
		missing = append(missing, APIKeyEnvVar)
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}

	if c.APIURL == "" {
		return &ConfigurationError{Reason: "API URL is empty"}
	}
	if c.RateLimit < 0 {
		return &ConfigurationError{Reason: "rate limit must not be negative"}
	}
	return nil
}
