package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the reminder service.
// Environment variables are parsed from the REMINDER_ prefix,
// e.g. REMINDER_HTTP_PORT, REMINDER_DB_DRIVER.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage: "auto" picks postgres when a DSN is set, sqlite otherwise.
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/reminders.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Presentation boundary. Instants are stored and compared in absolute
	// time; this zone is applied only when formatting times for the user.
	DisplayTimeZone string `envconfig:"DISPLAY_TIMEZONE" default:"Asia/Singapore"`

	// Lookup policy
	CandidateLimit   int `envconfig:"CANDIDATE_LIMIT" default:"5"`
	ToleranceMinutes int `envconfig:"TOLERANCE_MINUTES" default:"1"`

	// Chat completion service used for small-talk passthrough.
	// Left unconfigured, the router answers small talk with canned copy.
	ChatBaseURL string `envconfig:"CHAT_BASE_URL" default:""`
	ChatModel   string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	ChatAPIKey  string `envconfig:"CHAT_API_KEY" default:""`

	// Health probing
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"5"`
}

// ResolveDefaults derives DBDriver when set to "auto" and validates choices.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}

	allowedDB := map[string]bool{"sqlite": true, "postgres": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}
	if _, err := time.LoadLocation(c.DisplayTimeZone); err != nil {
		return fmt.Errorf("invalid DISPLAY_TIMEZONE %q: %w", c.DisplayTimeZone, err)
	}
	if c.CandidateLimit <= 0 {
		return fmt.Errorf("CANDIDATE_LIMIT must be positive")
	}
	if c.ToleranceMinutes <= 0 {
		return fmt.Errorf("TOLERANCE_MINUTES must be positive")
	}
	return nil
}

// Location returns the display time zone. ResolveDefaults has already
// validated it, so failure here is a programming error.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimeZone)
	if err != nil {
		panic(fmt.Sprintf("config: display time zone %q: %v", c.DisplayTimeZone, err))
	}
	return loc
}

// Tolerance returns the fuzzy-match window as a duration.
func (c *Config) Tolerance() time.Duration {
	return time.Duration(c.ToleranceMinutes) * time.Minute
}

// New creates a Config by parsing environment variables with the
// REMINDER_ prefix.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("REMINDER", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting creates a config suitable for tests.
func NewForTesting() *Config {
	cfg := &Config{
		Environment:               "testing",
		HTTPPort:                  8080,
		DBDriver:                  "sqlite",
		SQLitePath:                "",
		DisplayTimeZone:           "Asia/Singapore",
		CandidateLimit:            5,
		ToleranceMinutes:          1,
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 5,
	}
	return cfg
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
