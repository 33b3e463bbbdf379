package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the back-office console
type Config struct {
	// API is the storefront API the console proxies against
	API APIConfig `yaml:"api"`

	// Console holds the local HTTP server settings
	Console ConsoleConfig `yaml:"console"`

	// Session holds session storage settings
	Session SessionConfig `yaml:"session"`

	// Activity holds the local audit log settings
	Activity ActivityConfig `yaml:"activity"`

	// Logging Configuration
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds storefront API configuration
type APIConfig struct {
	URL string `yaml:"url"`
}

// ConsoleConfig holds the console server configuration
type ConsoleConfig struct {
	Addr       string `yaml:"addr"`
	CORSOrigin string `yaml:"cors_origin"`
}

// SessionConfig holds session storage configuration
type SessionConfig struct {
	// File is the session file path; empty means the OS keychain
	File string `yaml:"file"`
}

// ActivityConfig holds the audit log configuration
type ActivityConfig struct {
	DatabaseURL   string `yaml:"database_url"`
	RetentionDays int    `yaml:"retention_days"`
	PruneSchedule string `yaml:"prune_schedule"` // cron expression
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// Load loads configuration from an optional console.yaml plus environment
// variables. Environment variables win over the file; defaults fill the rest.
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg := &Config{}

	if data, err := os.ReadFile("console.yaml"); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse console.yaml: %w", err)
		}
	}

	overrideString(&cfg.API.URL, "ATELIER_API_URL", "https://api.atelier.shop")
	overrideString(&cfg.Console.Addr, "CONSOLE_ADDR", "127.0.0.1:7316")
	overrideString(&cfg.Console.CORSOrigin, "CONSOLE_CORS_ORIGIN", "http://localhost:5173")
	overrideString(&cfg.Session.File, "ATELIER_SESSION_FILE", "")
	overrideString(&cfg.Activity.DatabaseURL, "ACTIVITY_DATABASE_URL", "activity.sqlite")
	overrideString(&cfg.Activity.PruneSchedule, "ACTIVITY_PRUNE_SCHEDULE", "0 3 * * *")
	overrideString(&cfg.Logging.Level, "LOG_LEVEL", "info")
	overrideString(&cfg.Logging.Format, "LOG_FORMAT", "console")

	if cfg.Activity.RetentionDays == 0 {
		cfg.Activity.RetentionDays = 90
	}

	return cfg, nil
}

// overrideString applies the environment value if set, then the default if
// the field is still empty
func overrideString(field *string, envKey, def string) {
	if v := os.Getenv(envKey); v != "" {
		*field = v
	}
	if *field == "" {
		*field = def
	}
}
