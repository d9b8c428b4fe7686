package config

import (
	"time"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then an optional YAML config file,
// then CSAFSYNC_* environment variables, then command-line flags.
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Store       StoreConfig       `mapstructure:"store"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Output      OutputConfig      `mapstructure:"output"`
}

// APIConfig contains advisory API endpoints and dispatch tuning.
type APIConfig struct {
	// BaseURL is the advisory listing endpoint. Individual documents and the
	// date-windowed listing live under it.
	BaseURL string `mapstructure:"base_url"`

	// TokenURL is the OAuth2 client-credentials token endpoint.
	TokenURL string `mapstructure:"token_url"`

	Timeout      time.Duration `mapstructure:"timeout"`
	PageSize     int           `mapstructure:"page_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// CredentialsConfig locates the API credentials file.
type CredentialsConfig struct {
	// File is a JSON file with CLIENT_ID and CLIENT_SECRET keys.
	File string `mapstructure:"file"`
}

// FetchConfig contains defaults for the fetch command.
type FetchConfig struct {
	// Path is the directory advisory documents are written to.
	Path string `mapstructure:"path"`

	// Mode selects the listing query: "all" or "dates".
	Mode string `mapstructure:"mode"`

	// Days is the lookback window for dates mode.
	Days int `mapstructure:"days"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// OutputConfig controls how run summaries are rendered.
type OutputConfig struct {
	// Format is "table" or "json".
	Format string `mapstructure:"format"`
}
