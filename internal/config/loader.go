// Package config provides centralized configuration management for csafsync.
// Settings come from built-in defaults, an optional config file, CSAFSYNC_*
// environment variables, and command-line flags, merged by viper and decoded
// into the typed Config struct.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// ConfigName is the XDG application name used for config and data paths.
	ConfigName = "csafsync"

	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "CSAFSYNC"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// FromViper decodes the merged viper settings into a typed Config and stores
// it as the current application configuration.
//
// This function is safe to call multiple times (e.g., after flag binding).
func FromViper(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	setConfig(cfg)

	return cfg, nil
}

// Validate checks constraints the decoder cannot express.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	switch strings.TrimSpace(c.Fetch.Mode) {
	case "", "all", "dates":
	default:
		return fmt.Errorf("invalid fetch mode %q: must be \"all\" or \"dates\"", c.Fetch.Mode)
	}

	if c.Fetch.Days < 0 {
		return fmt.Errorf("fetch days must not be negative, got %d", c.Fetch.Days)
	}

	switch strings.TrimSpace(strings.ToLower(c.Output.Format)) {
	case "", "table", "json":
	default:
		return fmt.Errorf("invalid output format %q: must be \"table\" or \"json\"", c.Output.Format)
	}

	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(ConfigName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + ConfigName + ".db"
	}
	return filepath.Join(dataDir, ConfigName+".db")
}
