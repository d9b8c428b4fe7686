package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("api.base_url", "https://apix.cisco.com/security/advisories/v2/all")
	v.SetDefault("api.token_url", "https://id.cisco.com/oauth2/default/v1/token")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.page_size", 100)
	v.SetDefault("api.max_attempts", 3)
	v.SetDefault("api.retry_backoff", "500ms")

	v.SetDefault("fetch.path", "downloaded_csaf")
	v.SetDefault("fetch.mode", "all")
	v.SetDefault("fetch.days", 2)

	v.SetDefault("store.driver", "libsql")
	v.SetDefault("logging.level", "info")
	v.SetDefault("output.format", "table")

	return v
}

func TestFromViper(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := FromViper(testViper())
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "https://apix.cisco.com/security/advisories/v2/all", cfg.API.BaseURL)
		assert.Equal(t, "https://id.cisco.com/oauth2/default/v1/token", cfg.API.TokenURL)
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)
		assert.Equal(t, 100, cfg.API.PageSize)
		assert.Equal(t, 3, cfg.API.MaxAttempts)
		assert.Equal(t, 500*time.Millisecond, cfg.API.RetryBackoff)

		assert.Equal(t, "downloaded_csaf", cfg.Fetch.Path)
		assert.Equal(t, "all", cfg.Fetch.Mode)
		assert.Equal(t, 2, cfg.Fetch.Days)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "table", cfg.Output.Format)
	})

	t.Run("StorePathFallsBackToDataDir", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())

		cfg, err := FromViper(testViper())
		require.NoError(t, err)
		assert.Equal(t, DefaultStorePath(), cfg.Store.Path)
	})

	t.Run("ExplicitStoreURLSkipsPathFallback", func(t *testing.T) {
		v := testViper()
		v.Set("store.url", "libsql://example.turso.io")

		cfg, err := FromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "libsql://example.turso.io", cfg.Store.URL)
		assert.Empty(t, cfg.Store.Path)
	})

	t.Run("DurationFromString", func(t *testing.T) {
		v := testViper()
		v.Set("api.timeout", "45s")
		v.Set("api.retry_backoff", "2s")

		cfg, err := FromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 45*time.Second, cfg.API.Timeout)
		assert.Equal(t, 2*time.Second, cfg.API.RetryBackoff)
	})

	t.Run("InvalidModeRejected", func(t *testing.T) {
		v := testViper()
		v.Set("fetch.mode", "weekly")

		_, err := FromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid fetch mode")
	})

	t.Run("NegativeDaysRejected", func(t *testing.T) {
		v := testViper()
		v.Set("fetch.days", -1)

		_, err := FromViper(v)
		require.Error(t, err)
	})

	t.Run("InvalidOutputFormatRejected", func(t *testing.T) {
		v := testViper()
		v.Set("output.format", "xml")

		_, err := FromViper(v)
		require.Error(t, err)
	})
}

func TestGetConfig(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := FromViper(testViper())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.API.BaseURL, retrieved.API.BaseURL)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}
