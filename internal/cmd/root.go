package cmd

import (
	"fmt"
	"os"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/csafsync/csafsync/internal/config"
	"github.com/csafsync/csafsync/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.ConfigName,
	Short: "Download CSAF security advisories from the Cisco PSIRT openVuln API",
	Long: `csafsync downloads CSAF advisory documents from the Cisco PSIRT openVuln
API, honoring the published API rate limits across runs.

Use the subcommands to perform specific operations.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", config.ConfigName))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from flag
		viper.SetConfigFile(cfgFile)
	} else {
		appConfigDir := gfconfig.GetAppConfigDir(config.ConfigName)
		if appConfigDir == "" {
			// Fall back to home directory
			home, err := os.UserHomeDir()
			if err != nil {
				ExitWithCodeStderr(foundry.ExitFileNotFound, "Could not find home directory", err)
			}
			viper.AddConfigPath(home)
			viper.SetConfigName("." + config.ConfigName)
		} else {
			viper.AddConfigPath(appConfigDir)
			viper.SetConfigName("config")
		}

		// Also search in current directory
		viper.AddConfigPath("./config")
		viper.SetConfigType("yaml")
	}

	// Read in environment variables with the CSAFSYNC_ prefix
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()

	// Set defaults before reading so missing files still yield a full config
	setDefaults()

	configFileFound := true
	if err := viper.ReadInConfig(); err != nil {
		// It's OK if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Error reading config file", err)
		}
		configFileFound = false
	}

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		ExitWithCodeStderr(foundry.ExitConfigInvalid, "Invalid configuration", err)
	}

	// Initialize CLI logger early so commands can use it
	observability.InitCLILogger(config.ConfigName, cfg.Logging.Level, verbose)

	if verbose {
		if configFileFound {
			observability.CLILogger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
		} else {
			observability.CLILogger.Debug("No config file found, using defaults and environment variables")
		}
	}
}

// setDefaults sets default configuration values
func setDefaults() {
	// API defaults
	viper.SetDefault("api.base_url", "https://apix.cisco.com/security/advisories/v2/all")
	viper.SetDefault("api.token_url", "https://id.cisco.com/oauth2/default/v1/token")
	viper.SetDefault("api.timeout", "30s")
	viper.SetDefault("api.page_size", 100)
	viper.SetDefault("api.max_attempts", 3)
	viper.SetDefault("api.retry_backoff", "500ms")

	// Credentials defaults
	viper.SetDefault("credentials.file", "credentials.json")

	// Fetch defaults
	viper.SetDefault("fetch.path", "downloaded_csaf")
	viper.SetDefault("fetch.mode", "all")
	viper.SetDefault("fetch.days", 2)

	// Logging defaults
	viper.SetDefault("logging.level", "info")

	// Store defaults
	viper.SetDefault("store.driver", "libsql")
	viper.SetDefault("store.path", config.DefaultStorePath())
	viper.SetDefault("store.url", "")
	viper.SetDefault("store.auth_token", "")

	// Output defaults
	viper.SetDefault("output.format", "table")
}
