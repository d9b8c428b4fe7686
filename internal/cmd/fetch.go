package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/csafsync/csafsync/internal/config"
	"github.com/csafsync/csafsync/internal/core"
	"github.com/csafsync/csafsync/internal/core/auth"
	"github.com/csafsync/csafsync/internal/core/client"
	"github.com/csafsync/csafsync/internal/core/fetcher"
	"github.com/csafsync/csafsync/internal/core/quota"
	"github.com/csafsync/csafsync/internal/observability"
	"github.com/csafsync/csafsync/internal/output"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download CSAF advisory documents",
	Long: `Download CSAF advisory documents to a local directory.

In "all" mode the complete advisory listing is fetched. In "dates" mode only
advisories last published within the trailing --days window are fetched.
Individual advisory failures are reported in the summary without aborting
the run.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().String("path", "downloaded_csaf", "Directory to write advisory documents to")
	fetchCmd.Flags().String("mode", "all", "Listing mode: all, dates")
	fetchCmd.Flags().Int("days", 2, "Lookback window in days for dates mode")
	fetchCmd.Flags().String("token", "", "Pre-supplied bearer token (skips the initial token exchange)")
	fetchCmd.Flags().String("credentials", "", "Path to credentials JSON with CLIENT_ID and CLIENT_SECRET")
	fetchCmd.Flags().String("output-format", "", "Summary format: table, json")
	fetchCmd.Flags().String("out", "", "Write the run summary to a file (default stdout)")
	fetchCmd.Flags().Bool("no-store", false, "Skip the local state database (quota state will not persist)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	if cfg == nil {
		return errors.New("config not loaded")
	}

	ctx := cmd.Context()

	path := flagOrConfig(cmd, "path", cfg.Fetch.Path)
	mode := strings.ToLower(flagOrConfig(cmd, "mode", cfg.Fetch.Mode))

	days, err := cmd.Flags().GetInt("days")
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("days") && cfg.Fetch.Days > 0 {
		days = cfg.Fetch.Days
	}

	query := core.Query{Mode: core.Mode(mode), Days: days}
	switch query.Mode {
	case core.ModeAll, core.ModeDates:
	default:
		return fmt.Errorf("invalid mode %q, use %q or %q", mode, core.ModeAll, core.ModeDates)
	}

	token, err := cmd.Flags().GetString("token")
	if err != nil {
		return err
	}

	credentialsPath := flagOrConfig(cmd, "credentials", cfg.Credentials.File)
	creds, credsErr := auth.LoadCredentials(credentialsPath)
	if credsErr != nil {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("no bearer token supplied and credentials could not be loaded: %w", credsErr)
		}
		// With a pre-supplied token the credentials file is optional, but a
		// rejected token can then not be refreshed.
		observability.CLILogger.Debug("Credentials unavailable, relying on supplied token",
			zap.String("path", credentialsPath), zap.Error(credsErr))
		creds = core.Credentials{}
	}

	tokens := &auth.Manager{
		TokenURL:    cfg.API.TokenURL,
		Credentials: creds,
		Timeout:     cfg.API.Timeout,
	}
	tokens.Seed(token)

	noStore, err := cmd.Flags().GetBool("no-store")
	if err != nil {
		return err
	}

	limiter := quota.New()
	docFetcher := &fetcher.Fetcher{
		Logger:   observability.CLILogger,
		PageSize: cfg.API.PageSize,
	}

	if !noStore {
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		limiter.Store = db
		if err := limiter.Restore(ctx); err != nil {
			observability.CLILogger.Warn("Could not restore quota state", zap.Error(err))
		}
		docFetcher.Manifest = db
	}

	docFetcher.Client = &client.Client{
		BaseURL:     cfg.API.BaseURL,
		Limiter:     limiter,
		Tokens:      tokens,
		MaxAttempts: cfg.API.MaxAttempts,
		Backoff:     cfg.API.RetryBackoff,
		Timeout:     cfg.API.Timeout,
	}

	observability.CLILogger.Info("Starting fetch",
		zap.String("mode", mode),
		zap.String("path", path))

	summary, runErr := docFetcher.Run(ctx, query, path)

	if summary != nil {
		format, err := output.ParseFormat(flagOrConfig(cmd, "output-format", cfg.Output.Format))
		if err != nil {
			return err
		}
		rendered, err := output.NewFormatter(format).FormatSummary(summary)
		if err != nil {
			return err
		}

		outPath, err := cmd.Flags().GetString("out")
		if err != nil {
			return err
		}
		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if rendered != "" {
			fmt.Fprintln(sink.writer, rendered)
		}

		observability.CLILogger.Info("Fetch finished",
			zap.String("run_id", summary.RunID),
			zap.Int("listed", summary.Listed),
			zap.Int("fetched", summary.Fetched),
			zap.Int("failed", summary.Failed),
			zap.Any("quota_usage", limiter.Usage()))
	}

	return runErr
}

// flagOrConfig prefers an explicitly set flag over the configured value.
func flagOrConfig(cmd *cobra.Command, name string, configured string) string {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return configured
	}
	if !cmd.Flags().Changed(name) && strings.TrimSpace(configured) != "" {
		return configured
	}
	return value
}
