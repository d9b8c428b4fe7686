package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/csafsync/csafsync/internal/core/store"
	"github.com/csafsync/csafsync/internal/output"
)

var (
	rateLimitListOutput string
	rateLimitListOut    string
	rateLimitListOutDir string
	rateLimitListAll    bool
	rateLimitListTier   string
)

type quotaStateView struct {
	Tier      string    `json:"tier"`
	Calls     int       `json:"calls"`
	UpdatedAt time.Time `json:"updated_at"`
}

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted quota window state",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitListOutput)
		if err != nil {
			return err
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.QuotaQuery{
			All:  rateLimitListAll,
			Tier: strings.TrimSpace(rateLimitListTier),
		}
		if !query.All && query.Tier == "" {
			query.All = true
		}

		states, err := db.ListQuotaStates(cmd.Context(), query)
		if err != nil {
			return err
		}

		outPath := strings.TrimSpace(rateLimitListOut)
		outDir := strings.TrimSpace(rateLimitListOutDir)
		if outPath != "" && outDir != "" {
			return fmt.Errorf("--out and --out-dir are mutually exclusive")
		}

		ext := outputExtension(format)
		if outDir != "" {
			var err error
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("rate-limit.list.%s", ext))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if format == output.FormatJSON {
			views := make([]quotaStateView, 0, len(states))
			for _, state := range states {
				views = append(views, quotaStateView{
					Tier:      state.Tier,
					Calls:     len(state.Calls),
					UpdatedAt: state.UpdatedAt,
				})
			}
			payload, err := json.MarshalIndent(views, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(sink.writer, string(payload))
			return err
		}

		if len(states) == 0 {
			_, err = fmt.Fprintln(sink.writer, "(no persisted quota state)")
			return err
		}

		_, err = fmt.Fprintln(sink.writer, output.FormatQuotaStates(states, time.Now().UTC()))
		return err
	},
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	rateLimitListCmd.Flags().StringVar(&rateLimitListOut, "out", "", "Write output to a file (default stdout)")
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutDir, "out-dir", "", "Write output to a directory")
	rateLimitListCmd.Flags().BoolVar(&rateLimitListAll, "all", false, "List all tiers")
	rateLimitListCmd.Flags().StringVar(&rateLimitListTier, "tier", "", "List a single tier (second, minute, day)")
}
