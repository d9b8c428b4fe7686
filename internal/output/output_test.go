package output

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/csafsync/csafsync/internal/core"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func sampleSummary() *core.RunSummary {
	started := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	return &core.RunSummary{
		RunID:       "run-1234",
		Mode:        core.ModeDates,
		StartDate:   "2025-03-08",
		EndDate:     "2025-03-15",
		OutputDir:   "downloaded_csaf",
		StartedAt:   started,
		CompletedAt: started.Add(42 * time.Second),
		Listed:      10,
		Fetched:     9,
		Failed:      1,
		Failures: []core.Failure{
			{AdvisoryID: "cisco-sa-broken", Reason: "request failed: status 500"},
		},
	}
}

func TestFormatters(t *testing.T) {
	summary := sampleSummary()

	tableRendered, err := NewFormatter(FormatTable).FormatSummary(summary)
	require.NoError(t, err)
	require.Contains(t, tableRendered, "RUN")
	require.Contains(t, tableRendered, "run-1234")
	require.Contains(t, tableRendered, "2025-03-08 .. 2025-03-15")
	require.Contains(t, tableRendered, "cisco-sa-broken")

	jsonRendered, err := NewFormatter(FormatJSON).FormatSummary(summary)
	require.NoError(t, err)
	require.Contains(t, jsonRendered, "\"run_id\": \"run-1234\"")
	require.Contains(t, jsonRendered, "\"fetched\": 9")
}

func TestTableOmitsWindowForAllMode(t *testing.T) {
	summary := sampleSummary()
	summary.Mode = core.ModeAll
	summary.StartDate = ""
	summary.EndDate = ""
	summary.Failures = nil
	summary.Failed = 0

	rendered, err := NewFormatter(FormatTable).FormatSummary(summary)
	require.NoError(t, err)
	require.Contains(t, rendered, "all")
	require.NotContains(t, rendered, "..")
}

func TestNilSummaryRendersEmpty(t *testing.T) {
	rendered, err := NewFormatter(FormatTable).FormatSummary(nil)
	require.NoError(t, err)
	require.Empty(t, rendered)

	rendered, err = NewFormatter(FormatJSON).FormatSummary(nil)
	require.NoError(t, err)
	require.Empty(t, rendered)
}

func TestFormatQuotaStates(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	states := []core.QuotaState{
		{
			Tier:      "day",
			Calls:     []time.Time{now.Add(-time.Hour), now.Add(-time.Minute)},
			UpdatedAt: now.Add(-time.Minute),
		},
	}

	rendered := FormatQuotaStates(states, now)
	require.Contains(t, rendered, "day")
	require.Contains(t, rendered, "2")
	require.Contains(t, rendered, "1m0s ago")
}
