package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/csafsync/csafsync/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatSummary renders a run summary as a table, with a failures section
// appended when any advisory could not be fetched.
func (f *TableFormatter) FormatSummary(summary *core.RunSummary) (string, error) {
	if summary == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Run", "Mode", "Window", "Listed", "Fetched", "Failed", "Duration"})
	t.AppendRow(table.Row{
		summary.RunID,
		string(summary.Mode),
		windowLabel(summary),
		summary.Listed,
		summary.Fetched,
		summary.Failed,
		durationLabel(summary),
	})

	rendered := t.Render()

	if len(summary.Failures) > 0 {
		ft := table.NewWriter()
		ft.SetStyle(table.StyleRounded)
		ft.AppendHeader(table.Row{"Advisory", "Reason"})
		for _, failure := range summary.Failures {
			ft.AppendRow(table.Row{failure.AdvisoryID, failure.Reason})
		}
		rendered += "\n" + ft.Render()
	}

	return rendered, nil
}

// FormatQuotaStates renders persisted quota windows as a table.
func FormatQuotaStates(states []core.QuotaState, now time.Time) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Tier", "Recorded Calls", "Updated"})

	for _, state := range states {
		t.AppendRow(table.Row{
			state.Tier,
			len(state.Calls),
			ageLabel(state.UpdatedAt, now),
		})
	}

	return t.Render()
}

func windowLabel(summary *core.RunSummary) string {
	if summary.StartDate == "" || summary.EndDate == "" {
		return "-"
	}
	return fmt.Sprintf("%s .. %s", summary.StartDate, summary.EndDate)
}

func durationLabel(summary *core.RunSummary) string {
	if summary.CompletedAt.IsZero() || summary.StartedAt.IsZero() {
		return "-"
	}
	return summary.CompletedAt.Sub(summary.StartedAt).Round(time.Millisecond).String()
}

func ageLabel(updatedAt time.Time, now time.Time) string {
	if updatedAt.IsZero() {
		return "-"
	}
	age := now.Sub(updatedAt)
	if age < 0 {
		age = 0
	}
	return fmt.Sprintf("%s ago", age.Round(time.Second))
}
