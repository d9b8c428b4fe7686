package output

import (
	"encoding/json"

	"github.com/csafsync/csafsync/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatSummary renders a run summary as JSON.
func (f *JSONFormatter) FormatSummary(summary *core.RunSummary) (string, error) {
	if summary == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(summary, "", "  ")
	} else {
		data, err = json.Marshal(summary)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
