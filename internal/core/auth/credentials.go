package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/csafsync/csafsync/internal/core"
)

// LoadCredentials reads a credentials file of the form
// {"CLIENT_ID": "...", "CLIENT_SECRET": "..."}.
func LoadCredentials(path string) (core.Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Credentials{}, fmt.Errorf("read credentials file: %w", err)
	}

	var parsed struct {
		ClientID     string `json:"CLIENT_ID"`
		ClientSecret string `json:"CLIENT_SECRET"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return core.Credentials{}, fmt.Errorf("parse credentials file: %w", err)
	}

	creds := core.Credentials{
		ClientID:     strings.TrimSpace(parsed.ClientID),
		ClientSecret: strings.TrimSpace(parsed.ClientSecret),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return core.Credentials{}, fmt.Errorf("credentials file %s is missing CLIENT_ID or CLIENT_SECRET", path)
	}

	return creds, nil
}
