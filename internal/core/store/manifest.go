package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/csafsync/csafsync/internal/core"
)

// RecordAdvisory upserts a manifest row for a persisted advisory document.
// Re-fetching an advisory replaces its previous manifest entry.
func (s *Store) RecordAdvisory(ctx context.Context, entry core.ManifestEntry) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(entry.AdvisoryID) == "" {
		return errors.New("advisory id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO manifest (advisory_id, run_id, size, sha256, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(advisory_id) DO UPDATE SET
			run_id = excluded.run_id,
			size = excluded.size,
			sha256 = excluded.sha256,
			fetched_at = excluded.fetched_at
	`, entry.AdvisoryID, entry.RunID, entry.Size, entry.SHA256, entry.FetchedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store manifest entry: %w", err)
	}

	return nil
}

// CountAdvisories returns the number of advisories tracked in the manifest.
func (s *Store) CountAdvisories(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	row := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM manifest`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count manifest entries: %w", err)
	}
	return count, nil
}
