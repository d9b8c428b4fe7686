package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/csafsync/csafsync/internal/core"
)

// GetQuotaState returns the persisted window state for a tier, or nil when
// none has been stored.
func (s *Store) GetQuotaState(ctx context.Context, tier string) (*core.QuotaState, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tier = strings.TrimSpace(tier)
	if tier == "" {
		return nil, errors.New("tier is required")
	}

	var (
		calls     string
		updatedAt int64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT calls, updated_at
		FROM quota_state
		WHERE tier = ?
	`, tier)
	if err := row.Scan(&calls, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch quota state: %w", err)
	}

	stamps, err := decodeCalls(calls)
	if err != nil {
		return nil, fmt.Errorf("fetch quota state: %w", err)
	}

	return &core.QuotaState{
		Tier:      tier,
		Calls:     stamps,
		UpdatedAt: time.Unix(updatedAt, 0).UTC(),
	}, nil
}

// UpdateQuotaState persists window state for a tier.
func (s *Store) UpdateQuotaState(ctx context.Context, state *core.QuotaState) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if state == nil || strings.TrimSpace(state.Tier) == "" {
		return errors.New("quota state with a tier is required")
	}

	calls, err := encodeCalls(state.Calls)
	if err != nil {
		return fmt.Errorf("store quota state: %w", err)
	}

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO quota_state (tier, calls, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(tier) DO UPDATE SET
			calls = excluded.calls,
			updated_at = excluded.updated_at
	`, state.Tier, calls, updatedAt.Unix())
	if err != nil {
		return fmt.Errorf("store quota state: %w", err)
	}

	return nil
}

// QuotaQuery selects quota tiers for admin operations.
type QuotaQuery struct {
	All  bool
	Tier string
}

func (q QuotaQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Tier) != "" {
		return nil
	}
	return errors.New("must specify --all or --tier")
}

func (q QuotaQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	return "WHERE tier = ?", []any{strings.TrimSpace(q.Tier)}, nil
}

// ListQuotaStates returns persisted quota windows matching the query.
func (s *Store) ListQuotaStates(ctx context.Context, q QuotaQuery) ([]core.QuotaState, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT tier, calls, updated_at
		FROM quota_state
		%s
		ORDER BY tier
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list quota state: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	states := []core.QuotaState{}
	for rows.Next() {
		var (
			tier      string
			calls     string
			updatedAt int64
		)
		if err := rows.Scan(&tier, &calls, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan quota state: %w", err)
		}

		stamps, err := decodeCalls(calls)
		if err != nil {
			return nil, fmt.Errorf("list quota state: %w", err)
		}

		states = append(states, core.QuotaState{
			Tier:      tier,
			Calls:     stamps,
			UpdatedAt: time.Unix(updatedAt, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quota state: %w", err)
	}

	return states, nil
}

// ResetQuotaStates deletes persisted quota windows matching the query and
// returns the number of deleted rows.
func (s *Store) ResetQuotaStates(ctx context.Context, q QuotaQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM quota_state
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset quota state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset quota state: %w", err)
	}
	return affected, nil
}

// Timestamps are stored as a JSON array of unix seconds. Second resolution
// is enough for the persisted day tier.
func encodeCalls(stamps []time.Time) (string, error) {
	seconds := make([]int64, len(stamps))
	for i, stamp := range stamps {
		seconds[i] = stamp.UTC().Unix()
	}
	payload, err := json.Marshal(seconds)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func decodeCalls(raw string) ([]time.Time, error) {
	var seconds []int64
	if err := json.Unmarshal([]byte(raw), &seconds); err != nil {
		return nil, err
	}

	stamps := make([]time.Time, len(seconds))
	for i, value := range seconds {
		stamps[i] = time.Unix(value, 0).UTC()
	}
	return stamps, nil
}
