//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/csafsync/csafsync/internal/config"
	"github.com/csafsync/csafsync/internal/core"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestQuotaStateRoundTrip(t *testing.T) {
	store := openMemoryStore(t)
	ctx := context.Background()

	missing, err := store.GetQuotaState(ctx, "day")
	require.NoError(t, err)
	require.Nil(t, missing)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	state := &core.QuotaState{
		Tier:      "day",
		Calls:     []time.Time{now.Add(-time.Hour), now},
		UpdatedAt: now,
	}
	require.NoError(t, store.UpdateQuotaState(ctx, state))

	loaded, err := store.GetQuotaState(ctx, "day")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Calls, 2)
	require.Equal(t, now, loaded.Calls[1])
}

func TestListAndResetQuotaStates(t *testing.T) {
	store := openMemoryStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpdateQuotaState(ctx, &core.QuotaState{Tier: "day", Calls: []time.Time{now}, UpdatedAt: now}))

	states, err := store.ListQuotaStates(ctx, QuotaQuery{All: true})
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.Equal(t, "day", states[0].Tier)

	deleted, err := store.ResetQuotaStates(ctx, QuotaQuery{Tier: "day"})
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	states, err = store.ListQuotaStates(ctx, QuotaQuery{All: true})
	require.NoError(t, err)
	require.Empty(t, states)
}

func TestManifestRecordAndCount(t *testing.T) {
	store := openMemoryStore(t)
	ctx := context.Background()

	entry := core.ManifestEntry{
		AdvisoryID: "cisco-sa-example",
		RunID:      "run-1",
		Size:       128,
		SHA256:     "abc123",
		FetchedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.RecordAdvisory(ctx, entry))

	// Re-fetch replaces the row instead of duplicating it.
	entry.RunID = "run-2"
	require.NoError(t, store.RecordAdvisory(ctx, entry))

	count, err := store.CountAdvisories(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
