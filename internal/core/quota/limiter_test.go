package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/csafsync/csafsync/internal/core"
)

type memoryQuotaStore struct {
	mu    sync.Mutex
	state map[string]*core.QuotaState
}

func (m *memoryQuotaStore) GetQuotaState(ctx context.Context, tier string) (*core.QuotaState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	return m.state[tier], nil
}

func (m *memoryQuotaStore) UpdateQuotaState(ctx context.Context, state *core.QuotaState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		m.state = make(map[string]*core.QuotaState)
	}
	m.state[state.Tier] = state
	return nil
}

// simulatedLimiter returns a limiter whose sleeps advance a fake clock
// instead of blocking.
func simulatedLimiter(start time.Time) (*Limiter, *time.Time) {
	now := start
	limiter := New()
	limiter.Clock = func() time.Time { return now }
	limiter.sleep = func(ctx context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}
	return limiter, &now
}

func TestAcquireRecordsIntoAllTiers(t *testing.T) {
	limiter, _ := simulatedLimiter(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, limiter.Acquire(context.Background()))

	usage := limiter.Usage()
	require.Equal(t, 1, usage[TierSecond])
	require.Equal(t, 1, usage[TierMinute])
	require.Equal(t, 1, usage[TierDay])
}

func TestSixthCallWaitsForSecondWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter, now := simulatedLimiter(start)

	for i := 0; i < 6; i++ {
		require.NoError(t, limiter.Acquire(context.Background()))
	}

	// The 6th call must not land until a full second has elapsed since
	// the 1st.
	require.GreaterOrEqual(t, now.Sub(start), time.Second)
}

func TestWindowInvariantHoldsUnderBurst(t *testing.T) {
	limiter, now := simulatedLimiter(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 40; i++ {
		require.NoError(t, limiter.Acquire(context.Background()))

		current := *now
		for _, w := range limiter.windows {
			require.LessOrEqual(t, w.Count(current), w.MaxCalls, "tier %s over quota", w.Tier)
		}
	}
}

func TestWakeCanStillBeBlockedByAnotherTier(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter, now := simulatedLimiter(start)
	limiter.windows = []*Window{
		{Tier: TierSecond, Duration: time.Second, MaxCalls: 1},
		{Tier: TierMinute, Duration: time.Minute, MaxCalls: 2},
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Acquire(context.Background()))
	}

	// The 3rd call clears the second tier after 1s but must then wait out
	// the minute tier as well.
	require.GreaterOrEqual(t, now.Sub(start), time.Minute)
}

func TestAcquireInterruptibleByContext(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter, _ := simulatedLimiter(start)
	limiter.windows = []*Window{
		{Tier: TierSecond, Duration: time.Second, MaxCalls: 1},
	}

	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	limiter.sleep = nil // real sleep path, should observe cancellation

	err := limiter.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRestoreDiscardsExpiredStamps(t *testing.T) {
	now := time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC)
	store := &memoryQuotaStore{state: map[string]*core.QuotaState{
		TierDay: {
			Tier: TierDay,
			Calls: []time.Time{
				now.Add(-30 * time.Hour), // stale, outside the day window
				now.Add(-2 * time.Hour),
				now.Add(-time.Minute),
			},
		},
	}}

	limiter := New()
	limiter.Clock = func() time.Time { return now }
	limiter.Store = store

	require.NoError(t, limiter.Restore(context.Background()))
	require.Equal(t, 2, limiter.Usage()[TierDay])
}

func TestAcquirePersistsDayTier(t *testing.T) {
	store := &memoryQuotaStore{}
	limiter, _ := simulatedLimiter(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter.Store = store

	require.NoError(t, limiter.Acquire(context.Background()))
	require.NoError(t, limiter.Acquire(context.Background()))

	state, err := store.GetQuotaState(context.Background(), TierDay)
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Len(t, state.Calls, 2)
}
