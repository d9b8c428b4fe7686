package quota

import (
	"context"
	"sync"
	"time"

	"github.com/csafsync/csafsync/internal/core"
)

// API ceilings fixed by the provider. Not configurable at runtime.
const (
	SecondLimit = 5
	MinuteLimit = 30
	DayLimit    = 5000
)

// Tier names used for persistence and diagnostics.
const (
	TierSecond = "second"
	TierMinute = "minute"
	TierDay    = "day"
)

// Window is one rolling quota interval with a maximum permitted call count.
// Invariant: at any instant the number of recorded calls inside Duration of
// "now" never exceeds MaxCalls.
type Window struct {
	Tier     string
	Duration time.Duration
	MaxCalls int

	calls []time.Time
}

// prune drops timestamps that have fallen out of the window. Pruning is lazy:
// it happens only when the window is inspected, never between calls.
func (w *Window) prune(now time.Time) {
	cutoff := now.Add(-w.Duration)
	idx := 0
	for idx < len(w.calls) && !w.calls[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.calls = append(w.calls[:0], w.calls[idx:]...)
	}
}

// waitFor returns how long until the oldest recorded call leaves the window,
// or zero when the window has free capacity.
func (w *Window) waitFor(now time.Time) time.Duration {
	if len(w.calls) < w.MaxCalls {
		return 0
	}
	return w.calls[0].Add(w.Duration).Sub(now)
}

// Count returns the number of calls currently inside the window.
func (w *Window) Count(now time.Time) int {
	w.prune(now)
	return len(w.calls)
}

// Store persists window state so that slow tiers survive process restarts.
type Store interface {
	GetQuotaState(ctx context.Context, tier string) (*core.QuotaState, error)
	UpdateQuotaState(ctx context.Context, state *core.QuotaState) error
}

// Limiter serializes dispatch across three independent quota windows.
// Acquire blocks until a call is permitted under all tiers simultaneously;
// the check-then-record sequence runs under a single critical section so two
// callers can never both see free quota and both proceed.
type Limiter struct {
	// Clock is injectable for tests. Defaults to time.Now in UTC.
	Clock func() time.Time

	// Store, when set, persists the day tier after each recorded call.
	// The daily ceiling outlives a single run; second and minute windows
	// are too short to be worth persisting.
	Store Store

	mu      sync.Mutex
	windows []*Window
	sleep   func(ctx context.Context, d time.Duration) error
}

// New returns a limiter enforcing the provider's three fixed quota tiers.
func New() *Limiter {
	return &Limiter{
		windows: []*Window{
			{Tier: TierSecond, Duration: time.Second, MaxCalls: SecondLimit},
			{Tier: TierMinute, Duration: time.Minute, MaxCalls: MinuteLimit},
			{Tier: TierDay, Duration: 24 * time.Hour, MaxCalls: DayLimit},
		},
	}
}

// Acquire blocks until the next call is permitted under every tier, then
// records it into all three windows. Tiers are checked in a fixed order
// (second, minute, day); a wake from one tier's wait can still be blocked by
// another, so all tiers are re-checked after every sleep. The wait is
// interruptible through ctx.
func (l *Limiter) Acquire(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		l.mu.Lock()
		now := l.now()

		var wait time.Duration
		for _, w := range l.windows {
			w.prune(now)
			if d := w.waitFor(now); d > 0 {
				wait = d
				break
			}
		}

		if wait <= 0 {
			for _, w := range l.windows {
				w.calls = append(w.calls, now)
			}
			l.persistDayLocked(ctx, now)
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		if err := l.doSleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Restore loads persisted day-tier state from the store, discarding stamps
// that have already fallen out of the window. Call once before the first
// Acquire.
func (l *Limiter) Restore(ctx context.Context) error {
	if l.Store == nil {
		return nil
	}

	state, err := l.Store.GetQuotaState(ctx, TierDay)
	if err != nil {
		return err
	}
	if state == nil || len(state.Calls) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	day := l.window(TierDay)
	if day == nil {
		return nil
	}
	day.calls = append(day.calls[:0], state.Calls...)
	day.prune(l.now())
	return nil
}

// Usage reports how many calls each tier currently holds.
func (l *Limiter) Usage() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	usage := make(map[string]int, len(l.windows))
	for _, w := range l.windows {
		usage[w.Tier] = w.Count(now)
	}
	return usage
}

func (l *Limiter) window(tier string) *Window {
	for _, w := range l.windows {
		if w.Tier == tier {
			return w
		}
	}
	return nil
}

// persistDayLocked writes the day window to the store. Best effort: a store
// failure must not block dispatch.
func (l *Limiter) persistDayLocked(ctx context.Context, now time.Time) {
	if l.Store == nil {
		return
	}
	day := l.window(TierDay)
	if day == nil {
		return
	}

	calls := make([]time.Time, len(day.calls))
	copy(calls, day.calls)
	_ = l.Store.UpdateQuotaState(ctx, &core.QuotaState{
		Tier:      TierDay,
		Calls:     calls,
		UpdatedAt: now,
	})
}

func (l *Limiter) doSleep(ctx context.Context, d time.Duration) error {
	if l.sleep != nil {
		return l.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Limiter) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}
