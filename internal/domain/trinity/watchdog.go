package trinity

import (
	"sync"
	"time"
)

// tierDeadlines are the per-tier wall-clock limits from spec §4.2.
var tierDeadlines = map[Tier]time.Duration{
	TierSimple:   30 * time.Second,
	TierComplex:  60 * time.Second,
	TierCritical: 120 * time.Second,
}

// DeadlineFor returns the base deadline duration for a tier.
func DeadlineFor(tier Tier) time.Duration {
	if d, ok := tierDeadlines[tier]; ok {
		return d
	}
	return tierDeadlines[TierSimple]
}

// escalatedDeadlineMultiplier is applied to the original tier's deadline when
// a request has been escalated (spec §4.2: "escalated requests receive
// extended deadline").
const escalatedDeadlineMultiplier = 1.5

// EscalatedDeadlineFor returns the deadline an escalated request receives,
// computed from the original tier (not the tier it escalated to).
func EscalatedDeadlineFor(originalTier Tier) time.Duration {
	base := DeadlineFor(originalTier)
	return time.Duration(float64(base) * escalatedDeadlineMultiplier)
}

// Watchdog enforces a wall-clock deadline for a single request. check() fails
// with DeadlineExceeded once now >= deadline.
type Watchdog struct {
	mu       sync.Mutex
	start    time.Time
	deadline time.Time
	limit    time.Duration
	now      func() time.Time
}

// NewWatchdog creates a watchdog with the given deadline duration, starting
// the clock immediately.
func NewWatchdog(limit time.Duration) *Watchdog {
	return newWatchdogWithClock(limit, time.Now)
}

// newWatchdogWithClock is used by tests to inject a deterministic clock.
func newWatchdogWithClock(limit time.Duration, now func() time.Time) *Watchdog {
	start := now()
	return &Watchdog{
		start:    start,
		deadline: start.Add(limit),
		limit:    limit,
		now:      now,
	}
}

// Check fails with DeadlineExceeded when now >= deadline.
func (w *Watchdog) Check() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.now().Before(w.deadline) {
		return NewError(KindDeadlineExceeded, "watchdog deadline exceeded")
	}
	return nil
}

// Elapsed returns time elapsed since the watchdog started.
func (w *Watchdog) Elapsed() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now().Sub(w.start)
}

// Limit returns the configured deadline duration.
func (w *Watchdog) Limit() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.limit
}

// Remaining returns the time left before the deadline, never negative.
func (w *Watchdog) Remaining() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	rem := w.deadline.Sub(w.now())
	if rem < 0 {
		return 0
	}
	return rem
}
