package trinity

import (
	"context"
	"sync"
)

// tierAdmissionCaps are the suggested per-tier concurrency caps from spec §4.2.
var tierAdmissionCaps = map[Tier]int{
	TierSimple:   8,
	TierComplex:  4,
	TierCritical: 2,
}

// Release must be invoked exactly once on every exit path of a request that
// acquired an admission slot — success, failure, or escalation hand-off.
// Calling it more than once is a no-op.
type Release func()

// Admission is a bounded concurrency gate per tier. Acquire suspends until a
// slot for the given tier is available or the context is cancelled (the
// watchdog bounds how long a caller will wait, per spec §5 timeouts).
type Admission struct {
	mu    sync.RWMutex
	slots map[Tier]chan struct{}
}

// NewAdmission creates the per-tier semaphores using the suggested caps.
// Pass an empty overrides map to use the defaults, or supply per-tier caps.
func NewAdmission(overrides map[Tier]int) *Admission {
	a := &Admission{slots: make(map[Tier]chan struct{}, len(tierAdmissionCaps))}
	for tier, cap := range tierAdmissionCaps {
		n := cap
		if v, ok := overrides[tier]; ok && v > 0 {
			n = v
		}
		a.slots[tier] = make(chan struct{}, n)
	}
	return a
}

// Reconfigure swaps in a new cap for tier, used to apply a hot-reloaded
// per-tier admission cap (spec §4.2) without a restart. The new channel
// starts with one token per slot currently in use, and each holder later
// releases from whichever channel is current for its tier. It refuses to
// shrink below the number of slots in use and returns false, leaving the
// old cap in place; a later reload can apply the smaller cap.
func (a *Admission) Reconfigure(tier Tier, n int) bool {
	if n <= 0 {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, ok := a.slots[tier]
	if ok && len(cur) > n {
		return false
	}
	next := make(chan struct{}, n)
	if ok {
		for i := 0; i < len(cur); i++ {
			next <- struct{}{}
		}
	}
	a.slots[tier] = next
	return true
}

// Acquire suspends until a slot for tier is available, returning a release
// handle. The caller must invoke the handle on every exit path.
func (a *Admission) Acquire(ctx context.Context, tier Tier) (Release, error) {
	a.mu.RLock()
	sem, ok := a.slots[tier]
	a.mu.RUnlock()
	if !ok {
		tier = TierSimple
		a.mu.RLock()
		sem = a.slots[TierSimple]
		a.mu.RUnlock()
	}

	select {
	case sem <- struct{}{}:
		released := false
		return func() {
			if released {
				return
			}
			released = true
			a.mu.RLock()
			cur := a.slots[tier]
			a.mu.RUnlock()
			select {
			case <-cur:
			default:
			}
		}, nil
	case <-ctx.Done():
		return nil, Wrap(KindDeadlineExceeded, "admission wait cancelled", ctx.Err())
	}
}

// InUse reports how many slots are currently held for a tier (for telemetry).
func (a *Admission) InUse(tier Tier) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sem, ok := a.slots[tier]
	if !ok {
		return 0
	}
	return len(sem)
}

// Capacity reports the configured cap for a tier.
func (a *Admission) Capacity(tier Tier) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sem, ok := a.slots[tier]
	if !ok {
		return 0
	}
	return cap(sem)
}
