package trinity

import "sync"

// maxInvocations per tier, see spec §3 RuntimeBudget. The §3 table lists
// simple=2, but §8 scenario 1 works the arithmetic and concludes the simple
// cap "must be ≥3" since even the minimal pipeline (Intake+Reasoning+Final)
// issues three model calls; this is resolved here in favor of 3, matching
// the scenario's own stated fix rather than the table's literal value (see
// DESIGN.md).
var tierMaxInvocations = map[Tier]int{
	TierSimple:   3,
	TierComplex:  3,
	TierCritical: 5,
}

// MaxInvocationsFor returns the invocation cap for a tier.
func MaxInvocationsFor(tier Tier) int {
	if n, ok := tierMaxInvocations[tier]; ok {
		return n
	}
	return tierMaxInvocations[TierSimple]
}

// InvocationBudget is a bounded counter of model calls for a single request.
// increment() fails with BudgetExhausted if it would exceed the cap.
type InvocationBudget struct {
	mu    sync.Mutex
	used  int
	limit int
}

// NewInvocationBudget creates a budget with the given cap.
func NewInvocationBudget(limit int) *InvocationBudget {
	if limit <= 0 {
		limit = 1
	}
	return &InvocationBudget{limit: limit}
}

// Increment records one model invocation. Returns BudgetExhausted if the
// cap would be exceeded; the counter is not advanced on failure.
func (b *InvocationBudget) Increment() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used+1 > b.limit {
		return NewError(KindBudgetExhausted, "invocation budget exhausted")
	}
	b.used++
	return nil
}

// Used returns the current invocation count.
func (b *InvocationBudget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Limit returns the configured cap.
func (b *InvocationBudget) Limit() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit
}
