package trinity

// RuntimeBudget bundles the InvocationBudget and Watchdog guarding a single
// request, matching the entity described in spec §3. Stage runners check
// both before issuing a model call.
type RuntimeBudget struct {
	Invocations *InvocationBudget
	Deadline    *Watchdog
}

// NewRuntimeBudget builds a RuntimeBudget for a tier at normal (non-escalated)
// entry.
func NewRuntimeBudget(tier Tier) *RuntimeBudget {
	return &RuntimeBudget{
		Invocations: NewInvocationBudget(MaxInvocationsFor(tier)),
		Deadline:    NewWatchdog(DeadlineFor(tier)),
	}
}

// NewEscalatedRuntimeBudget builds a RuntimeBudget for a request that has
// escalated from originalTier; the deadline is 1.5x the original tier's
// deadline and the invocation cap is for the new (escalated) tier.
func NewEscalatedRuntimeBudget(originalTier, escalatedTier Tier) *RuntimeBudget {
	return &RuntimeBudget{
		Invocations: NewInvocationBudget(MaxInvocationsFor(escalatedTier)),
		Deadline:    NewWatchdog(EscalatedDeadlineFor(originalTier)),
	}
}

// Admit checks the watchdog then reserves one invocation slot. Every stage
// runner calls this before issuing a model call, per spec §4.3's "all stages
// consume the shared RuntimeBudget (watchdog.check + budget assertion)
// before issuing any model call".
func (b *RuntimeBudget) Admit() error {
	if b == nil {
		// Missing RuntimeBudget is fatal — no unbounded model calls (spec §4.3).
		return NewError(KindStructuredReasoningMissing, "missing runtime budget: unbounded model call refused")
	}
	if err := b.Deadline.Check(); err != nil {
		return err
	}
	return b.Invocations.Increment()
}
