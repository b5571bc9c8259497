package trinity

import "testing"

func TestInvocationBudgetIncrement(t *testing.T) {
	b := NewInvocationBudget(2)

	if err := b.Increment(); err != nil {
		t.Fatalf("first increment failed: %v", err)
	}
	if err := b.Increment(); err != nil {
		t.Fatalf("second increment failed: %v", err)
	}
	if err := b.Increment(); err == nil {
		t.Fatal("third increment should have failed")
	} else if !IsKind(err, KindBudgetExhausted) {
		t.Errorf("expected KindBudgetExhausted, got %v", err)
	}

	if got := b.Used(); got != 2 {
		t.Errorf("Used() = %d, want 2 (failed increment must not advance the counter)", got)
	}
}

func TestInvocationBudgetAccessors(t *testing.T) {
	b := NewInvocationBudget(5)
	if b.Limit() != 5 {
		t.Errorf("Limit() = %d, want 5", b.Limit())
	}
	if b.Used() != 0 {
		t.Errorf("Used() = %d, want 0", b.Used())
	}
}

func TestMaxInvocationsFor(t *testing.T) {
	if MaxInvocationsFor(TierSimple) != 3 {
		t.Error("simple tier should default to 3 (see §8 scenario 1 resolution in DESIGN.md)")
	}
	if MaxInvocationsFor(TierComplex) != 3 {
		t.Error("complex tier should default to 3")
	}
	if MaxInvocationsFor(TierCritical) != 5 {
		t.Error("critical tier should default to 5")
	}
}
