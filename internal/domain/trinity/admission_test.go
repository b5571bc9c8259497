package trinity

import (
	"context"
	"testing"
	"time"
)

func TestAdmissionAcquireRelease(t *testing.T) {
	a := NewAdmission(map[Tier]int{TierCritical: 1})

	release, err := a.Acquire(context.Background(), TierCritical)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if a.InUse(TierCritical) != 1 {
		t.Fatalf("InUse = %d, want 1", a.InUse(TierCritical))
	}

	release()
	if a.InUse(TierCritical) != 0 {
		t.Fatalf("InUse after release = %d, want 0", a.InUse(TierCritical))
	}

	// Releasing twice must be safe (no-op).
	release()
	if a.InUse(TierCritical) != 0 {
		t.Fatalf("double release corrupted semaphore: InUse = %d", a.InUse(TierCritical))
	}
}

func TestAdmissionBlocksAtCapacity(t *testing.T) {
	a := NewAdmission(map[Tier]int{TierCritical: 1})

	release, err := a.Acquire(context.Background(), TierCritical)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := a.Acquire(ctx, TierCritical); err == nil {
		t.Fatal("second acquire at capacity 1 should have blocked until context cancellation")
	} else if !IsKind(err, KindDeadlineExceeded) {
		t.Errorf("expected KindDeadlineExceeded, got %v", err)
	}
}

func TestAdmissionCapacityDefaults(t *testing.T) {
	a := NewAdmission(nil)
	if a.Capacity(TierSimple) != 8 {
		t.Errorf("simple capacity = %d, want 8", a.Capacity(TierSimple))
	}
	if a.Capacity(TierComplex) != 4 {
		t.Errorf("complex capacity = %d, want 4", a.Capacity(TierComplex))
	}
	if a.Capacity(TierCritical) != 2 {
		t.Errorf("critical capacity = %d, want 2", a.Capacity(TierCritical))
	}
}

func TestAdmissionReconfigureGrows(t *testing.T) {
	a := NewAdmission(map[Tier]int{TierCritical: 1})

	if !a.Reconfigure(TierCritical, 3) {
		t.Fatal("expected Reconfigure to succeed growing capacity")
	}
	if a.Capacity(TierCritical) != 3 {
		t.Errorf("Capacity = %d, want 3", a.Capacity(TierCritical))
	}

	r1, err := a.Acquire(context.Background(), TierCritical)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	r2, err := a.Acquire(context.Background(), TierCritical)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer r1()
	defer r2()
	if a.InUse(TierCritical) != 2 {
		t.Errorf("InUse = %d, want 2", a.InUse(TierCritical))
	}
}

func TestAdmissionReconfigureRefusesShrinkBelowInUse(t *testing.T) {
	a := NewAdmission(map[Tier]int{TierCritical: 3})

	r1, err := a.Acquire(context.Background(), TierCritical)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer r1()
	r2, err := a.Acquire(context.Background(), TierCritical)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer r2()

	if a.Reconfigure(TierCritical, 1) {
		t.Fatal("expected Reconfigure to refuse shrinking below 2 in-use slots")
	}
	if a.Capacity(TierCritical) != 3 {
		t.Errorf("Capacity should be unchanged after refused shrink, got %d", a.Capacity(TierCritical))
	}
}
