package trinity

import (
	"testing"
	"time"
)

func TestWatchdogCheckWithinDeadline(t *testing.T) {
	clock := time.Unix(0, 0)
	now := func() time.Time { return clock }
	w := newWatchdogWithClock(30*time.Second, now)

	if err := w.Check(); err != nil {
		t.Fatalf("Check() at t=0 failed: %v", err)
	}

	clock = clock.Add(29 * time.Second)
	if err := w.Check(); err != nil {
		t.Fatalf("Check() at t=29s failed: %v", err)
	}
}

func TestWatchdogCheckExceeded(t *testing.T) {
	clock := time.Unix(0, 0)
	now := func() time.Time { return clock }
	w := newWatchdogWithClock(30*time.Second, now)

	clock = clock.Add(30 * time.Second)
	err := w.Check()
	if err == nil {
		t.Fatal("Check() at exactly the deadline should fail")
	}
	if !IsKind(err, KindDeadlineExceeded) {
		t.Errorf("expected KindDeadlineExceeded, got %v", err)
	}
}

func TestDeadlineForTiers(t *testing.T) {
	if DeadlineFor(TierSimple) != 30*time.Second {
		t.Error("simple deadline should be 30s")
	}
	if DeadlineFor(TierComplex) != 60*time.Second {
		t.Error("complex deadline should be 60s")
	}
	if DeadlineFor(TierCritical) != 120*time.Second {
		t.Error("critical deadline should be 120s")
	}
}

func TestEscalatedDeadlineFor(t *testing.T) {
	got := EscalatedDeadlineFor(TierComplex)
	want := 90 * time.Second // 60s * 1.5
	if got != want {
		t.Errorf("EscalatedDeadlineFor(complex) = %v, want %v", got, want)
	}
}

func TestWatchdogRemaining(t *testing.T) {
	clock := time.Unix(0, 0)
	now := func() time.Time { return clock }
	w := newWatchdogWithClock(10*time.Second, now)

	clock = clock.Add(4 * time.Second)
	if rem := w.Remaining(); rem != 6*time.Second {
		t.Errorf("Remaining() = %v, want 6s", rem)
	}

	clock = clock.Add(20 * time.Second)
	if rem := w.Remaining(); rem != 0 {
		t.Errorf("Remaining() past deadline = %v, want 0", rem)
	}
}
