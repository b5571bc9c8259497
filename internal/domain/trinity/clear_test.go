package trinity

import (
	"context"
	"testing"
)

type stubBackend struct {
	generateFn func(ctx context.Context, req *Request) (*Response, error)
}

func (s *stubBackend) Generate(ctx context.Context, req *Request) (*Response, error) {
	return s.generateFn(ctx, req)
}
func (s *stubBackend) GenerateStream(ctx context.Context, req *Request, ch chan<- StreamChunk) (*Response, error) {
	return s.generateFn(ctx, req)
}
func (s *stubBackend) GenerateStructured(ctx context.Context, req *Request, schema map[string]any) (*ReasoningLedger, string, error) {
	return nil, "", nil
}

func TestClampIdempotent(t *testing.T) {
	for _, x := range []float64{-10, -0.01, 0, 2.5, 5, 5.01, 100} {
		once := clamp(x)
		twice := clamp(once)
		if once != twice {
			t.Errorf("clamp(%v) = %v, clamp(clamp(%v)) = %v", x, once, x, twice)
		}
	}
}

func TestRunClearAuditSuccess(t *testing.T) {
	backend := &stubBackend{generateFn: func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{Content: `{"clarity":4,"leverage":3,"efficiency":4,"alignment":5,"resilience":2,"overall":0}`}, nil
	}}

	score := RunClearAudit(context.Background(), backend, &ReasoningLedger{FinalAnswer: "x"})
	want := (4.0 + 3.0 + 4.0 + 5.0 + 2.0) / 5
	if score.Overall != want {
		t.Errorf("Overall = %v, want recomputed mean %v", score.Overall, want)
	}
}

func TestRunClearAuditFallbackOnBackendError(t *testing.T) {
	backend := &stubBackend{generateFn: func(ctx context.Context, req *Request) (*Response, error) {
		return nil, errBoom
	}}

	score := RunClearAudit(context.Background(), backend, &ReasoningLedger{})
	if score != ZeroScore() {
		t.Errorf("expected all-zeros fallback, got %+v", score)
	}
}

func TestRunClearAuditFallbackOnMalformedJSON(t *testing.T) {
	backend := &stubBackend{generateFn: func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{Content: "not json"}, nil
	}}

	score := RunClearAudit(context.Background(), backend, &ReasoningLedger{})
	if score != ZeroScore() {
		t.Errorf("expected all-zeros fallback, got %+v", score)
	}
}

func TestAutoTunerObserve(t *testing.T) {
	tuner := NewAutoTuner()
	start := tuner.Threshold()
	tuner.Observe(5.0)
	if tuner.Threshold() <= start {
		t.Error("threshold should move toward a high observed score")
	}
}

func TestAutoTunerObserveClampsToBand(t *testing.T) {
	tuner := NewAutoTuner()
	for i := 0; i < 200; i++ {
		tuner.Observe(5.0)
	}
	if got := tuner.Threshold(); got > clearThresholdMax {
		t.Errorf("threshold = %v, want <= %v", got, clearThresholdMax)
	}
}

func TestAutoTunerSeedClamps(t *testing.T) {
	tuner := NewAutoTuner()
	tuner.Seed(10.0)
	if got := tuner.Threshold(); got != clearThresholdMax {
		t.Errorf("Seed(10.0) = %v, want clamped to %v", got, clearThresholdMax)
	}
	tuner.Seed(0.0)
	if got := tuner.Threshold(); got != clearThresholdMin {
		t.Errorf("Seed(0.0) = %v, want clamped to %v", got, clearThresholdMin)
	}
	tuner.Seed(3.5)
	if got := tuner.Threshold(); got != 3.5 {
		t.Errorf("Seed(3.5) = %v, want 3.5", got)
	}
}

var errBoom = &Error{Kind: KindUpstreamUnavailable, Message: "boom"}
