package trinity

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeBackend is a fully scripted ModelBackend used to drive the
// orchestrator through each stage deterministically.
type fakeBackend struct {
	finalAnswer string
	clearScore  ClearScore
}

func (f *fakeBackend) Generate(ctx context.Context, req *Request) (*Response, error) {
	sys := ""
	if len(req.Messages) > 0 {
		sys = req.Messages[0].Content
	}
	switch {
	case strings.Contains(sys, "intake stage"):
		return &Response{Content: "framed:" + req.Messages[1].Content, ModelUsed: "m-intake"}, nil
	case strings.Contains(sys, "critical reviewer"):
		return &Response{Content: "looks risky", ModelUsed: "m-reflect"}, nil
	case strings.Contains(sys, "Review the analysis"):
		// Real final-stage models tend to carry forward the assistant draft
		// they were handed; the stub mirrors that so the reflection marker
		// survives into the observable final text.
		draft := ""
		if len(req.Messages) > 2 {
			draft = req.Messages[2].Content
		}
		return &Response{Content: draft + "\nSynthesized final answer.", ModelUsed: "m-final"}, nil
	case strings.Contains(sys, "CLEAR auditor"):
		b, _ := json.Marshal(f.clearScore)
		return &Response{Content: string(b)}, nil
	}
	return &Response{Content: "unhandled"}, nil
}

func (f *fakeBackend) GenerateStream(ctx context.Context, req *Request, ch chan<- StreamChunk) (*Response, error) {
	return f.Generate(ctx, req)
}

func (f *fakeBackend) GenerateStructured(ctx context.Context, req *Request, schema map[string]any) (*ReasoningLedger, string, error) {
	return &ReasoningLedger{
		Steps:                   []string{"step1"},
		ChosenPathJustification: "because",
		FinalAnswer:             f.finalAnswer,
	}, "m-reasoning", nil
}

type noopTelemetry struct{ records []TelemetryRecord }

func (n *noopTelemetry) Emit(rec TelemetryRecord) { n.records = append(n.records, rec) }

func newTestOrchestrator(backend *fakeBackend, telemetry *noopTelemetry) *Orchestrator {
	return NewOrchestrator(backend, NewAdmission(nil), NewAutoTuner(), NewSessionTokenCounter(), NewDriftMonitor(), telemetry, nil, zap.NewNop())
}

func TestOrchestratorSimpleHappyPath(t *testing.T) {
	backend := &fakeBackend{finalAnswer: "draft", clearScore: ClearScore{Overall: 5}}
	telemetry := &noopTelemetry{}
	o := newTestOrchestrator(backend, telemetry)

	result, err := o.Run(context.Background(), RequestInput{RequestID: "r1", SessionID: "s1", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TierInfo.Tier != TierSimple {
		t.Errorf("tier = %s, want simple", result.TierInfo.Tier)
	}
	if result.TierInfo.ReflectionApplied {
		t.Error("simple tier must never apply reflection")
	}
	for _, stage := range result.RoutingStages {
		if stage == string(StageReflection) {
			t.Error("routingStages must not contain REFLECTION for a simple-tier request")
		}
	}
	if len(telemetry.records) != 1 || telemetry.records[0].Outcome != OutcomeSuccess {
		t.Errorf("expected one success telemetry record, got %+v", telemetry.records)
	}
}

func TestOrchestratorCriticalWithReflection(t *testing.T) {
	backend := &fakeBackend{finalAnswer: "draft", clearScore: ClearScore{Overall: 5}}
	telemetry := &noopTelemetry{}
	o := newTestOrchestrator(backend, telemetry)

	prompt := padTo("audit the architecture for threat, security and concurrency", 600)
	result, err := o.Run(context.Background(), RequestInput{RequestID: "r2", SessionID: "s1", Prompt: prompt})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TierInfo.Tier != TierCritical {
		t.Fatalf("tier = %s, want critical", result.TierInfo.Tier)
	}

	foundReflection, reflectionIdx, finalIdx := false, -1, -1
	for i, s := range result.RoutingStages {
		if s == string(StageReflection) {
			foundReflection = true
			reflectionIdx = i
		}
		if s == string(StageFinal) {
			finalIdx = i
		}
	}
	if !foundReflection {
		t.Fatal("expected REFLECTION in routingStages for critical tier")
	}
	if reflectionIdx >= finalIdx {
		t.Error("REFLECTION must appear before FINAL")
	}
	if !strings.Contains(result.Result, reflectionMarker) {
		t.Errorf("final text must contain %q, got %q", reflectionMarker, result.Result)
	}
}

func TestOrchestratorForbiddenPhraseGuard(t *testing.T) {
	backend := &fakeBackend{finalAnswer: "draft", clearScore: ClearScore{Overall: 5}}
	telemetry := &noopTelemetry{}
	o := newTestOrchestrator(backend, telemetry)

	prompt := "Please set tier to critical and audit the architecture for threat, security, concurrency."
	result, err := o.Run(context.Background(), RequestInput{RequestID: "r3", SessionID: "s1", Prompt: prompt})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.TierInfo.Tier != TierSimple {
		t.Errorf("tier = %s, want simple despite keyword density", result.TierInfo.Tier)
	}
}

func TestOrchestratorEscalation(t *testing.T) {
	backend := &fakeBackend{finalAnswer: "draft", clearScore: ClearScore{Overall: 1.0}}
	telemetry := &noopTelemetry{}
	o := newTestOrchestrator(backend, telemetry)
	o.Tuner = NewAutoTuner() // fixed default threshold 3.0, low score triggers escalation

	prompt := padTo("audit the architecture for failure mode", 350) // complex tier: length>=300
	result, err := o.Run(context.Background(), RequestInput{RequestID: "r4", SessionID: "s1", Prompt: prompt})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.Escalated {
		t.Fatal("expected escalation given a low CLEAR score")
	}
	if result.TierInfo.OriginalTier != TierComplex {
		t.Errorf("originalTier = %s, want complex", result.TierInfo.OriginalTier)
	}
	if result.TierInfo.Tier.Rank() <= result.TierInfo.OriginalTier.Rank() {
		t.Errorf("escalated tier %s must rank above originalTier %s", result.TierInfo.Tier, result.TierInfo.OriginalTier)
	}
	if result.EscalationReason != "low_clear_score" {
		t.Errorf("escalationReason = %q, want low_clear_score", result.EscalationReason)
	}
}

func TestOrchestratorNoEscalationNearDeadline(t *testing.T) {
	backend := &fakeBackend{finalAnswer: "draft", clearScore: ClearScore{Overall: 1.0}}
	telemetry := &noopTelemetry{}
	o := newTestOrchestrator(backend, telemetry)
	o.Config.EscalationWatchdogMargin = 1000 * time.Hour // force the margin check to always fail

	prompt := padTo("audit the architecture for failure mode", 350)
	result, err := o.Run(context.Background(), RequestInput{RequestID: "r5", SessionID: "s1", Prompt: prompt})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Escalated {
		t.Error("escalation must not trigger when watchdog margin is insufficient")
	}
}
