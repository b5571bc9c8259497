package trinity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ConversationRecord is what the orchestrator asks the audit-log
// collaborator (C14) to persist once a request completes successfully.
type ConversationRecord struct {
	RequestID string
	SessionID string
	Prompt    string
	Response  string
	Tier      Tier
	CreatedAt time.Time
}

// AuditLog is the interface-only collaborator named by spec C14. The core
// depends only on this narrow surface; a concrete gorm-backed adapter lives
// in internal/infrastructure/persistence.
type AuditLog interface {
	AppendConversation(ctx context.Context, rec ConversationRecord) error
}

// internalArchitecturalMarkers trigger internal-architectural mode (spec §4.6).
var internalArchitecturalMarkers = []string{"system directive", "internal", "evaluate", "architectural"}

func isInternalArchitectural(rawPrompt string) bool {
	lower := strings.ToLower(rawPrompt)
	for _, m := range internalArchitecturalMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// RequestInput is what a caller (HTTP handler) hands the orchestrator.
type RequestInput struct {
	RequestID      string
	SessionID      string
	Prompt         string
	MemoryContext  string
	RequestedModel string
}

// escalationContext is non-nil only for the single recursive child request
// an escalation spawns.
type escalationContext struct {
	OriginalTier Tier
	Reason       string
}

// OrchestratorConfig holds tunables that are not already owned by Admission,
// the AutoTuner, or the per-request RuntimeBudget.
type OrchestratorConfig struct {
	EscalationWatchdogMargin time.Duration
}

// DefaultOrchestratorConfig returns the spec's default tunables.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{EscalationWatchdogMargin: 5 * time.Second}
}

// Orchestrator runs the end-to-end Trinity pipeline (C9): classify, admit,
// intake, reasoning, optional reflection, CLEAR audit, optional single-hop
// escalation, final synthesis, translation, persistence, and telemetry.
type Orchestrator struct {
	Backend   ModelBackend
	Admission *Admission
	Tuner     *AutoTuner
	Tokens    *SessionTokenCounter
	Drift     *DriftMonitor
	Telemetry TelemetrySink
	Audit     AuditLog
	Logger    *zap.Logger
	Config    OrchestratorConfig
}

// NewOrchestrator wires the collaborators a full deployment needs. Audit,
// Telemetry, Tokens and Drift may be nil and are then skipped (Audit nil
// skips persistence, Telemetry nil skips telemetry emission); Backend,
// Admission, Tuner and Logger are required.
func NewOrchestrator(backend ModelBackend, admission *Admission, tuner *AutoTuner, tokens *SessionTokenCounter, drift *DriftMonitor, telemetry TelemetrySink, audit AuditLog, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		Backend:   backend,
		Admission: admission,
		Tuner:     tuner,
		Tokens:    tokens,
		Drift:     drift,
		Telemetry: telemetry,
		Audit:     audit,
		Logger:    logger,
		Config:    DefaultOrchestratorConfig(),
	}
}

// Run executes the pipeline for a top-level (non-escalated) request.
func (o *Orchestrator) Run(ctx context.Context, in RequestInput) (*TrinityResult, error) {
	return o.run(ctx, in, nil)
}

func (o *Orchestrator) run(ctx context.Context, in RequestInput, esc *escalationContext) (*TrinityResult, error) {
	start := time.Now()

	var tier Tier
	var budget *RuntimeBudget
	if esc != nil {
		// Escalation always moves to the single next tier above the
		// original classification — it never reclassifies the prompt.
		tier = NextTier(esc.OriginalTier)
		budget = NewEscalatedRuntimeBudget(esc.OriginalTier, tier)
	} else {
		classification := Classify(in.Prompt)
		if classification.GuardTripped {
			o.Logger.Warn("forbidden-phrase guard tripped, forcing simple tier",
				zap.String("requestId", in.RequestID))
		}
		tier = classification.Tier
		budget = NewRuntimeBudget(tier)
	}

	release, err := o.Admission.Acquire(ctx, tier)
	if err != nil {
		o.emitTelemetry(in.RequestID, tier, 0, false, time.Since(start), false, OutcomeFailed)
		return nil, err
	}
	released := false
	releaseOnce := func() {
		if !released {
			released = true
			release()
		}
	}
	defer releaseOnce()

	internalMode := isInternalArchitectural(in.Prompt)
	auditSafePrompt := in.Prompt

	var routingStages []string
	var fallback FallbackSummary

	intake, err := RunIntake(ctx, budget, o.Backend, auditSafePrompt, in.MemoryContext, in.RequestedModel)
	if err != nil {
		return o.fail(ctx, in, tier, start, err)
	}
	fallback.Intake = intake.Fallback
	routingStages = append(routingStages, fmt.Sprintf("INTAKE:%s", intake.Model))

	if internalMode && intake.Fallback {
		return o.fail(ctx, in, tier, start, NewError(KindStrictExecutionDowngrade, "model downgrade during intake in internal-architectural mode"))
	}

	reasoning, err := RunReasoning(ctx, budget, o.Backend, intake.Framed, tier)
	if err != nil {
		return o.fail(ctx, in, tier, start, err)
	}
	routingStages = append(routingStages, string(StageReasoning))

	draft := reasoning.Ledger.FinalAnswer
	reflectionApplied := false

	if tier == TierCritical {
		refl, rerr := RunReflection(ctx, budget, o.Backend, draft)
		if rerr != nil {
			o.Logger.Warn("reflection stage failed, continuing without augmentation",
				zap.String("requestId", in.RequestID), zap.Error(rerr))
		} else if refl.Applied {
			draft = ApplyReflection(draft, refl.Critique)
			reflectionApplied = true
			routingStages = append(routingStages, string(StageReflection))
		}
	}

	clearScore := RunClearAudit(ctx, o.Backend, reasoning.Ledger)
	o.Tuner.Observe(clearScore.Overall)

	if esc == nil && o.shouldEscalate(tier, clearScore, budget) {
		releaseOnce()
		child, cerr := o.run(ctx, in, &escalationContext{OriginalTier: tier, Reason: "low_clear_score"})
		if cerr != nil {
			return nil, cerr
		}
		child.Escalated = true
		child.TierInfo.OriginalTier = tier
		child.EscalationReason = "low_clear_score"
		return child, nil
	}

	final, err := RunFinal(ctx, budget, o.Backend, auditSafePrompt, in.MemoryContext, draft, in.RequestedModel)
	if err != nil {
		return o.fail(ctx, in, tier, start, err)
	}
	fallback.Final = final.Fallback
	routingStages = append(routingStages, string(StageFinal))

	if internalMode && final.Fallback {
		return o.fail(ctx, in, tier, start, NewError(KindStrictExecutionDowngrade, "model downgrade during final synthesis in internal-architectural mode"))
	}

	translated := Translate(final.Text, in.Prompt)

	if o.Audit != nil {
		if aerr := o.Audit.AppendConversation(ctx, ConversationRecord{
			RequestID: in.RequestID,
			SessionID: in.SessionID,
			Prompt:    in.Prompt,
			Response:  translated,
			Tier:      tier,
			CreatedAt: time.Now().UTC(),
		}); aerr != nil {
			o.Logger.Warn("audit append failed, continuing", zap.String("requestId", in.RequestID), zap.Error(aerr))
		}
	}

	totalTokens := intake.TotalTokens + final.Meta.TotalTokens
	if o.Tokens != nil {
		o.Tokens.Add(in.SessionID, totalTokens)
	}

	downgrade := in.RequestedModel != "" && final.Model != "" && in.RequestedModel != final.Model

	elapsed := time.Since(start)
	if o.Drift != nil {
		o.Drift.Record(elapsed)
	}

	o.emitTelemetry(in.RequestID, tier, totalTokens, downgrade, elapsed, reflectionApplied, OutcomeSuccess)

	score := clearScore
	result := &TrinityResult{
		Result:        translated,
		Module:        final.Model,
		RoutingStages: routingStages,
		TierInfo: TierInfo{
			Tier:              tier,
			ReflectionApplied: reflectionApplied,
		},
		GuardInfo: GuardInfo{
			BudgetUsed:  budget.Invocations.Used(),
			BudgetLimit: budget.Invocations.Limit(),
			Elapsed:     budget.Deadline.Elapsed(),
			DeadlineMs:  budget.Deadline.Limit().Milliseconds(),
		},
		FallbackSummary: fallback,
		ClearAudit:      &score,
		Confidence:      ConfidenceFromScore(score.Overall),
		Meta:            final.Meta,
	}

	return result, nil
}

// shouldEscalate implements the escalation policy of spec §4.6.
func (o *Orchestrator) shouldEscalate(tier Tier, score ClearScore, budget *RuntimeBudget) bool {
	if tier == TierCritical {
		return false
	}
	if score.Overall >= o.Tuner.Threshold() {
		return false
	}
	if budget.Deadline.Remaining() <= o.Config.EscalationWatchdogMargin {
		return false
	}
	return true
}

func (o *Orchestrator) fail(ctx context.Context, in RequestInput, tier Tier, start time.Time, err error) (*TrinityResult, error) {
	outcome := OutcomeFailed
	if ctx.Err() != nil {
		outcome = OutcomeCancelled
	}
	o.emitTelemetry(in.RequestID, tier, 0, false, time.Since(start), false, outcome)
	return nil, err
}

func (o *Orchestrator) emitTelemetry(requestID string, tier Tier, totalTokens int, downgrade bool, elapsed time.Duration, reflectionApplied bool, outcome Outcome) {
	if o.Telemetry == nil {
		return
	}
	o.Telemetry.Emit(TelemetryRecord{
		RequestID:         requestID,
		Tier:              tier,
		TotalTokens:       totalTokens,
		DowngradeDetected: downgrade,
		LatencyMs:         elapsed.Milliseconds(),
		ReflectionApplied: reflectionApplied,
		Outcome:           outcome,
	})
}
