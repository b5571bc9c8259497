package trinity

import "time"

// ReasoningLedger is the schema-constrained output of the Reasoning stage.
// A request that completes the reasoning stage always has a non-null ledger;
// a null ledger is a fatal StructuredReasoningMissing error, never a
// recoverable state.
type ReasoningLedger struct {
	Steps                    []string `json:"reasoning_steps"`
	Assumptions              []string `json:"assumptions"`
	Constraints              []string `json:"constraints"`
	Tradeoffs                []string `json:"tradeoffs"`
	AlternativesConsidered   []string `json:"alternatives_considered"`
	ChosenPathJustification  string   `json:"chosen_path_justification"`
	FinalAnswer              string   `json:"final_answer"`
}

// ReasoningSchema is the fixed JSON schema the model backend is asked to
// conform to for the Reasoning stage (spec §4.3).
var ReasoningSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"reasoning_steps":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"assumptions":                map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"constraints":                map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"tradeoffs":                  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"alternatives_considered":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"chosen_path_justification":  map[string]any{"type": "string"},
		"final_answer":               map[string]any{"type": "string"},
	},
	"required": []string{"reasoning_steps", "chosen_path_justification", "final_answer"},
}

// ClearScore is the five-axis advisory score of a reasoning ledger, each
// clamped to [0,5].
type ClearScore struct {
	Clarity    float64 `json:"clarity"`
	Leverage   float64 `json:"leverage"`
	Efficiency float64 `json:"efficiency"`
	Alignment  float64 `json:"alignment"`
	Resilience float64 `json:"resilience"`
	Overall    float64 `json:"overall"`
}

// clamp bounds x to [0,5]. clamp(clamp(x)) == clamp(x) by construction.
func clamp(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 5 {
		return 5
	}
	return x
}

// Clamp returns a copy of the score with every axis (including Overall)
// clamped to [0,5].
func (s ClearScore) Clamp() ClearScore {
	return ClearScore{
		Clarity:    clamp(s.Clarity),
		Leverage:   clamp(s.Leverage),
		Efficiency: clamp(s.Efficiency),
		Alignment:  clamp(s.Alignment),
		Resilience: clamp(s.Resilience),
		Overall:    clamp(s.Overall),
	}
}

// ZeroScore is the all-zeros fallback used when the CLEAR audit fails.
func ZeroScore() ClearScore {
	return ClearScore{}
}

// RoutingStage tags one hop of the pipeline in TrinityResult.RoutingStages.
type RoutingStage string

const (
	StageIntakePrefix RoutingStage = "INTAKE"
	StageReasoning    RoutingStage = "REASONING"
	StageReflection   RoutingStage = "REFLECTION?"
	StageFinal        RoutingStage = "FINAL"
)

// TierInfo carries tier telemetry for TrinityResult.
type TierInfo struct {
	Tier               Tier   `json:"tier"`
	OriginalTier       Tier   `json:"originalTier,omitempty"`
	ReflectionApplied  bool   `json:"reflectionApplied"`
}

// GuardInfo carries budget/watchdog telemetry for TrinityResult.
type GuardInfo struct {
	BudgetUsed  int           `json:"budgetUsed"`
	BudgetLimit int           `json:"budgetLimit"`
	Elapsed     time.Duration `json:"elapsed"`
	DeadlineMs  int64         `json:"deadlineMs"`
}

// FallbackSummary records which stages used a fallback model.
type FallbackSummary struct {
	Intake    bool `json:"intake,omitempty"`
	Reasoning bool `json:"reasoning,omitempty"`
	Final     bool `json:"final,omitempty"`
}

// ResultMeta carries token accounting and upstream response identity.
type ResultMeta struct {
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	TotalTokens      int       `json:"totalTokens"`
	ResponseID       string    `json:"responseId,omitempty"`
	Created          time.Time `json:"created"`
}

// TrinityResult is the envelope returned by the Orchestrator.
type TrinityResult struct {
	Result          string          `json:"result"`
	Module          string          `json:"module"`
	RoutingStages   []string        `json:"routingStages"`
	TierInfo        TierInfo        `json:"tierInfo"`
	GuardInfo       GuardInfo       `json:"guardInfo"`
	FallbackSummary FallbackSummary `json:"fallbackSummary"`
	ClearAudit      *ClearScore     `json:"clearAudit,omitempty"`
	Confidence      float64         `json:"confidence"`
	Escalated       bool            `json:"escalated"`
	EscalationReason string         `json:"escalationReason,omitempty"`
	Meta            ResultMeta      `json:"meta"`
}

// ConfidenceFromScore derives a 0..1 confidence from a CLEAR overall score.
func ConfidenceFromScore(overall float64) float64 {
	return clamp(overall) / 5.0
}
