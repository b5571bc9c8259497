package trinity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// clearSystemPrompt demands JSON-only output of the five axes.
const clearSystemPrompt = `You are the CLEAR auditor. Score the supplied reasoning ledger on five axes,
each a number 0-5: clarity, leverage, efficiency, alignment, resilience.
Respond with JSON only, no prose, matching exactly:
{"clarity":0,"leverage":0,"efficiency":0,"alignment":0,"resilience":0,"overall":0}`

type clearRawResponse struct {
	Clarity    float64 `json:"clarity"`
	Leverage   float64 `json:"leverage"`
	Efficiency float64 `json:"efficiency"`
	Alignment  float64 `json:"alignment"`
	Resilience float64 `json:"resilience"`
	Overall    float64 `json:"overall"`
}

// RunClearAudit feeds the serialized ledger back into the model backend with
// a scoring system prompt. On any parse or backend failure it returns the
// all-zeros fallback — the audit is advisory, never fatal. overall is
// recomputed as the arithmetic mean of the five axes whenever the model
// returns 0 for it.
func RunClearAudit(ctx context.Context, backend ModelBackend, ledger *ReasoningLedger) ClearScore {
	serialized, err := json.Marshal(ledger)
	if err != nil {
		return ZeroScore()
	}

	req := &Request{
		Temperature: TemperatureFor(DomainDiagnostic),
		Messages: []Message{
			{Role: "system", Content: clearSystemPrompt},
			{Role: "user", Content: string(serialized)},
		},
	}

	resp, err := backend.Generate(ctx, req)
	if err != nil {
		return ZeroScore()
	}

	var raw clearRawResponse
	if err := json.Unmarshal([]byte(resp.Content), &raw); err != nil {
		return ZeroScore()
	}

	score := ClearScore{
		Clarity:    raw.Clarity,
		Leverage:   raw.Leverage,
		Efficiency: raw.Efficiency,
		Alignment:  raw.Alignment,
		Resilience: raw.Resilience,
		Overall:    raw.Overall,
	}.Clamp()

	if score.Overall == 0 {
		score.Overall = clamp((score.Clarity + score.Leverage + score.Efficiency + score.Alignment + score.Resilience) / 5)
	}

	return score
}

// AutoTuner tracks a running CLEAR escalation threshold. Updates are atomic
// with respect to concurrent requests (spec §5: "CLEAR auto-tuner state
// ... is shared across requests; updates are atomic"). Supplemented
// behavior: the threshold nudges toward the rolling mean of recent overall
// scores via an exponential moving average (see DESIGN.md).
type AutoTuner struct {
	mu        sync.Mutex
	threshold float64
	alpha     float64
}

// DefaultClearThreshold is the auto-tuned default from spec §4.6.
const DefaultClearThreshold = 3.0

// NewAutoTuner creates an auto-tuner seeded at the default threshold.
func NewAutoTuner() *AutoTuner {
	return &AutoTuner{threshold: DefaultClearThreshold, alpha: 0.1}
}

// Threshold returns the current escalation threshold.
func (t *AutoTuner) Threshold() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.threshold
}

// Observe folds a completed audit's overall score into the running
// threshold via EMA: threshold += alpha * (overall - threshold).
func (t *AutoTuner) Observe(overall float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := t.threshold + t.alpha*(overall-t.threshold)
	if next < clearThresholdMin {
		next = clearThresholdMin
	} else if next > clearThresholdMax {
		next = clearThresholdMax
	}
	t.threshold = next
}

// clearThresholdMin/Max bound both the EMA drift and any operator-supplied
// seed (spec §5 open question decision, see DESIGN.md).
const (
	clearThresholdMin = 2.0
	clearThresholdMax = 4.0
)

// Seed resets the running threshold to an operator-supplied value, clamped
// to the same [2.0, 4.0] band the EMA drift respects. Used to apply a
// hot-reloaded config value without restarting the gateway.
func (t *AutoTuner) Seed(threshold float64) {
	if threshold < clearThresholdMin {
		threshold = clearThresholdMin
	} else if threshold > clearThresholdMax {
		threshold = clearThresholdMax
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.threshold = threshold
}

var _ fmt.Stringer = clearScoreStringer{}

type clearScoreStringer struct{ ClearScore }

func (s clearScoreStringer) String() string {
	return fmt.Sprintf("clarity=%.2f leverage=%.2f efficiency=%.2f alignment=%.2f resilience=%.2f overall=%.2f",
		s.Clarity, s.Leverage, s.Efficiency, s.Alignment, s.Resilience, s.Overall)
}
