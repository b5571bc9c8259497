package trinity

import "strings"

// Tier is the complexity class assigned to a request at ingress. It scales
// invocation budget, watchdog deadline, and admission concurrency.
type Tier string

const (
	TierSimple   Tier = "simple"
	TierComplex  Tier = "complex"
	TierCritical Tier = "critical"
)

// forbiddenPhrases prevents prompt-injected tier elevation.
var forbiddenPhrases = []string{
	"set tier to",
	"override reasoning",
	"treat as critical",
}

// tierKeywords are counted (substring occurrence) when deciding complex/critical.
var tierKeywords = []string{
	"audit",
	"architecture",
	"failure mode",
	"threat",
	"infrastructure",
	"security",
	"concurrency",
	"downgrade detection",
	"watchdog",
	"multi-tenant",
}

// ClassifyResult carries the tier plus whether the forbidden-phrase guard fired,
// so callers can warn-log without re-running the classifier.
type ClassifyResult struct {
	Tier          Tier
	GuardTripped  bool
	KeywordHits   int
	NormalizedLen int
}

// Classify maps a prompt to a tier. Deterministic and whitespace-insensitive:
// normalization collapses whitespace runs before any measurement is taken.
func Classify(prompt string) ClassifyResult {
	normalized := normalize(prompt)

	for _, phrase := range forbiddenPhrases {
		if strings.Contains(normalized, phrase) {
			return ClassifyResult{Tier: TierSimple, GuardTripped: true, NormalizedLen: len(normalized)}
		}
	}

	hits := countKeywordHits(normalized)
	length := len(normalized)

	var tier Tier
	switch {
	case length >= 500 && hits >= 2:
		tier = TierCritical
	case length >= 300 || hits >= 1:
		tier = TierComplex
	default:
		tier = TierSimple
	}

	return ClassifyResult{Tier: tier, KeywordHits: hits, NormalizedLen: length}
}

func normalize(prompt string) string {
	lower := strings.ToLower(prompt)
	fields := strings.Fields(lower)
	return strings.Join(fields, " ")
}

func countKeywordHits(normalized string) int {
	hits := 0
	for _, kw := range tierKeywords {
		if strings.Contains(normalized, kw) {
			hits++
		}
	}
	return hits
}

// NextTier returns the next tier in the escalation chain. critical is a no-op.
func NextTier(t Tier) Tier {
	switch t {
	case TierSimple:
		return TierComplex
	case TierComplex:
		return TierCritical
	default:
		return TierCritical
	}
}

// Rank orders tiers for comparisons (used by the escalation invariant check).
func (t Tier) Rank() int {
	switch t {
	case TierSimple:
		return 0
	case TierComplex:
		return 1
	case TierCritical:
		return 2
	default:
		return -1
	}
}
