package trinity

import "context"

// Message is one turn of a backend conversation, generalized from the
// teacher's LLMMessage shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the uniform call shape for a plain chat-completion invocation.
type Request struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	MaxTokens   int       `json:"maxTokens"`
	Temperature float64   `json:"temperature"`
}

// Response is the uniform result of a plain chat-completion invocation.
type Response struct {
	Content          string `json:"content"`
	ModelUsed        string `json:"modelUsed"`
	RequestedModel   string `json:"requestedModel"`
	Fallback         bool   `json:"fallback"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
	ResponseID       string `json:"responseId"`
}

// TotalTokens sums prompt and completion tokens.
func (r Response) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// StreamChunk is a single delta emitted during a streaming call.
type StreamChunk struct {
	DeltaText string
	Done      bool
}

// ModelBackend is the uniform call surface for chat completion and
// schema-constrained reasoning (spec C5). One interface serves every stage
// runner; concrete adapters live in internal/infrastructure/llm.
type ModelBackend interface {
	// Generate performs a plain chat-completion call.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// GenerateStream performs a streaming chat-completion call, emitting
	// deltas on ch. The final Response summarizes the completed call.
	GenerateStream(ctx context.Context, req *Request, ch chan<- StreamChunk) (*Response, error)

	// GenerateStructured performs a schema-constrained call and decodes the
	// result into a ReasoningLedger. A nil ledger with a nil error is not a
	// valid return; implementations must return StructuredReasoningMissing
	// instead.
	GenerateStructured(ctx context.Context, req *Request, schema map[string]any) (*ReasoningLedger, string, error)
}

// Domain-derived temperatures used by the stage runners (spec §4.3).
const (
	TemperatureCreative   = 0.9
	TemperatureDiagnostic = 0.2
	TemperatureCode       = 0.1
	TemperatureExecution  = 0.0
	TemperatureNatural    = 0.5
	TemperatureDefault    = 0.2
)

// Domain is the kind of content a stage call is producing, used to pick a
// temperature.
type Domain string

const (
	DomainCreative   Domain = "creative"
	DomainDiagnostic Domain = "diagnostic"
	DomainCode       Domain = "code"
	DomainExecution  Domain = "execution"
	DomainNatural    Domain = "natural"
)

// TemperatureFor maps a domain to its fixed temperature.
func TemperatureFor(d Domain) float64 {
	switch d {
	case DomainCreative:
		return TemperatureCreative
	case DomainDiagnostic:
		return TemperatureDiagnostic
	case DomainCode:
		return TemperatureCode
	case DomainExecution:
		return TemperatureExecution
	case DomainNatural:
		return TemperatureNatural
	default:
		return TemperatureDefault
	}
}
