package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/trinity-ai/gateway/internal/domain/service"
	"github.com/trinity-ai/gateway/internal/domain/trinity"
)

// TrinityBackend adapts the provider Router (built for the agent loop's
// tool-calling LLMRequest/LLMResponse shape) to trinity.ModelBackend, the
// uniform surface the reasoning pipeline's stage runners call through.
type TrinityBackend struct {
	Router *Router
}

// NewTrinityBackend wraps an already-populated Router.
func NewTrinityBackend(router *Router) *TrinityBackend {
	return &TrinityBackend{Router: router}
}

var _ trinity.ModelBackend = (*TrinityBackend)(nil)

func toLLMMessages(msgs []trinity.Message) []service.LLMMessage {
	out := make([]service.LLMMessage, len(msgs))
	for i, m := range msgs {
		out[i] = service.LLMMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// Generate implements trinity.ModelBackend.
func (b *TrinityBackend) Generate(ctx context.Context, req *trinity.Request) (*trinity.Response, error) {
	resp, err := b.Router.Generate(ctx, &service.LLMRequest{
		Messages:    toLLMMessages(req.Messages),
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}
	return &trinity.Response{
		Content:        resp.Content,
		ModelUsed:      resp.ModelUsed,
		RequestedModel: req.Model,
		Fallback:       resp.ModelUsed != "" && resp.ModelUsed != req.Model,
		CompletionTokens: resp.TokensUsed,
	}, nil
}

// GenerateStream implements trinity.ModelBackend.
func (b *TrinityBackend) GenerateStream(ctx context.Context, req *trinity.Request, ch chan<- trinity.StreamChunk) (*trinity.Response, error) {
	deltaCh := make(chan service.StreamChunk, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range deltaCh {
			ch <- trinity.StreamChunk{DeltaText: d.Content, Done: d.Done}
		}
	}()

	resp, err := b.Router.GenerateStream(ctx, &service.LLMRequest{
		Messages:    toLLMMessages(req.Messages),
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}, deltaCh)
	close(deltaCh)
	<-done
	if err != nil {
		return nil, err
	}
	return &trinity.Response{
		Content:        resp.Content,
		ModelUsed:      resp.ModelUsed,
		RequestedModel: req.Model,
		CompletionTokens: resp.TokensUsed,
	}, nil
}

// structuredInstruction is appended to the prompt when no native
// JSON-schema mode is available from the underlying provider. The stage
// runners already build prompts that describe the ledger shape in prose
// (see stages.go); this only adds the hard constraint that the reply must
// be JSON and nothing else.
const structuredInstruction = "\n\nRespond with a single JSON object matching the requested schema and no other text."

// GenerateStructured implements trinity.ModelBackend by appending a strict
// JSON-only instruction and parsing the model's reply. Providers in this
// router do not expose a native structured-output mode, so this is the
// adapter boundary named in spec C5 rather than a per-provider feature.
func (b *TrinityBackend) GenerateStructured(ctx context.Context, req *trinity.Request, schema map[string]any) (*trinity.ReasoningLedger, string, error) {
	augmented := *req
	augmented.Messages = append(append([]trinity.Message{}, req.Messages...), trinity.Message{
		Role:    "system",
		Content: structuredInstruction,
	})

	resp, err := b.Generate(ctx, &augmented)
	if err != nil {
		return nil, "", err
	}

	raw := extractJSONObject(resp.Content)
	if raw == "" {
		return nil, resp.Content, trinity.NewError(trinity.KindStructuredReasoningMissing, "model reply contained no JSON object")
	}

	var ledger trinity.ReasoningLedger
	if err := json.Unmarshal([]byte(raw), &ledger); err != nil {
		return nil, resp.Content, trinity.Wrap(trinity.KindStructuredReasoningMissing, "failed to decode reasoning ledger", err)
	}
	return &ledger, resp.Content, nil
}

// extractJSONObject trims any prose surrounding the first top-level JSON
// object a model reply contains, tolerating providers that ignore the
// JSON-only instruction and wrap it in markdown fences or commentary.
func extractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
