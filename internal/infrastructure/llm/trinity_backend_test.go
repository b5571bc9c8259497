package llm

import (
	"testing"

	"github.com/trinity-ai/gateway/internal/domain/trinity"
)

func TestExtractJSONObjectPlain(t *testing.T) {
	got := extractJSONObject(`{"a":1,"b":"two"}`)
	want := `{"a":1,"b":"two"}`
	if got != want {
		t.Errorf("extractJSONObject = %q, want %q", got, want)
	}
}

func TestExtractJSONObjectWithSurroundingProse(t *testing.T) {
	got := extractJSONObject("Sure, here you go:\n{\"a\":1}\nLet me know if that helps.")
	if got != `{"a":1}` {
		t.Errorf("extractJSONObject = %q, want %q", got, `{"a":1}`)
	}
}

func TestExtractJSONObjectWithMarkdownFence(t *testing.T) {
	got := extractJSONObject("```json\n{\"a\":1}\n```")
	if got != `{"a":1}` {
		t.Errorf("extractJSONObject = %q, want %q", got, `{"a":1}`)
	}
}

func TestExtractJSONObjectNested(t *testing.T) {
	input := `{"outer":{"inner":1},"list":[1,2,3]}`
	got := extractJSONObject(input)
	if got != input {
		t.Errorf("extractJSONObject = %q, want %q", got, input)
	}
}

func TestExtractJSONObjectNoObject(t *testing.T) {
	if got := extractJSONObject("no json here"); got != "" {
		t.Errorf("extractJSONObject = %q, want empty string", got)
	}
}

func TestExtractJSONObjectUnterminated(t *testing.T) {
	if got := extractJSONObject(`{"a":1`); got != "" {
		t.Errorf("extractJSONObject = %q, want empty string", got)
	}
}

func TestToLLMMessages(t *testing.T) {
	msgs := []trinity.Message{{Role: "user", Content: "hi"}}
	out := toLLMMessages(msgs)
	if len(out) != 1 || out[0].Role != "user" || out[0].Content != "hi" {
		t.Errorf("toLLMMessages = %+v", out)
	}
}
