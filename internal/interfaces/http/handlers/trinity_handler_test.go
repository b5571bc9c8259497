package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audio []byte, model, language string) (string, string, error) {
	return "transcribed", "stub-model", nil
}

func newTestGinContext() *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	return c
}

func TestAskRequestFlattenSingleMessage(t *testing.T) {
	req := askRequest{Message: "hello there"}
	prompt, err := req.flatten()
	if err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	if prompt != "hello there" {
		t.Errorf("prompt = %q, want %q", prompt, "hello there")
	}
}

func TestAskRequestFlattenMessageList(t *testing.T) {
	req := askRequest{Messages: []askMessage{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
	}}
	prompt, err := req.flatten()
	if err != nil {
		t.Fatalf("flatten failed: %v", err)
	}
	if !strings.Contains(prompt, "[user] first") || !strings.Contains(prompt, "[assistant] second") {
		t.Errorf("prompt missing expected fragments: %q", prompt)
	}
}

func TestAskRequestFlattenRejectsEmpty(t *testing.T) {
	req := askRequest{}
	if _, err := req.flatten(); err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestAskRequestFlattenRejectsTooManyMessages(t *testing.T) {
	msgs := make([]askMessage, maxAskMessages+1)
	for i := range msgs {
		msgs[i] = askMessage{Role: "user", Content: "x"}
	}
	req := askRequest{Messages: msgs}
	if _, err := req.flatten(); err == nil {
		t.Fatal("expected error for too many messages")
	}
}

func TestAskRequestFlattenRejectsOversizedContent(t *testing.T) {
	req := askRequest{Messages: []askMessage{
		{Role: "user", Content: strings.Repeat("a", maxAskContentChars+1)},
	}}
	if _, err := req.flatten(); err == nil {
		t.Fatal("expected error for oversized message content")
	}
}

func TestAskRequestFlattenRejectsOversizedTotal(t *testing.T) {
	msgs := []askMessage{
		{Role: "user", Content: strings.Repeat("a", maxAskContentChars)},
		{Role: "user", Content: strings.Repeat("b", maxAskContentChars)},
	}
	req := askRequest{Messages: msgs}
	if _, err := req.flatten(); err == nil {
		t.Fatal("expected error for oversized combined content")
	}
}

func TestConstantTimeStringEqual(t *testing.T) {
	if !constantTimeStringEqual("match", "match") {
		t.Error("expected equal strings to match")
	}
	if constantTimeStringEqual("a", "ab") {
		t.Error("expected different-length strings to not match")
	}
	if constantTimeStringEqual("abc", "abd") {
		t.Error("expected different strings to not match")
	}
}

func TestRequesterUserIDDefaultsAnonymous(t *testing.T) {
	c := newTestGinContext()
	if got := requesterUserID(c); got != "anonymous" {
		t.Errorf("requesterUserID = %q, want anonymous", got)
	}
}

func postTranscribe(t *testing.T, audioBase64Len int) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &TrinityHandler{Transcriber: stubTranscriber{}}

	body, err := json.Marshal(transcribeRequest{AudioBase64: strings.Repeat("a", audioBase64Len)})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/transcribe", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Transcribe(c)
	return w.Code
}

// TestTranscribeAudioBase64BoundaryAccepted covers spec §8's boundary test:
// 8,000,000 chars accepted.
func TestTranscribeAudioBase64BoundaryAccepted(t *testing.T) {
	if got := postTranscribe(t, maxTranscribeAudioB64); got != http.StatusOK {
		t.Errorf("status at boundary = %d, want %d", got, http.StatusOK)
	}
}

// TestTranscribeAudioBase64BoundaryRejected covers spec §8's boundary test:
// 8,000,001 chars rejected.
func TestTranscribeAudioBase64BoundaryRejected(t *testing.T) {
	if got := postTranscribe(t, maxTranscribeAudioB64+1); got != http.StatusRequestEntityTooLarge {
		t.Errorf("status past boundary = %d, want %d", got, http.StatusRequestEntityTooLarge)
	}
}
