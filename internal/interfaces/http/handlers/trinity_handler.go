package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trinity-ai/gateway/internal/domain/ipc"
	"github.com/trinity-ai/gateway/internal/domain/trinity"
	"github.com/trinity-ai/gateway/internal/infrastructure/auth"
	"github.com/trinity-ai/gateway/internal/infrastructure/llm"
	"github.com/trinity-ai/gateway/internal/infrastructure/persistence"
)

// Transcriber is an optional modality capability a ModelBackend may offer.
// /api/transcribe returns 500 with a "transcription backend not configured"
// error when none is wired.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, model, language string) (text, modelUsed string, err error)
}

// VisionDescriber is the /api/vision counterpart of Transcriber.
type VisionDescriber interface {
	Describe(ctx context.Context, image []byte, prompt, model string, temperature float64, maxTokens int) (text, modelUsed string, err error)
}

const (
	maxAskMessages        = 20
	maxAskContentChars    = 8000
	maxAskTotalChars      = 12000
	maxUpdatePayloadBytes = 10 * 1024
	maxTranscribeAudioB64 = 8000000
	maxCommandNameChars   = 100
)

// TrinityHandler serves the HTTP API of spec §6: health, login, ask,
// update, audit, daemon command dispatch, transcribe, vision.
type TrinityHandler struct {
	Orchestrator *trinity.Orchestrator
	AuthConfig   auth.Config
	JWTTTL       time.Duration
	Registry     *ipc.Registry
	AuditRepo    *persistence.GormAuditRepository
	Router       *llm.Router
	Transcriber  Transcriber
	Vision       VisionDescriber
	Logger       *zap.Logger
	StartedAt    time.Time
	PingDatabase func(ctx context.Context) error
}

// NewTrinityHandler constructs a handler with a 30-day default JWT expiry
// (spec §6: "HMAC signed, 30-day expiry by default").
func NewTrinityHandler(o *trinity.Orchestrator, authCfg auth.Config, registry *ipc.Registry, auditRepo *persistence.GormAuditRepository, logger *zap.Logger) *TrinityHandler {
	return &TrinityHandler{
		Orchestrator: o,
		AuthConfig:   authCfg,
		JWTTTL:       30 * 24 * time.Hour,
		Registry:     registry,
		AuditRepo:    auditRepo,
		Logger:       logger,
		StartedAt:    time.Now(),
	}
}

func writeTrinityError(c *gin.Context, err error) {
	if terr, ok := trinity.AsError(err); ok {
		c.JSON(terr.Kind.HTTPStatus(), gin.H{"error": terr.Message, "kind": terr.Kind.String()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// Health implements GET /api/health.
func (h *TrinityHandler) Health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	dbStatus := "not_configured"
	if h.PingDatabase != nil {
		if err := h.PingDatabase(c.Request.Context()); err != nil {
			dbStatus = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			dbStatus = "ok"
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(code, gin.H{
		"status":   status,
		"uptime":   time.Since(h.StartedAt).Seconds(),
		"database": dbStatus,
		"memory": gin.H{
			"allocBytes":      mem.Alloc,
			"totalAllocBytes": mem.TotalAlloc,
			"sysBytes":        mem.Sys,
			"numGC":           mem.NumGC,
		},
	})
}

// Healthcheck implements GET /healthcheck, a bare liveness probe outside the
// /api prefix for load balancers that expect a root-level path. It never
// touches the database, unlike Health, since a liveness probe should only
// answer "is the process up".
func (h *TrinityHandler) Healthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RouteStatus implements GET /api/route-status, surfacing each registered
// model provider's availability and circuit-breaker state so operators can
// check routing health without authenticating (spec §6 auth-exempt list).
func (h *TrinityHandler) RouteStatus(c *gin.Context) {
	if h.Router == nil {
		c.JSON(http.StatusOK, gin.H{"providers": []llm.ProviderStatus{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": h.Router.ListProviders(c.Request.Context())})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login implements POST /api/auth/login against the environment-derived
// credential (spec §6: AUTH_USER_EMAIL/AUTH_PASSWORD_SALT/AUTH_PASSWORD_HASH).
func (h *TrinityHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := h.AuthConfig
	if cfg.JWTSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server not configured for login"})
		return
	}

	emailMatches := constantTimeStringEqual(strings.ToLower(strings.TrimSpace(req.Email)), strings.ToLower(cfg.LoginEmail))
	if !emailMatches {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	salt, err := hex.DecodeString(cfg.LoginPasswordSalt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured"})
		return
	}
	wantHash, err := hex.DecodeString(cfg.LoginPasswordHash)
	if err != nil || len(cfg.LoginPasswordHash) != 128 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured"})
		return
	}

	ok, err := auth.VerifyPassword(req.Password, salt, wantHash)
	if err != nil || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	userID := cfg.LoginEmail
	token, err := auth.IssueJWT(cfg.JWTSecret, userID, h.JWTTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"tokenType": "Bearer",
		"expiresAt": time.Now().Add(h.JWTTTL).Format(time.RFC3339),
		"userId":    userID,
	})
}

func constantTimeStringEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type askMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type askRequest struct {
	Messages    []askMessage `json:"messages"`
	Message     string       `json:"message"`
	Model       string       `json:"model"`
	Temperature *float64     `json:"temperature"`
	Stream      bool         `json:"stream"`
}

func (r askRequest) flatten() (string, error) {
	if r.Message != "" {
		if len(r.Message) > maxAskContentChars {
			return "", &trinity.Error{Kind: trinity.KindValidationFailure, Message: "message exceeds max content length"}
		}
		return r.Message, nil
	}
	if len(r.Messages) == 0 {
		return "", &trinity.Error{Kind: trinity.KindValidationFailure, Message: "messages or message is required"}
	}
	if len(r.Messages) > maxAskMessages {
		return "", &trinity.Error{Kind: trinity.KindValidationFailure, Message: "too many messages"}
	}
	var b strings.Builder
	total := 0
	for _, m := range r.Messages {
		if len(m.Content) > maxAskContentChars {
			return "", &trinity.Error{Kind: trinity.KindValidationFailure, Message: "message content exceeds max length"}
		}
		total += len(m.Content)
		if total > maxAskTotalChars {
			return "", &trinity.Error{Kind: trinity.KindValidationFailure, Message: "combined message content exceeds max length"}
		}
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	return b.String(), nil
}

// Ask implements POST /api/ask, returning either a JSON envelope or an SSE
// stream depending on the stream flag.
func (h *TrinityHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prompt, err := req.flatten()
	if err != nil {
		writeTrinityError(c, err)
		return
	}

	userID := requesterUserID(c)
	requestID := uuid.NewString()

	result, err := h.Orchestrator.Run(c.Request.Context(), trinity.RequestInput{
		RequestID:      requestID,
		SessionID:      userID,
		Prompt:         prompt,
		RequestedModel: req.Model,
	})
	if err != nil {
		writeTrinityError(c, err)
		return
	}

	if !req.Stream {
		c.JSON(http.StatusOK, result)
		return
	}

	h.streamResult(c, result)
}

// streamResult chunks the already-computed final text into SSE deltas. The
// pipeline itself does not stream intermediate stages (spec §4.3 describes
// each stage as a single model call with a single response), so streaming
// here means a responsive SSE transport over an already-final answer rather
// than token-by-token generation (see DESIGN.md open question on /api/ask
// streaming).
func (h *TrinityHandler) streamResult(c *gin.Context, result *trinity.TrinityResult) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	const chunkSize = 40
	text := result.Result

	flusher, ok := c.Writer.(http.Flusher)
	for i := 0; i < len(text); i += chunkSize {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		payload, _ := json.Marshal(gin.H{"delta": text[i:end]})
		fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
		if ok {
			flusher.Flush()
		}
	}
	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	if ok {
		flusher.Flush()
	}
}

type updateRequest struct {
	UpdateType string          `json:"updateType" binding:"required"`
	Data       json.RawMessage `json:"data"`
}

// Update implements POST /api/update.
func (h *TrinityHandler) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Data) > maxUpdatePayloadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "data exceeds 10KB"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Audit implements GET /api/audit?limit=.
func (h *TrinityHandler) Audit(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}
	if h.AuditRepo == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit log not configured"})
		return
	}
	rows, err := h.AuditRepo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": rows, "count": len(rows)})
}

type daemonCommandRequest struct {
	Command      string         `json:"command" binding:"required"`
	Payload      map[string]any `json:"payload"`
	TargetUserID string         `json:"targetUserId"`
}

// DaemonCommand implements POST /api/daemon/command (C13).
func (h *TrinityHandler) DaemonCommand(c *gin.Context) {
	var req daemonCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Command) == 0 || len(req.Command) > maxCommandNameChars {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command must be 1-100 chars"})
		return
	}

	requester := requesterUserID(c)
	target := req.TargetUserID
	if target == "" {
		target = requester
	}
	if target != requester {
		c.JSON(http.StatusForbidden, gin.H{"error": "may only target self"})
		return
	}

	commandID := uuid.NewString()
	msg := ipc.BuildCommand(commandID, req.Command, time.Now().UTC().Format(time.RFC3339Nano), req.Payload)
	result := h.Registry.SendCommandToUser(target, msg)

	if !result.OK {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": result.Error})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"commandId": commandID, "deliveredConnections": result.ConnectionIDs})
}

type transcribeRequest struct {
	AudioBase64 string `json:"audioBase64" binding:"required"`
	Model       string `json:"model"`
	Filename    string `json:"filename"`
	Language    string `json:"language"`
}

// Transcribe implements POST /api/transcribe.
func (h *TrinityHandler) Transcribe(c *gin.Context) {
	var req transcribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.AudioBase64) > maxTranscribeAudioB64 {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audioBase64 exceeds 8,000,000 chars"})
		return
	}
	if h.Transcriber == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transcription backend not configured"})
		return
	}
	text, model, err := h.Transcriber.Transcribe(c.Request.Context(), []byte(req.AudioBase64), req.Model, req.Language)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text, "model": model})
}

type visionRequest struct {
	ImageBase64 string   `json:"imageBase64" binding:"required"`
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   int      `json:"maxTokens"`
}

// Vision implements POST /api/vision.
func (h *TrinityHandler) Vision(c *gin.Context) {
	var req visionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.ImageBase64) > maxTranscribeAudioB64 {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "imageBase64 exceeds 8,000,000 chars"})
		return
	}
	if h.Vision == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "vision backend not configured"})
		return
	}
	temp := trinity.TemperatureDefault
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	text, model, err := h.Vision.Describe(c.Request.Context(), []byte(req.ImageBase64), req.Prompt, req.Model, temp, req.MaxTokens)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text, "model": model})
}

// requesterUserID reads the user id the auth middleware attached to the
// gin context (see interfaces/http middleware wiring).
func requesterUserID(c *gin.Context) string {
	if v, ok := c.Get("userId"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "anonymous"
}
