package http

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/trinity-ai/gateway/internal/infrastructure/auth"
)

// authMiddleware resolves a user id per cfg.Mode and rejects the request
// with 401 on failure. The resolved id is stashed on the context under
// "userId" for handlers that need self-only authorization (C13).
func authMiddleware(cfg auth.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := c.GetHeader("Authorization")
		if bearer == "" {
			bearer = c.Query("token")
		} else {
			bearer = strings.TrimPrefix(bearer, "Bearer ")
		}
		apiKeyHeader := cfg.APIKeyHeader
		if apiKeyHeader == "" {
			apiKeyHeader = "X-API-Key"
		}
		presented := c.GetHeader(apiKeyHeader)

		userID, err := auth.Authenticate(cfg, bearer, presented)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("userId", userID)
		c.Next()
	}
}

// rateLimiter is a fixed-window per-user limiter (spec §6:
// RATE_LIMIT_WINDOW_MS / RATE_LIMIT_MAX_REQUESTS). It is grounded on the
// same single-mutex-guarded-map idiom the IPC registry uses rather than a
// third-party limiter, since the pack carries no rate-limiting library and
// the algorithm here is a handful of lines (see DESIGN.md).
type rateLimiter struct {
	windowMs   int64
	maxReq     int
	nowMs      func() int64
	mu         sync.Mutex
	windows    map[string]*rateWindow
}

type rateWindow struct {
	resetAt int64
	count   int
}

func newRateLimiter(windowMs int64, maxReq int, nowMs func() int64) *rateLimiter {
	return &rateLimiter{windowMs: windowMs, maxReq: maxReq, nowMs: nowMs, windows: make(map[string]*rateWindow)}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.nowMs()
	w, ok := rl.windows[key]
	if !ok || now >= w.resetAt {
		rl.windows[key] = &rateWindow{resetAt: now + rl.windowMs, count: 1}
		return true
	}
	if w.count >= rl.maxReq {
		return false
	}
	w.count++
	return true
}

func rateLimitMiddleware(rl *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if uid, ok := c.Get("userId"); ok {
			if s, ok := uid.(string); ok && s != "" {
				key = s
			}
		}
		if !rl.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
