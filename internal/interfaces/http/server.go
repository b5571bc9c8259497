package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trinity-ai/gateway/internal/infrastructure/auth"
	"github.com/trinity-ai/gateway/internal/infrastructure/ipcserver"
	"github.com/trinity-ai/gateway/internal/interfaces/http/handlers"
)

// Config is the HTTP server's own bind configuration; the ambient tunables
// (auth, rate limiting, IPC) live on config.TrinityConfig and are threaded
// in through NewServer's other arguments.
type Config struct {
	Host string
	Port int
	Mode string // debug, release
}

// Server hosts both the REST surface (spec §6) and the IPC WebSocket
// upgrade endpoint (spec §4.7) behind one gin engine and one *http.Server.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer wires the Trinity REST handlers, auth middleware, rate
// limiting, and the IPC WebSocket upgrade route onto one router.
func NewServer(
	cfg Config,
	authCfg auth.Config,
	trinityHandler *handlers.TrinityHandler,
	ipcSrv *ipcserver.Server,
	ipcWSPath string,
	rateLimitWindowMs int64,
	rateLimitMaxRequests int,
	logger *zap.Logger,
) *Server {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	rl := newRateLimiter(rateLimitWindowMs, rateLimitMaxRequests, func() int64 { return time.Now().UnixMilli() })

	router.GET("/api/health", trinityHandler.Health)
	router.GET("/healthcheck", trinityHandler.Healthcheck)
	router.GET("/api/route-status", trinityHandler.RouteStatus)
	router.POST("/api/auth/login", trinityHandler.Login)

	protected := router.Group("/api")
	protected.Use(authMiddleware(authCfg))
	protected.Use(rateLimitMiddleware(rl))
	{
		protected.POST("/ask", trinityHandler.Ask)
		protected.POST("/update", trinityHandler.Update)
		protected.GET("/audit", trinityHandler.Audit)
		protected.POST("/daemon/command", trinityHandler.DaemonCommand)
		protected.POST("/transcribe", trinityHandler.Transcribe)
		protected.POST("/vision", trinityHandler.Vision)
	}

	router.GET(ipcWSPath, func(c *gin.Context) {
		ipcSrv.ServeWS(c.Writer, c.Request)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	return &Server{server: srv, logger: logger}
}

// Start begins serving in a background goroutine, matching the teacher's
// non-blocking Start/Stop lifecycle.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
