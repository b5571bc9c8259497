package application

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/trinity-ai/gateway/internal/domain/ipc"
	"github.com/trinity-ai/gateway/internal/domain/trinity"
	"github.com/trinity-ai/gateway/internal/infrastructure/auth"
	trinityconfig "github.com/trinity-ai/gateway/internal/infrastructure/config"
	"github.com/trinity-ai/gateway/internal/infrastructure/ipcserver"
	"github.com/trinity-ai/gateway/internal/infrastructure/llm"
	_ "github.com/trinity-ai/gateway/internal/infrastructure/llm/anthropic"
	_ "github.com/trinity-ai/gateway/internal/infrastructure/llm/gemini"
	_ "github.com/trinity-ai/gateway/internal/infrastructure/llm/openai"
	"github.com/trinity-ai/gateway/internal/infrastructure/persistence"
	trinityhttp "github.com/trinity-ai/gateway/internal/interfaces/http"
	"github.com/trinity-ai/gateway/internal/interfaces/http/handlers"
)

// TrinityApp is the process-scoped dependency injection container for the
// reasoning gateway and IPC bridge, the Core container named in the design
// notes. It has an init*/Start/Stop shape and wires only the
// collaborators the reasoning pipeline and its transports need.
type TrinityApp struct {
	config *trinityconfig.TrinityConfig
	logger *zap.Logger
	db     *gorm.DB

	auditRepo    *persistence.GormAuditRepository
	router       *llm.Router
	backend      *llm.TrinityBackend
	orchestrator *trinity.Orchestrator
	telemetry    *trinity.ChannelSink
	admission    *trinity.Admission
	tuner        *trinity.AutoTuner

	registry  *ipc.Registry
	ipcServer *ipcserver.Server

	httpServer *trinityhttp.Server
}

// NewTrinityApp wires the full dependency graph in init-phase order:
// persistence, reasoning pipeline, IPC transport, HTTP interface.
func NewTrinityApp(cfg *trinityconfig.TrinityConfig, v *viper.Viper, logger *zap.Logger) (*TrinityApp, error) {
	app := &TrinityApp{config: cfg, logger: logger}

	if err := app.initPersistence(); err != nil {
		return nil, fmt.Errorf("failed to init persistence: %w", err)
	}
	if err := app.initReasoningPipeline(); err != nil {
		return nil, fmt.Errorf("failed to init reasoning pipeline: %w", err)
	}
	if err := app.initIPC(); err != nil {
		return nil, fmt.Errorf("failed to init ipc: %w", err)
	}
	if err := app.initHTTP(); err != nil {
		return nil, fmt.Errorf("failed to init http: %w", err)
	}
	if v != nil {
		trinityconfig.WatchTrinityConfig(v, app.onConfigChange)
	}

	return app, nil
}

// onConfigChange applies the subset of config reloadable without a restart:
// the CLEAR escalation threshold seed and per-tier admission caps.
func (app *TrinityApp) onConfigChange(cfg *trinityconfig.TrinityConfig) {
	app.tuner.Seed(cfg.ClearEscalationThreshold)
	app.admission.Reconfigure(trinity.TierSimple, cfg.AdmissionCapSimple)
	app.admission.Reconfigure(trinity.TierComplex, cfg.AdmissionCapComplex)
	app.admission.Reconfigure(trinity.TierCritical, cfg.AdmissionCapCritical)
	app.config = cfg
	app.logger.Info("applied hot-reloaded config",
		zap.Float64("clearEscalationThreshold", app.tuner.Threshold()),
		zap.Int("admissionCapSimple", app.admission.Capacity(trinity.TierSimple)),
		zap.Int("admissionCapComplex", app.admission.Capacity(trinity.TierComplex)),
		zap.Int("admissionCapCritical", app.admission.Capacity(trinity.TierCritical)),
	)
}

func (app *TrinityApp) initPersistence() error {
	if !app.config.DatabaseRequired && app.config.Database.DSN == "" {
		app.logger.Info("Database not configured, audit log disabled")
		return nil
	}
	db, err := persistence.NewDBConnection(&app.config.Database)
	if err != nil {
		if app.config.DatabaseRequired {
			return err
		}
		app.logger.Warn("Database connection failed, audit log disabled", zap.Error(err))
		return nil
	}
	app.db = db
	app.auditRepo = persistence.NewGormAuditRepository(db)
	return nil
}

func (app *TrinityApp) initReasoningPipeline() error {
	app.router = llm.NewRouter(app.logger)
	if app.config.OpenAIAPIKey != "" {
		provider, err := llm.CreateProvider(llm.ProviderConfig{
			Name:   "openai",
			Type:   "openai",
			APIKey: app.config.OpenAIAPIKey,
		}, app.logger)
		if err != nil {
			app.logger.Warn("Failed to create OpenAI provider", zap.Error(err))
		} else {
			app.router.AddProvider(provider)
		}
	}
	app.backend = llm.NewTrinityBackend(app.router)

	app.admission = trinity.NewAdmission(map[trinity.Tier]int{
		trinity.TierSimple:   app.config.AdmissionCapSimple,
		trinity.TierComplex:  app.config.AdmissionCapComplex,
		trinity.TierCritical: app.config.AdmissionCapCritical,
	})
	app.tuner = trinity.NewAutoTuner()
	app.tuner.Seed(app.config.ClearEscalationThreshold)
	tokens := trinity.NewSessionTokenCounter()
	drift := trinity.NewDriftMonitor()
	app.telemetry = trinity.NewChannelSink(256, app.logger)

	var audit trinity.AuditLog
	if app.auditRepo != nil {
		audit = app.auditRepo
	}

	app.orchestrator = trinity.NewOrchestrator(app.backend, app.admission, app.tuner, tokens, drift, app.telemetry, audit, app.logger)
	return nil
}

func (app *TrinityApp) initIPC() error {
	app.registry = ipc.NewRegistry()

	ipcCfg := ipcserver.DefaultConfig()
	ipcCfg.WSPath = app.config.IPCWSPath
	ipcCfg.HeartbeatInterval = app.config.HeartbeatInterval()
	ipcCfg.ClientTimeout = app.config.ClientTimeout()
	ipcCfg.MaxMessageSizeBytes = app.config.IPCMaxMessageSize

	authCfg := app.buildAuthConfig()
	app.ipcServer = ipcserver.NewServer(ipcCfg, authCfg, app.registry, app.logger)
	app.ipcServer.StartReaper()
	return nil
}

func (app *TrinityApp) buildAuthConfig() auth.Config {
	cfg := auth.DefaultConfig()
	if app.config.AuthMode != "" {
		cfg.Mode = auth.Mode(app.config.AuthMode)
	}
	cfg.JWTSecret = app.config.JWTSecret
	cfg.APIKey = app.config.AuthAPIKey
	if app.config.AuthAPIKeyHeader != "" {
		cfg.APIKeyHeader = app.config.AuthAPIKeyHeader
	}
	cfg.APIKeyPrefix = app.config.AuthAPIKeyPrefix
	if app.config.AuthAnonymousUser != "" {
		cfg.AnonymousUserID = app.config.AuthAnonymousUser
	}
	cfg.LoginEmail = app.config.AuthUserEmail
	cfg.LoginPasswordSalt = app.config.AuthPasswordSalt
	cfg.LoginPasswordHash = app.config.AuthPasswordHash
	return cfg
}

func (app *TrinityApp) initHTTP() error {
	authCfg := app.buildAuthConfig()

	th := handlers.NewTrinityHandler(app.orchestrator, authCfg, app.registry, app.auditRepo, app.logger)
	th.Router = app.router
	if app.db != nil {
		sqlDB, err := app.db.DB()
		if err == nil {
			th.PingDatabase = func(ctx context.Context) error { return sqlDB.PingContext(ctx) }
		}
	}

	app.httpServer = trinityhttp.NewServer(
		trinityhttp.Config{Host: "0.0.0.0", Port: app.config.Port, Mode: "release"},
		authCfg,
		th,
		app.ipcServer,
		app.config.IPCWSPath,
		int64(app.config.RateLimitWindowMs),
		app.config.RateLimitMaxRequests,
		app.logger,
	)
	return nil
}

// Start begins serving HTTP and the IPC reaper. The reaper is already
// running by the time Start is called (initIPC starts it eagerly, since it
// has no separate listen step; Start only opens the HTTP port).
func (app *TrinityApp) Start(ctx context.Context) error {
	return app.httpServer.Start(ctx)
}

// Stop drains connections and stops background loops in reverse
// dependency order: HTTP first (stop accepting new work), then the IPC
// server (closes existing WebSocket connections), then the database.
func (app *TrinityApp) Stop(ctx context.Context) error {
	shutdownErr := app.httpServer.Stop(ctx)

	app.ipcServer.Shutdown()

	if app.db != nil {
		if sqlDB, err := app.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	return shutdownErr
}

func (app *TrinityApp) Logger() *zap.Logger                { return app.logger }
func (app *TrinityApp) Orchestrator() *trinity.Orchestrator { return app.orchestrator }
func (app *TrinityApp) Registry() *ipc.Registry             { return app.registry }
