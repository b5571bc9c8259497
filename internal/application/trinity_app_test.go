package application

import (
	"testing"

	"github.com/trinity-ai/gateway/internal/infrastructure/auth"
	trinityconfig "github.com/trinity-ai/gateway/internal/infrastructure/config"
)

func TestBuildAuthConfigMapsFields(t *testing.T) {
	app := &TrinityApp{config: &trinityconfig.TrinityConfig{
		AuthMode:          "api_key",
		JWTSecret:         "jwt-secret",
		AuthAPIKey:        "api-key",
		AuthAPIKeyHeader:  "X-Custom-Key",
		AuthAPIKeyPrefix:  "Token ",
		AuthAnonymousUser: "svc-account",
		AuthUserEmail:     "admin@example.com",
		AuthPasswordSalt:  "deadbeef",
		AuthPasswordHash:  "cafebabe",
	}}

	cfg := app.buildAuthConfig()

	if cfg.Mode != auth.ModeAPIKey {
		t.Errorf("Mode = %q, want %q", cfg.Mode, auth.ModeAPIKey)
	}
	if cfg.JWTSecret != "jwt-secret" {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.APIKey != "api-key" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.APIKeyHeader != "X-Custom-Key" {
		t.Errorf("APIKeyHeader = %q", cfg.APIKeyHeader)
	}
	if cfg.AnonymousUserID != "svc-account" {
		t.Errorf("AnonymousUserID = %q", cfg.AnonymousUserID)
	}
	if cfg.LoginEmail != "admin@example.com" {
		t.Errorf("LoginEmail = %q", cfg.LoginEmail)
	}
	if cfg.LoginPasswordSalt != "deadbeef" {
		t.Errorf("LoginPasswordSalt = %q", cfg.LoginPasswordSalt)
	}
	if cfg.LoginPasswordHash != "cafebabe" {
		t.Errorf("LoginPasswordHash = %q", cfg.LoginPasswordHash)
	}
}

func TestBuildAuthConfigFallsBackToDefaults(t *testing.T) {
	app := &TrinityApp{config: &trinityconfig.TrinityConfig{}}
	cfg := app.buildAuthConfig()

	defaults := auth.DefaultConfig()
	if cfg.Mode != defaults.Mode {
		t.Errorf("Mode = %q, want default %q", cfg.Mode, defaults.Mode)
	}
	if cfg.APIKeyHeader != defaults.APIKeyHeader {
		t.Errorf("APIKeyHeader = %q, want default %q", cfg.APIKeyHeader, defaults.APIKeyHeader)
	}
	if cfg.AnonymousUserID != defaults.AnonymousUserID {
		t.Errorf("AnonymousUserID = %q, want default %q", cfg.AnonymousUserID, defaults.AnonymousUserID)
	}
}
