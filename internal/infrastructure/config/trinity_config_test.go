package config

import "testing"

func TestValidateAuthModeAcceptsKnownModes(t *testing.T) {
	for _, mode := range []string{"jwt", "api_key", "none", ""} {
		if err := validateAuthMode(mode); err != nil {
			t.Errorf("validateAuthMode(%q) = %v, want nil", mode, err)
		}
	}
}

func TestValidateAuthModeRejectsUnrecognized(t *testing.T) {
	if err := validateAuthMode("ldap"); err == nil {
		t.Error("expected error for unrecognized auth mode")
	}
}

func TestNormalizeTrinityConfigDefaultsIPCWSPath(t *testing.T) {
	cfg := &TrinityConfig{}
	normalizeTrinityConfig(cfg)
	if cfg.IPCWSPath != "/ws/daemon" {
		t.Errorf("IPCWSPath = %q, want /ws/daemon", cfg.IPCWSPath)
	}
}

func TestNormalizeTrinityConfigAddsLeadingSlash(t *testing.T) {
	cfg := &TrinityConfig{IPCWSPath: "ws/custom"}
	normalizeTrinityConfig(cfg)
	if cfg.IPCWSPath != "/ws/custom" {
		t.Errorf("IPCWSPath = %q, want /ws/custom", cfg.IPCWSPath)
	}
}
