package auth

import (
	"encoding/hex"
	"testing"
	"time"
)

func TestIssueAndVerifyJWT(t *testing.T) {
	token, err := IssueJWT("secret", "user-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT failed: %v", err)
	}
	userID, err := VerifyJWT("secret", token)
	if err != nil {
		t.Fatalf("VerifyJWT failed: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want user-1", userID)
	}
}

func TestVerifyJWTWrongSecret(t *testing.T) {
	token, _ := IssueJWT("secret", "user-1", time.Hour)
	if _, err := VerifyJWT("other-secret", token); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestVerifyJWTExpired(t *testing.T) {
	token, _ := IssueJWT("secret", "user-1", -time.Hour)
	if _, err := VerifyJWT("secret", token); err == nil {
		t.Fatal("expected verification failure for expired token")
	}
}

func TestAuthenticateAPIKeySuccess(t *testing.T) {
	cfg := Config{Mode: ModeAPIKey, APIKey: "sekret", APIKeyPrefix: "Bearer ", AnonymousUserID: "svc"}
	userID, err := Authenticate(cfg, "", "Bearer sekret")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if userID != "svc" {
		t.Errorf("userID = %q, want svc", userID)
	}
}

func TestAuthenticateAPIKeyFailure(t *testing.T) {
	cfg := Config{Mode: ModeAPIKey, APIKey: "sekret"}
	if _, err := Authenticate(cfg, "", "wrong"); err == nil {
		t.Fatal("expected failure for wrong api key")
	}
}

func TestAuthenticateNoneFallsBackToAnonymous(t *testing.T) {
	cfg := DefaultConfig()
	userID, err := Authenticate(cfg, "", "")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if userID != "anonymous" {
		t.Errorf("userID = %q, want anonymous", userID)
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	salt := []byte("0123456789abcdef")
	digest, err := HashPassword("hunter2", salt)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	ok, err := VerifyPassword("hunter2", salt, digest)
	if err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if !ok {
		t.Error("expected password to verify")
	}
	ok, _ = VerifyPassword("wrong", salt, digest)
	if ok {
		t.Error("expected wrong password to fail verification")
	}
}

// TestVerifyPasswordAgainstFixedHexVector guards against scryptKeyLen
// drifting away from the 64-byte/128-hex-char AUTH_PASSWORD_HASH shape
// trinity_handler.go's login handler enforces.
func TestVerifyPasswordAgainstFixedHexVector(t *testing.T) {
	const wantHex = "bb1c4a9190f062fa022fb5f9cf030aee479bbce7c0ea2f0a13a854e60fd31c8355342c076e6cfec47576cb6f50b1bab55289660ffa590daf9023734e6cbf4beb"
	if len(wantHex) != 128 {
		t.Fatalf("test vector is %d hex chars, want 128", len(wantHex))
	}
	want, err := hex.DecodeString(wantHex)
	if err != nil {
		t.Fatalf("failed to decode fixed hex vector: %v", err)
	}

	salt := []byte("0123456789abcdef")
	ok, err := VerifyPassword("hunter2", salt, want)
	if err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if !ok {
		t.Error("expected password to verify against fixed 128-hex-char vector")
	}

	ok, _ = VerifyPassword("wrong", salt, want)
	if ok {
		t.Error("expected wrong password to fail verification against fixed vector")
	}
}
