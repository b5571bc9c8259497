// Package auth implements the three IPC/HTTP authentication modes named in
// spec §4.9 and §6: jwt, api_key, and none.
package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/scrypt"
)

// Mode selects which strategy Authenticate uses.
type Mode string

const (
	ModeJWT    Mode = "jwt"
	ModeAPIKey Mode = "api_key"
	ModeNone   Mode = "none"
)

// Config holds the environment-sourced tunables for authentication (spec §6
// env var table: JWT_SECRET, AUTH_API_KEY, AUTH_API_KEY_HEADER,
// AUTH_API_KEY_PREFIX, AUTH_ANONYMOUS_USER_ID).
type Config struct {
	Mode            Mode
	JWTSecret       string
	APIKey          string
	APIKeyHeader    string
	APIKeyPrefix    string
	AnonymousUserID string

	// Login* back POST /api/auth/login (spec §6: AUTH_USER_EMAIL,
	// AUTH_PASSWORD_SALT, AUTH_PASSWORD_HASH). Salt and hash are hex-encoded.
	LoginEmail        string
	LoginPasswordSalt string
	LoginPasswordHash string
}

// DefaultConfig fills in the spec's stated defaults for the parts Config
// leaves zero.
func DefaultConfig() Config {
	return Config{
		Mode:            ModeNone,
		APIKeyHeader:    "X-API-Key",
		APIKeyPrefix:    "",
		AnonymousUserID: "anonymous",
	}
}

// Unauthorized is returned by Authenticate on any credential failure; the
// caller (HTTP or IPC) is responsible for mapping it to the transport's
// rejection convention (HTTP 401, WS close 1008).
type Unauthorized struct {
	Reason string
}

func (e *Unauthorized) Error() string { return "unauthorized: " + e.Reason }

// Claims is the minimal JWT claim set Trinity trusts: subject is the userId.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueJWT mints a token for userID, used by /api/auth/login (spec §6).
func IssueJWT(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyJWT validates signature and expiry and returns the subject.
func VerifyJWT(secret, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", &Unauthorized{Reason: "invalid or expired token"}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", &Unauthorized{Reason: "token missing subject"}
	}
	return claims.Subject, nil
}

// Authenticate resolves a user ID from transport-supplied credentials per
// cfg.Mode. bearerOrQueryToken is the JWT (from the Authorization header or
// ?token= query param); presentedKey is the api_key header value.
func Authenticate(cfg Config, bearerOrQueryToken, presentedKey string) (string, error) {
	switch cfg.Mode {
	case ModeJWT:
		token := strings.TrimPrefix(strings.TrimSpace(bearerOrQueryToken), "Bearer ")
		if token == "" {
			return "", &Unauthorized{Reason: "missing bearer token"}
		}
		return VerifyJWT(cfg.JWTSecret, token)
	case ModeAPIKey:
		presented := strings.TrimPrefix(presentedKey, cfg.APIKeyPrefix)
		if !constantTimeEqual(presented, cfg.APIKey) {
			return "", &Unauthorized{Reason: "invalid api key"}
		}
		if cfg.AnonymousUserID == "" {
			return "anonymous", nil
		}
		return cfg.AnonymousUserID, nil
	case ModeNone:
		if cfg.AnonymousUserID == "" {
			return "anonymous", nil
		}
		return cfg.AnonymousUserID, nil
	default:
		return "", &Unauthorized{Reason: "unknown auth mode: " + string(cfg.Mode)}
	}
}

// constantTimeEqual guards against timing side channels on api_key
// comparison: a length mismatch is checked first (itself not
// secret-dependent — key lengths are configuration, not user input), then
// the byte comparison runs in constant time.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// scryptParams follow the library's recommended interactive-login cost.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
)

// HashPassword derives a scrypt digest for storage; callers persist both
// the digest and the salt.
func HashPassword(password string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
}

// VerifyPassword recomputes the digest and compares in constant time.
func VerifyPassword(password string, salt, want []byte) (bool, error) {
	got, err := HashPassword(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
