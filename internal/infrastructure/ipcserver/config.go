// Package ipcserver hosts the WebSocket accept loop, authentication,
// receive-loop dispatch, and reaper for the daemon bridge (spec C12),
// adapted from the teacher's Hub/Client pattern in
// internal/interfaces/websocket/handler.go.
package ipcserver

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is sourced from environment variables with safe defaults and
// positive-integer normalization (spec §4.9).
type Config struct {
	WSPath              string
	HeartbeatInterval   time.Duration
	ClientTimeout       time.Duration
	MaxMessageSizeBytes int64
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		WSPath:              "/ws/daemon",
		HeartbeatInterval:   30 * time.Second,
		ClientTimeout:       90 * time.Second,
		MaxMessageSizeBytes: 1048576,
	}
}

// LoadConfigFromEnv overlays IPC_WS_PATH, IPC_HEARTBEAT_INTERVAL_MS,
// IPC_CLIENT_TIMEOUT_MS, and IPC_MAX_MESSAGE_SIZE onto the defaults. Any
// env value that fails to parse as a positive integer is ignored and the
// default is kept; an empty or slash-less WSPath is corrected to carry a
// leading slash.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("IPC_WS_PATH")); v != "" {
		if !strings.HasPrefix(v, "/") {
			v = "/" + v
		}
		cfg.WSPath = v
	}
	if ms, ok := positiveIntEnv("IPC_HEARTBEAT_INTERVAL_MS"); ok {
		cfg.HeartbeatInterval = time.Duration(ms) * time.Millisecond
	}
	if ms, ok := positiveIntEnv("IPC_CLIENT_TIMEOUT_MS"); ok {
		cfg.ClientTimeout = time.Duration(ms) * time.Millisecond
	}
	if n, ok := positiveIntEnv("IPC_MAX_MESSAGE_SIZE"); ok {
		cfg.MaxMessageSizeBytes = int64(n)
	}

	return cfg
}

func positiveIntEnv(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
