package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// TrinityConfig is the ambient configuration surface for the reasoning
// gateway and IPC bridge (spec §6 environment table). It is loaded with the
// same layered-override convention as Config.Load: defaults, then a global
// config file, then a project-local config file, then environment
// variables under the TRINITY_ prefix.
type TrinityConfig struct {
	Port             int    `mapstructure:"port"`
	IPCPort          int    `mapstructure:"ipc_port"`
	AuthMode         string `mapstructure:"auth_mode"`
	AuthRequired     bool   `mapstructure:"auth_required"`
	DatabaseRequired bool   `mapstructure:"database_required"`

	JWTSecret         string `mapstructure:"jwt_secret"`
	OpenAIAPIKey      string `mapstructure:"openai_api_key"`
	AuthAPIKey        string `mapstructure:"auth_api_key"`
	AuthAPIKeyHeader  string `mapstructure:"auth_api_key_header"`
	AuthAPIKeyPrefix  string `mapstructure:"auth_api_key_prefix"`
	AuthAnonymousUser string `mapstructure:"auth_anonymous_user_id"`

	AuthUserEmail      string `mapstructure:"auth_user_email"`
	AuthPasswordSalt   string `mapstructure:"auth_password_salt"`
	AuthPasswordHash   string `mapstructure:"auth_password_hash"`

	IPCWSPath              string        `mapstructure:"ipc_ws_path"`
	IPCHeartbeatIntervalMs int           `mapstructure:"ipc_heartbeat_interval_ms"`
	IPCClientTimeoutMs     int           `mapstructure:"ipc_client_timeout_ms"`
	IPCMaxMessageSize      int64         `mapstructure:"ipc_max_message_size"`

	AllowedOrigins       []string `mapstructure:"allowed_origins"`
	RateLimitWindowMs    int      `mapstructure:"rate_limit_window_ms"`
	RateLimitMaxRequests int      `mapstructure:"rate_limit_max_requests"`
	DaemonGptIDHeader    string   `mapstructure:"daemon_gpt_id_header"`

	// ClearEscalationThreshold seeds trinity.AutoTuner on startup and on
	// every config-file reload (spec §5's CLEAR threshold is otherwise
	// self-tuning via EMA; this is the operator override).
	ClearEscalationThreshold float64 `mapstructure:"clear_escalation_threshold"`
	// AdmissionCapSimple/Complex/Critical are the per-tier concurrency
	// caps trinity.Admission enforces (spec §4.2), reloadable without a
	// restart.
	AdmissionCapSimple   int `mapstructure:"admission_cap_simple"`
	AdmissionCapComplex  int `mapstructure:"admission_cap_complex"`
	AdmissionCapCritical int `mapstructure:"admission_cap_critical"`

	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// LoadTrinityConfig loads the ambient gateway configuration. See Load for
// the layering convention this mirrors. The returned *viper.Viper backs
// WatchTrinityConfig for hot-reload of the tunables normalizeTrinityConfig
// and the caller consider safe to change without a restart.
func LoadTrinityConfig() (*TrinityConfig, *viper.Viper, error) {
	v := viper.New()
	setTrinityDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	globalDir := filepath.Join(os.Getenv("HOME"), ".trinity")
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v.SetConfigFile(localPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, nil, fmt.Errorf("failed to read local config: %w", err)
			}
			break
		}
	}

	v.SetEnvPrefix("TRINITY")
	v.AutomaticEnv()

	cfg, err := unmarshalTrinityConfig(v)
	if err != nil {
		return nil, nil, err
	}
	if err := validateAuthMode(cfg.AuthMode); err != nil {
		return nil, nil, err
	}

	return cfg, v, nil
}

// validAuthModes mirrors auth.Mode's three recognized values. Duplicated as
// plain strings (rather than importing infrastructure/auth) to keep config
// loading free of a dependency on the package it configures.
var validAuthModes = map[string]bool{
	"jwt":     true,
	"api_key": true,
	"none":    true,
	"":        true, // unset, defaults to "none" via auth.DefaultConfig
}

// validateAuthMode enforces spec §6's "Unrecognized AUTH_MODE → process
// exits with non-zero code" at load time rather than deferring to the first
// request, which would otherwise fall through Authenticate's default case.
func validateAuthMode(mode string) error {
	if !validAuthModes[mode] {
		return fmt.Errorf("unrecognized auth_mode %q: must be one of jwt, api_key, none", mode)
	}
	return nil
}

func unmarshalTrinityConfig(v *viper.Viper) (*TrinityConfig, error) {
	var cfg TrinityConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trinity config: %w", err)
	}
	normalizeTrinityConfig(&cfg)
	return &cfg, nil
}

// WatchTrinityConfig hot-reloads the subset of tunables safe to change at
// runtime (CLEAR escalation threshold seed, per-tier admission caps) by
// re-unmarshalling v and invoking onChange with the fresh config whenever
// the backing file changes. It is a no-op if no config file was found at
// load time. Unmarshal errors are swallowed with onChange simply not
// firing, since a reload failing should not take down a running gateway.
func WatchTrinityConfig(v *viper.Viper, onChange func(*TrinityConfig)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshalTrinityConfig(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

func setTrinityDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("ipc_port", 8080)
	v.SetDefault("auth_mode", "none")
	v.SetDefault("auth_required", false)
	v.SetDefault("database_required", false)

	v.SetDefault("auth_api_key_header", "X-API-Key")
	v.SetDefault("auth_anonymous_user_id", "anonymous")

	v.SetDefault("ipc_ws_path", "/ws/daemon")
	v.SetDefault("ipc_heartbeat_interval_ms", 30000)
	v.SetDefault("ipc_client_timeout_ms", 90000)
	v.SetDefault("ipc_max_message_size", 1048576)

	v.SetDefault("rate_limit_window_ms", 60000)
	v.SetDefault("rate_limit_max_requests", 120)
	v.SetDefault("daemon_gpt_id_header", "X-Daemon-GPT-Id")

	v.SetDefault("clear_escalation_threshold", 3.0)
	v.SetDefault("admission_cap_simple", 8)
	v.SetDefault("admission_cap_complex", 4)
	v.SetDefault("admission_cap_critical", 2)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "trinity.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// normalizeTrinityConfig enforces the positive-integer/leading-slash rules
// spec §4.9 asks of the IPC tunables and applies a leading slash to
// IPCWSPath the way the IPC server's own env loader does.
func normalizeTrinityConfig(cfg *TrinityConfig) {
	if cfg.IPCWSPath == "" {
		cfg.IPCWSPath = "/ws/daemon"
	} else if cfg.IPCWSPath[0] != '/' {
		cfg.IPCWSPath = "/" + cfg.IPCWSPath
	}
	if cfg.IPCHeartbeatIntervalMs <= 0 {
		cfg.IPCHeartbeatIntervalMs = 30000
	}
	if cfg.IPCClientTimeoutMs <= 0 {
		cfg.IPCClientTimeoutMs = 90000
	}
	if cfg.IPCMaxMessageSize <= 0 {
		cfg.IPCMaxMessageSize = 1048576
	}
}

// HeartbeatInterval/ClientTimeout convert the millisecond env values to
// time.Duration for the ipcserver.Config this TrinityConfig feeds.
func (c *TrinityConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.IPCHeartbeatIntervalMs) * time.Millisecond
}

func (c *TrinityConfig) ClientTimeout() time.Duration {
	return time.Duration(c.IPCClientTimeoutMs) * time.Millisecond
}
