package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by defaults in ApplyDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// Default registry model id used when a create request names none.
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`
	// Pool budgets in MB; 0 means discover (cpu) or unavailable (accelerator).
	CPUBudgetMB   int `json:"cpu_budget_mb" yaml:"cpu_budget_mb" toml:"cpu_budget_mb"`
	AccelBudgetMB int `json:"accel_budget_mb" yaml:"accel_budget_mb" toml:"accel_budget_mb"`
	// Idle session lifetime in seconds; 0 uses the built-in default,
	// negative disables expiry.
	SessionTTLSec int `json:"session_ttl_sec" yaml:"session_ttl_sec" toml:"session_ttl_sec"`
	// Grace period for in-flight work when destroying a busy session, seconds.
	DrainTimeoutSec int `json:"drain_timeout_sec" yaml:"drain_timeout_sec" toml:"drain_timeout_sec"`
	// Request body cap in bytes for JSON endpoints.
	MaxBodyBytes int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	// Server-side cap on a single inference, seconds; 0 disables.
	InferTimeoutSec int    `json:"infer_timeout_sec" yaml:"infer_timeout_sec" toml:"infer_timeout_sec"`
	LogLevel        string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat       string `json:"log_format" yaml:"log_format" toml:"log_format"`
	// CORS is disabled unless enabled here.
	CORSEnabled        bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins" toml:"cors_allowed_origins"`
	CORSAllowedMethods []string `json:"cors_allowed_methods" yaml:"cors_allowed_methods" toml:"cors_allowed_methods"`
	CORSAllowedHeaders []string `json:"cors_allowed_headers" yaml:"cors_allowed_headers" toml:"cors_allowed_headers"`
}

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultAddr         = ":8080"
	DefaultModelsDir    = "~/models/llm"
	DefaultSessionTTL   = 30 * time.Minute
	DefaultDrainTimeout = 10 * time.Second
	DefaultMaxBodyBytes = 1 << 20
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields in place and returns the receiver for
// chaining at the call site.
func (c *Config) ApplyDefaults() *Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.DrainTimeoutSec <= 0 {
		c.DrainTimeoutSec = int(DefaultDrainTimeout / time.Second)
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.InferTimeoutSec < 0 {
		c.InferTimeoutSec = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	return c
}

// SessionTTL returns the idle session lifetime as a duration. Zero means
// "use the built-in default"; a negative value disables expiry.
func (c Config) SessionTTL() time.Duration {
	if c.SessionTTLSec < 0 {
		return -1
	}
	return time.Duration(c.SessionTTLSec) * time.Second
}

// DrainTimeout returns the busy-session drain grace period as a duration.
func (c Config) DrainTimeout() time.Duration {
	if c.DrainTimeoutSec <= 0 {
		return DefaultDrainTimeout
	}
	return time.Duration(c.DrainTimeoutSec) * time.Second
}

// InferTimeout returns the server-side inference cap as a duration.
func (c Config) InferTimeout() time.Duration {
	if c.InferTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(c.InferTimeoutSec) * time.Second
}
