package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend selects which storefront API the client talks to.
const (
	BackendLocal  = "local"
	BackendHosted = "hosted"
)

// Config holds all application settings. Values loaded from the config file
// can be overridden via environment variables (STOREFRONT_*).
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	// Backend toggles between the local development API and the hosted
	// production API. Resolved base URLs come from ResolveAPIBase/ResolveWSBase.
	Backend string `yaml:"backend"`

	API struct {
		LocalBase      string  `yaml:"local_base"`  // e.g. http://localhost:4000
		HostedBase     string  `yaml:"hosted_base"` // e.g. https://api.example.com
		TimeoutSec     int     `yaml:"timeout_sec"` // default 120: tolerate large uploads
		HealthCheck    bool    `yaml:"health_check"`
		HealthTimeSec  int     `yaml:"health_timeout_sec"` // default 5
		RateLimitBurst int     `yaml:"rate_limit_burst"`
		RatePerSecond  float64 `yaml:"rate_per_second"`
	} `yaml:"api"`

	Sync struct {
		FreshnessWindowMin int    `yaml:"freshness_window_min"` // default 5
		UserID             string `yaml:"user_id"`
		KVBackend          string `yaml:"kv_backend"` // "sqlite" (default) or "redis"
		RedisAddr          string `yaml:"redis_addr"`
	} `yaml:"sync"`

	Realtime struct {
		Enabled           bool `yaml:"enabled"`
		ReconnectDelaySec int  `yaml:"reconnect_delay_sec"` // default 5
	} `yaml:"realtime"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies env overrides and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Backend == "" {
		cfg.Backend = BackendLocal
	}
	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = 120
	}
	if cfg.API.HealthTimeSec <= 0 {
		cfg.API.HealthTimeSec = 5
	}
	if cfg.API.RateLimitBurst <= 0 {
		cfg.API.RateLimitBurst = 10
	}
	if cfg.API.RatePerSecond <= 0 {
		cfg.API.RatePerSecond = 5
	}
	if cfg.Sync.FreshnessWindowMin <= 0 {
		cfg.Sync.FreshnessWindowMin = 5
	}
	if cfg.Sync.KVBackend == "" {
		cfg.Sync.KVBackend = "sqlite"
	}
	if cfg.Realtime.ReconnectDelaySec <= 0 {
		cfg.Realtime.ReconnectDelaySec = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal, BackendHosted:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendLocal, BackendHosted, c.Backend)
	}

	base := c.ResolveAPIBase()
	if base == "" || (!strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://")) {
		return fmt.Errorf("invalid API base URL for backend %s: %q", c.Backend, base)
	}

	switch c.Sync.KVBackend {
	case "sqlite":
	case "redis":
		if c.Sync.RedisAddr == "" {
			return fmt.Errorf("kv_backend redis requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown kv_backend: %q", c.Sync.KVBackend)
	}

	return nil
}

// ResolveAPIBase returns the HTTP base URL for the selected backend.
func (c *Config) ResolveAPIBase() string {
	if c.Backend == BackendHosted {
		return c.API.HostedBase
	}
	return c.API.LocalBase
}

// ResolveWSBase derives the WebSocket URL from the HTTP base URL.
func (c *Config) ResolveWSBase() string {
	base := c.ResolveAPIBase()
	if strings.HasPrefix(base, "https://") {
		return "wss://" + strings.TrimPrefix(base, "https://")
	}
	return "ws://" + strings.TrimPrefix(base, "http://")
}

// APITimeout returns the per-request deadline.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// HealthTimeout returns the reachability-probe deadline.
func (c *Config) HealthTimeout() time.Duration {
	return time.Duration(c.API.HealthTimeSec) * time.Second
}

// FreshnessWindow returns the cache-freshness duration for all domains.
func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Sync.FreshnessWindowMin) * time.Minute
}

// ReconnectDelay returns the fixed delay between channel reconnect attempts.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Realtime.ReconnectDelaySec) * time.Second
}

// overrideWithEnv applies environment overrides. Env vars win over the file
// so deployments never need anything sensitive on disk.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("STOREFRONT_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("STOREFRONT_API_BASE"); v != "" {
		if cfg.Backend == BackendHosted {
			cfg.API.HostedBase = v
		} else {
			cfg.API.LocalBase = v
		}
	}
	if v := os.Getenv("STOREFRONT_USER_ID"); v != "" {
		cfg.Sync.UserID = v
	}
	if v := os.Getenv("STOREFRONT_REDIS_ADDR"); v != "" {
		cfg.Sync.RedisAddr = v
	}
	if v := os.Getenv("STOREFRONT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
