package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: storefront-sync
  version: "1.0.0"
api:
  local_base: http://localhost:4000
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Backend != BackendLocal {
		t.Errorf("Backend = %q, want local", cfg.Backend)
	}
	if cfg.APITimeout() != 120*time.Second {
		t.Errorf("APITimeout = %s, want 120s", cfg.APITimeout())
	}
	if cfg.HealthTimeout() != 5*time.Second {
		t.Errorf("HealthTimeout = %s, want 5s", cfg.HealthTimeout())
	}
	if cfg.FreshnessWindow() != 5*time.Minute {
		t.Errorf("FreshnessWindow = %s, want 5m", cfg.FreshnessWindow())
	}
	if cfg.ReconnectDelay() != 5*time.Second {
		t.Errorf("ReconnectDelay = %s, want 5s", cfg.ReconnectDelay())
	}
	if cfg.Sync.KVBackend != "sqlite" {
		t.Errorf("KVBackend = %q, want sqlite", cfg.Sync.KVBackend)
	}
}

func TestLoadConfig_BackendToggle(t *testing.T) {
	path := writeConfig(t, `
backend: hosted
api:
  local_base: http://localhost:4000
  hosted_base: https://api.example.com
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if got := cfg.ResolveAPIBase(); got != "https://api.example.com" {
		t.Errorf("ResolveAPIBase = %q", got)
	}
	if got := cfg.ResolveWSBase(); got != "wss://api.example.com" {
		t.Errorf("ResolveWSBase = %q", got)
	}
}

func TestLoadConfig_WSBaseFromLocal(t *testing.T) {
	path := writeConfig(t, `
api:
  local_base: http://localhost:4000
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.ResolveWSBase(); got != "ws://localhost:4000" {
		t.Errorf("ResolveWSBase = %q, want ws://localhost:4000", got)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad backend", "backend: staging\napi:\n  local_base: http://x\n"},
		{"missing base", "backend: hosted\napi:\n  local_base: http://x\n"},
		{"redis without addr", "api:\n  local_base: http://x\nsync:\n  kv_backend: redis\n"},
		{"unknown kv", "api:\n  local_base: http://x\nsync:\n  kv_backend: dynamo\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("STOREFRONT_USER_ID", "user-env")
	t.Setenv("STOREFRONT_LOG_LEVEL", "debug")

	path := writeConfig(t, `
api:
  local_base: http://localhost:4000
sync:
  user_id: user-file
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Sync.UserID != "user-env" {
		t.Errorf("UserID = %q, want env override", cfg.Sync.UserID)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}
