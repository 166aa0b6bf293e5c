package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.APIPort != 880 {
		t.Errorf("expected default API port 880, got %d", cfg.Server.APIPort)
	}
	if cfg.Storage.Type != "bolt" {
		t.Errorf("expected default storage type bolt, got %s", cfg.Storage.Type)
	}
	if cfg.Timer.Timezone != "Australia/Sydney" {
		t.Errorf("expected default timezone Australia/Sydney, got %s", cfg.Timer.Timezone)
	}
	if cfg.Timer.WarningThreshold != "10m" {
		t.Errorf("expected default warning threshold 10m, got %s", cfg.Timer.WarningThreshold)
	}
	if cfg.Notify.Kind != "log" {
		t.Errorf("expected default notifier log, got %s", cfg.Notify.Kind)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  api_port: 8080
storage:
  type: redis
  redis:
    host: redis.local
timer:
  timezone: Europe/Berlin
  warning_threshold: 5m
notify:
  kind: webhook
  webhook_url: http://hub.local/notify
  admin_user_ids:
    - parent1
    - parent2
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.APIPort != 8080 {
		t.Errorf("expected API port 8080, got %d", cfg.Server.APIPort)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Redis.Host != "redis.local" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Timer.Timezone != "Europe/Berlin" {
		t.Errorf("expected timezone Europe/Berlin, got %s", cfg.Timer.Timezone)
	}
	if len(cfg.Notify.AdminUserIDs) != 2 {
		t.Errorf("expected 2 admin user IDs, got %v", cfg.Notify.AdminUserIDs)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad storage type", "storage:\n  type: etcd\n"},
		{"bad timezone", "timer:\n  timezone: Mars/Olympus\n"},
		{"bad warning threshold", "timer:\n  warning_threshold: soon\n"},
		{"webhook without url", "notify:\n  kind: webhook\n"},
		{"bad api port", "server:\n  api_port: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
