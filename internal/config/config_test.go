package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "WEBHOOK_URL", "BACKEND_TIMEOUT", "WIDGET_OPEN_DELAY", "WIDGET_CLOSE_DELAY", "STORAGE_DRIVER", "BREAKER_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Backend.URL != DefaultWebhookURL {
		t.Fatalf("unexpected webhook url %q", cfg.Backend.URL)
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Backend.Timeout)
	}
	if !cfg.Backend.Breaker.Enabled || cfg.Backend.Breaker.MaxFailures != 5 {
		t.Fatalf("unexpected breaker config %+v", cfg.Backend.Breaker)
	}
	if cfg.Widget.OpenDelay != 10*time.Millisecond || cfg.Widget.CloseDelay != 400*time.Millisecond {
		t.Fatalf("unexpected widget delays %+v", cfg.Widget)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("unexpected storage driver %q", cfg.Storage.Driver)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("BACKEND_TIMEOUT", "5s")
	t.Setenv("WIDGET_CLOSE_DELAY", "250")
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("BREAKER_MAX_FAILURES", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Backend.Timeout != 5*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Backend.Timeout)
	}
	if cfg.Widget.CloseDelay != 250*time.Millisecond {
		t.Fatalf("bare numbers should be milliseconds, got %s", cfg.Widget.CloseDelay)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("unexpected storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Backend.Breaker.MaxFailures != 1 {
		t.Fatalf("max failures should clamp to 1, got %d", cfg.Backend.Breaker.MaxFailures)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":            "80 80",
		"BACKEND_TIMEOUT": "soon",
		"STORAGE_DRIVER":  "redis",
		"BREAKER_ENABLED": "maybe",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}
