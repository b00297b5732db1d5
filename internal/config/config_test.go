package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.Game.DailyMoves != 10 {
		t.Errorf("DailyMoves = %d, want 10", cfg.Game.DailyMoves)
	}
	if cfg.Game.RoundDuration != 120*time.Second {
		t.Errorf("RoundDuration = %v, want 120s", cfg.Game.RoundDuration)
	}
	if cfg.Game.QuotaTZ != "UTC" {
		t.Errorf("QuotaTZ = %q, want UTC", cfg.Game.QuotaTZ)
	}
	if cfg.Sweep.ExpireInterval != 30*time.Second {
		t.Errorf("ExpireInterval = %v, want 30s", cfg.Sweep.ExpireInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTH_SECRET", "test-secret")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DAILY_MOVES", "3")
	t.Setenv("ROUND_DURATION", "90s")
	t.Setenv("QUOTA_TZ", "Europe/Berlin")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if cfg.Game.DailyMoves != 3 {
		t.Errorf("DailyMoves = %d, want 3", cfg.Game.DailyMoves)
	}
	if cfg.Game.RoundDuration != 90*time.Second {
		t.Errorf("RoundDuration = %v, want 90s", cfg.Game.RoundDuration)
	}
	if cfg.Game.QuotaTZ != "Europe/Berlin" {
		t.Errorf("QuotaTZ = %q, want Europe/Berlin", cfg.Game.QuotaTZ)
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	os.Unsetenv("AUTH_SECRET")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without AUTH_SECRET")
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Setenv("AUTH_SECRET", "test-secret")
	t.Setenv("QUOTA_TZ", "Mars/Olympus")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}
