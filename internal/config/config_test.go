package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SCHEDULER_TICK_INTERVAL", "15s")
	t.Setenv("SESSION_DEADLINE", "90s")
	t.Setenv("LOCK_LEASE_TTL", "3m")
	t.Setenv("CAPTURE_TIMEOUT", "20s")
	t.Setenv("MAX_DAILY_CAPTURES", "4")
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("EARNING_RATE_CENTS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scheduler.TickInterval != 15*time.Second {
		t.Errorf("expected 15s tick, got %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Scheduler.SessionDeadline != 90*time.Second || cfg.Lock.LeaseTTL != 3*time.Minute {
		t.Errorf("unexpected deadline/ttl: %v/%v", cfg.Scheduler.SessionDeadline, cfg.Lock.LeaseTTL)
	}
	if cfg.Scheduler.MaxDailyCaptures != 4 {
		t.Errorf("expected 4 daily captures, got %d", cfg.Scheduler.MaxDailyCaptures)
	}
	if !cfg.Storage.UseSSL || cfg.Lock.Backend != "redis" || cfg.Ledger.EarningRateCents != 7 {
		t.Errorf("overrides not applied: %+v %+v %+v", cfg.Storage, cfg.Lock, cfg.Ledger)
	}
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_DAILY_CAPTURES", "many")
	t.Setenv("STORAGE_USE_SSL", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scheduler.MaxDailyCaptures != 10 {
		t.Errorf("expected default 10, got %d", cfg.Scheduler.MaxDailyCaptures)
	}
	if cfg.Storage.UseSSL {
		t.Error("expected default UseSSL false")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SCHEDULER_TICK_INTERVAL", "soon")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "SCHEDULER_TICK_INTERVAL") {
		t.Fatalf("expected invalid duration error naming the key, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"non-positive tick", map[string]string{"SCHEDULER_TICK_INTERVAL": "0s"}, "tick interval"},
		{"capture exceeds deadline", map[string]string{"CAPTURE_TIMEOUT": "3m"}, "capture timeout"},
		{"deadline exceeds lease", map[string]string{"LOCK_LEASE_TTL": "1m"}, "lock lease ttl"},
		{"no storage attempts", map[string]string{"STORAGE_MAX_ATTEMPTS": "0"}, "max attempts"},
		{"negative rate", map[string]string{"EARNING_RATE_CENTS": "-1"}, "earning rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
