package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := LoadTiplineConfig()
	if cfg.Addr != ":4100" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.ChainID != 84532 {
		t.Fatalf("ChainID = %d", cfg.ChainID)
	}
	if cfg.ChainCallTimeout != 15*time.Second {
		t.Fatalf("ChainCallTimeout = %s", cfg.ChainCallTimeout)
	}
	if cfg.SessionTTL != 10*time.Minute {
		t.Fatalf("SessionTTL = %s", cfg.SessionTTL)
	}
	if cfg.RateLimit != 5 || cfg.RateWindow != time.Minute {
		t.Fatalf("rate limit defaults = %d per %s", cfg.RateLimit, cfg.RateWindow)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TIPLINE_ADDR", ":9000")
	t.Setenv("CHAIN_ID", "11155111")
	t.Setenv("RATE_LIMIT_COMMANDS", "20")
	t.Setenv("SESSION_TTL_MINUTES", "3")

	cfg := LoadTiplineConfig()
	if cfg.Addr != ":9000" {
		t.Fatalf("Addr = %q", cfg.Addr)
	}
	if cfg.ChainID != 11155111 {
		t.Fatalf("ChainID = %d", cfg.ChainID)
	}
	if cfg.RateLimit != 20 {
		t.Fatalf("RateLimit = %d", cfg.RateLimit)
	}
	if cfg.SessionTTL != 3*time.Minute {
		t.Fatalf("SessionTTL = %s", cfg.SessionTTL)
	}
}

func TestValidateCollectsAllMissing(t *testing.T) {
	cfg := TiplineConfig{ChainID: 84532}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, name := range []string{"CHAIN_RPC_URL", "WEBHOOK_SECRET", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q missing %s", err.Error(), name)
		}
	}
}

func TestValidateChainID(t *testing.T) {
	cfg := TiplineConfig{
		ChainRPCURL:   "http://localhost:8545",
		WebhookSecret: "x",
		JWTSecret:     "y",
		ChainID:       0,
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "CHAIN_ID") {
		t.Fatalf("err = %v, want CHAIN_ID complaint", err)
	}
}

func TestGetIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("HISTORY_LIMIT", "not-a-number")
	if got := GetInt("HISTORY_LIMIT", 5); got != 5 {
		t.Fatalf("GetInt = %d, want fallback 5", got)
	}
}
