package config

import (
	"testing"
	"time"
)

func TestLoadSettlementServiceDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-service")
	t.Setenv("WALLET_LOCK_TIMEOUT", "750ms")
	t.Setenv("SETTLEMENT_WORKERS", "not-a-number")

	cfg := Load()
	if cfg.HTTPPort != "8084" || cfg.MetricsPort != "9100" {
		t.Fatalf("ports=%s/%s want 8084/9100", cfg.HTTPPort, cfg.MetricsPort)
	}
	if cfg.WalletLockTimeout != 750*time.Millisecond {
		t.Fatalf("lock timeout=%s want=750ms", cfg.WalletLockTimeout)
	}
	if cfg.SettlementWorkers != 8 {
		t.Fatalf("workers=%d want default 8", cfg.SettlementWorkers)
	}
	if cfg.TopicBetSettled != "bet_settled" {
		t.Fatalf("topic=%s", cfg.TopicBetSettled)
	}
}

func TestLoadPriceTolerance(t *testing.T) {
	t.Setenv("SERVICE_NAME", "bet-service")
	t.Setenv("PRICE_TOLERANCE", "0.05")

	cfg := Load()
	if cfg.PriceTolerance != "0.05" {
		t.Fatalf("tolerance=%s want=0.05", cfg.PriceTolerance)
	}
	if cfg.HTTPPort != "8083" {
		t.Fatalf("port=%s want=8083", cfg.HTTPPort)
	}
}
