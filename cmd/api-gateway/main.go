package main

import (
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/gateway"
	"github.com/radieske/sportsbook-core/internal/shared/config"
	"github.com/radieske/sportsbook-core/internal/shared/logger"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfg := config.Load()
	log, err := logger.NewWithOptions(cfg.ServiceName, cfg.Env, logger.Options{File: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// targets
	targets := gateway.Targets{
		Odds:       getenv("ODDS_URL", "http://localhost:8080"),
		Wallet:     getenv("WALLET_URL", "http://localhost:8082"),
		Bets:       getenv("BET_URL", "http://localhost:8083"),
		Settlement: getenv("SETTLEMENT_URL", "http://localhost:8084"),
	}
	h, err := gateway.NewRouter(targets)
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("api-gateway listening", zap.String("addr", srv.Addr), zap.Any("targets", targets))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
