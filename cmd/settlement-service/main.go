package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	shttp "github.com/radieske/sportsbook-core/internal/settlement-service/http"
	"github.com/radieske/sportsbook-core/internal/settlement-service/engine"
	"github.com/radieske/sportsbook-core/internal/settlement-service/producer"
	"github.com/radieske/sportsbook-core/internal/settlement-service/provider"
	"github.com/radieske/sportsbook-core/internal/settlement-service/repo"
	"github.com/radieske/sportsbook-core/internal/shared/config"
	"github.com/radieske/sportsbook-core/internal/shared/cronrunner"
	"github.com/radieske/sportsbook-core/internal/shared/db"
	"github.com/radieske/sportsbook-core/internal/shared/kafka"
	"github.com/radieske/sportsbook-core/internal/shared/logger"
	"github.com/radieske/sportsbook-core/internal/shared/metrics"
	"github.com/radieske/sportsbook-core/pkg/contracts/betting"
)

func main() {
	cfg := config.Load()
	log, err := logger.NewWithOptions(cfg.ServiceName, cfg.Env, logger.Options{File: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Kafka writers (bet_settled, market_settled)
	betsWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer betsWriter.Close()
	marketsWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketSettled)
	defer marketsWriter.Close()

	betsSettled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_bets_settled_total", Help: "apostas liquidadas por status"}, []string{"status"})
	paid := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_credit_cents_total", Help: "valor creditado nas carteiras"})
	marketsSettled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_markets_settled_total", Help: "mercados liquidados por modo"}, []string{"mode"})
	took := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "settlement_market_duration_seconds", Help: "tempo de liquidação por mercado", Buckets: prometheus.DefBuckets})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_failures_total", Help: "falhas por estágio"}, []string{"stage"})
	sweeps := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_auto_sweep_markets_total", Help: "mercados vistos na auto-liquidação por desfecho"}, []string{"outcome"})
	prometheus.MustRegister(betsSettled, paid, marketsSettled, took, failures, sweeps)

	results := provider.NewClient(cfg.ProviderBaseURL, provider.Options{
		Timeout:    cfg.ProviderTimeout,
		RPS:        cfg.ProviderRPS,
		RetryCount: 2,
	})

	eng := engine.New(
		repo.NewPostgres(pg, cfg.WalletLockTimeout),
		results,
		producer.NewKafkaPublisher(betsWriter, marketsWriter),
		log,
		cfg.SettlementWorkers,
		engine.Hooks{
			OnBetSettled: func(st betting.BetStatus, credit int64) {
				betsSettled.WithLabelValues(string(st)).Inc()
				paid.Add(float64(credit))
			},
			OnMarketSettled: func(sum betting.SettlementSummary, d time.Duration) {
				marketsSettled.WithLabelValues(string(sum.Mode)).Inc()
				took.Observe(d.Seconds())
			},
			OnFailure: func(stage string) { failures.WithLabelValues(stage).Inc() },
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Auto-liquidação periódica
	runner := cronrunner.New(log, ctx)
	if cfg.AutoSettleCron != "" {
		_, err := runner.Add("auto-settle", cfg.AutoSettleCron, func(ctx context.Context) {
			sweep, err := eng.AutoSettle(ctx)
			if err != nil {
				log.Warn("auto-settle sweep failed", zap.Error(err))
				return
			}
			sweeps.WithLabelValues("settled").Add(float64(sweep.Settled))
			sweeps.WithLabelValues("undeclared").Add(float64(sweep.Undeclared))
			sweeps.WithLabelValues("failed").Add(float64(sweep.Failed))
		})
		if err != nil {
			log.Fatal("invalid AUTO_SETTLE_CRON", zap.String("schedule", cfg.AutoSettleCron), zap.Error(err))
		}
		runner.Start()
		defer runner.Stop()
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		return nil
	})

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           shttp.NewServer(log, eng).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, c := context.WithTimeout(context.Background(), 10*time.Second)
		defer c()
		_ = apiSrv.Shutdown(shutdownCtx)
	}()

	log.Info("settlement-service listening",
		zap.String("addr", apiSrv.Addr),
		zap.Int("workers", cfg.SettlementWorkers),
		zap.String("auto_settle_cron", cfg.AutoSettleCron))
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api", zap.Error(err))
	}
}
