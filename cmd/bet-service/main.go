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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bhttp "github.com/radieske/sportsbook-core/internal/bet-service/http"
	"github.com/radieske/sportsbook-core/internal/bet-service/odds"
	"github.com/radieske/sportsbook-core/internal/bet-service/placement"
	kpub "github.com/radieske/sportsbook-core/internal/bet-service/producer"
	"github.com/radieske/sportsbook-core/internal/bet-service/repo"
	"github.com/radieske/sportsbook-core/internal/shared/cache"
	"github.com/radieske/sportsbook-core/internal/shared/config"
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

	tolerance, err := decimal.NewFromString(cfg.PriceTolerance)
	if err != nil || tolerance.IsNegative() {
		log.Fatal("invalid PRICE_TOLERANCE", zap.String("value", cfg.PriceTolerance), zap.Error(err))
	}

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (snapshot de preço corrente)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writer (topic bet_placed)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer writer.Close()

	placed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bets_placed_total", Help: "apostas aceitas por tipo"}, []string{"bet_type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bets_rejected_total", Help: "apostas rejeitadas por motivo"}, []string{"reason"})
	staked := prometheus.NewCounter(prometheus.CounterOpts{Name: "bets_locked_cents_total", Help: "valor bloqueado em apostas aceitas"})
	prometheus.MustRegister(placed, rejected, staked)

	// deps
	svc := placement.NewService(
		repo.NewPostgres(pg, cfg.WalletLockTimeout),
		odds.NewValidator(rdb),
		kpub.NewKafkaPublisher(writer),
		log,
		tolerance,
		placement.Hooks{
			OnPlaced: func(b betting.Bet) {
				placed.WithLabelValues(string(b.Type)).Inc()
				staked.Add(float64(b.LockedCents))
			},
			OnRejected: func(reason string) { rejected.WithLabelValues(reason).Inc() },
		},
	)

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		return rdb.Ping(ctx).Err()
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// HTTP público
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           bhttp.NewServer(log, svc).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = apiSrv.Shutdown(shutdownCtx)
	}()

	log.Info("bet-service listening", zap.String("addr", apiSrv.Addr), zap.String("tolerance", tolerance.String()))
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api", zap.Error(err))
	}
}
