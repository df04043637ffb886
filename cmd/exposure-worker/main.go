package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/sportsbook-core/internal/exposure-worker/consumer"
	"github.com/radieske/sportsbook-core/internal/exposure-worker/store"
	"github.com/radieske/sportsbook-core/internal/shared/cache"
	"github.com/radieske/sportsbook-core/internal/shared/config"
	"github.com/radieske/sportsbook-core/internal/shared/kafka"
	"github.com/radieske/sportsbook-core/internal/shared/logger"
	"github.com/radieske/sportsbook-core/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.NewWithOptions(cfg.ServiceName, cfg.Env, logger.Options{File: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	exposure := store.NewRedisExposure(rdb, cfg.ExposureTTL)

	// Kafka consumers: bet_placed e bet_settled, cada um com sua DLQ
	placedReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetPlaced, "exposure-worker")
	defer placedReader.Close()
	settledReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicBetSettled, "exposure-worker")
	defer settledReader.Close()
	placedDLQ := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlacedDLQ)
	defer placedDLQ.Close()
	settledDLQ := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettledDLQ)
	defer settledDLQ.Close()

	applied := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "exposure_events_applied_total", Help: "eventos aplicados"}, []string{"kind"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "exposure_events_duplicate_total", Help: "eventos repetidos ignorados"}, []string{"kind"})
	dlq := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "exposure_events_dlq_total", Help: "eventos enviados para DLQ"}, []string{"kind"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "exposure_errors_total", Help: "erros por estágio"}, []string{"kind", "stage"})
	prometheus.MustRegister(applied, duplicates, dlq, errorsBy)

	newWorker := func(kind consumer.Kind, r consumer.MessageReader, dlqWriter consumer.MessageWriter) *consumer.Worker {
		return &consumer.Worker{
			Log:         log,
			Kind:        kind,
			Reader:      r,
			Store:       exposure,
			DLQ:         dlqWriter,
			Retries:     3,
			RetryWait:   300 * time.Millisecond,
			OnApplied:   func(k consumer.Kind) { applied.WithLabelValues(string(k)).Inc() },
			OnDuplicate: func(k consumer.Kind) { duplicates.WithLabelValues(string(k)).Inc() },
			OnDLQ:       func(k consumer.Kind) { dlq.WithLabelValues(string(k)).Inc() },
			OnError:     func(k consumer.Kind, stage string) { errorsBy.WithLabelValues(string(k), stage).Inc() },
		}
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("exposure-worker started",
		zap.String("placed", cfg.TopicBetPlaced),
		zap.String("settled", cfg.TopicBetSettled))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return newWorker(consumer.KindPlaced, placedReader, placedDLQ).Run(gctx) })
	g.Go(func() error { return newWorker(consumer.KindSettled, settledReader, settledDLQ).Run(gctx) })
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal("exposure worker stopped with error", zap.Error(err))
	}
	log.Info("exposure-worker stopped")
}
