package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/odds-ingest/publisher"
	"github.com/radieske/sportsbook-core/internal/odds-ingest/service"
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

	log.Info("Kafka brokers", zap.String("brokers", cfg.KafkaBrokers))

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Em local/dev o broker é único e os tópicos são criados no boot
	if cfg.Env == "local" || cfg.Env == "dev" {
		ctrlCtx, ctrlCancel := context.WithTimeout(ctx, 10*time.Second)
		err := kafka.EnsureTopics(ctrlCtx, cfg.KafkaBrokers,
			cfg.TopicPriceUpdates, cfg.TopicBetPlaced, cfg.TopicBetSettled, cfg.TopicMarketSettled,
			cfg.TopicBetPlacedDLQ, cfg.TopicBetSettledDLQ)
		ctrlCancel()
		if err != nil {
			log.Warn("failed to ensure kafka topics", zap.Error(err))
		}
	}

	// Kafka Publisher
	pub := publisher.NewKafkaPublisher(kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPriceUpdates), "supplier-ws", log)
	defer pub.Close()

	received := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ingest_messages_received_total", Help: "mensagens recebidas do fornecedor"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_ingest_messages_rejected_total", Help: "mensagens rejeitadas por motivo"}, []string{"reason"})
	staleMarked := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ingest_stale_markers_total", Help: "snapshots marcados como stale após queda do feed"})
	prometheus.MustRegister(received, rejected, staleMarked)

	// WS Client
	wsClient := &service.WSClient{
		URL:        cfg.SupplierWSURL,
		Log:        log,
		Publisher:  pub,
		Normalizer: service.NewNormalizer(),
		OnReceived: func() { received.Inc() },
		OnRejected: func(reason string) { rejected.WithLabelValues(reason).Inc() },
		OnStale:    func(n int) { staleMarked.Add(float64(n)) },
	}
	go wsClient.Start(ctx)

	// Metrics e health
	metrics.StartMetricsServer(cfg.MetricsPort, func(context.Context) error { return nil })
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	<-ctx.Done()
	log.Info("shutdown signal received")
	time.Sleep(2 * time.Second)
}
