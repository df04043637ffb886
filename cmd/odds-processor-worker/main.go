package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/odds-processor/cache"
	"github.com/radieske/sportsbook-core/internal/odds-processor/consumer"
	"github.com/radieske/sportsbook-core/internal/odds-processor/pubsub"
	"github.com/radieske/sportsbook-core/internal/odds-processor/repository"
	sharedcache "github.com/radieske/sportsbook-core/internal/shared/cache"
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

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// o processor é o primeiro a escrever mercados; aplica o schema compartilhado
	if err := db.Migrate(context.Background(), pg); err != nil {
		log.Fatal("postgres migrate", zap.Error(err))
	}

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Cache de snapshot monotônico (Lua) e repositório Postgres de preços
	rcache := cache.NewRedisCache(redisClient, cfg.SnapshotTTL)
	repo := repository.NewPostgresRepo(pg)

	// Consumer Kafka (consumer group odds-processor)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicPriceUpdates, "odds-processor")
	defer reader.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_cache_sets_total", Help: "sets no cache"})
	outOfOrder := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_out_of_order_total", Help: "snapshots descartados por as_of antigo"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_db_writes_total", Help: "escritas no banco (upsert+history)"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, outOfOrder, persist, errorsBy)

	// Broadcaster para o hub do odds-service via Redis Pub/Sub
	broadcaster := pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel)

	proc := &consumer.Processor{
		Log:          log,
		Reader:       reader,
		Repo:         repo,
		Cache:        rcache,
		OnConsumed:   func() { consumed.Inc() },
		OnCached:     func() { cached.Inc() },
		OnOutOfOrder: func() { outOfOrder.Inc() },
		OnPersist:    func() { persist.Inc() },
		OnError:      func(stage string) { errorsBy.WithLabelValues(stage).Inc() },

		// Após persistir, o snapshot vai para os hubs
		OnAfterPersist: func(s betting.PriceSnapshot) {
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := broadcaster.Publish(ctx, s); err != nil {
				log.Warn("ws broadcast publish failed", zap.Error(err))
			}
		},
	}

	// Servidor HTTP para métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("odds-processor started", zap.String("topic", cfg.TopicPriceUpdates))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("odds-processor stopped")
}
