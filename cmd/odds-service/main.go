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

	oddscache "github.com/radieske/sportsbook-core/internal/odds-service/cache"
	httpapi "github.com/radieske/sportsbook-core/internal/odds-service/http"
	"github.com/radieske/sportsbook-core/internal/odds-service/repo"
	"github.com/radieske/sportsbook-core/internal/odds-service/ws"
	"github.com/radieske/sportsbook-core/internal/shared/cache"
	"github.com/radieske/sportsbook-core/internal/shared/config"
	"github.com/radieske/sportsbook-core/internal/shared/db"
	"github.com/radieske/sportsbook-core/internal/shared/logger"
	"github.com/radieske/sportsbook-core/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.NewWithOptions(cfg.ServiceName, cfg.Env, logger.Options{File: cfg.LogFile})
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// conecta com db Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	log.Info("postgres connected")

	// conecta com cache Redis
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	viewers := prometheus.NewGauge(prometheus.GaugeOpts{Name: "odds_ws_viewers", Help: "viewers conectados"})
	delivered := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ws_updates_delivered_total", Help: "updates entregues"})
	coalesced := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ws_updates_coalesced_total", Help: "updates substituídos antes da entrega"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ws_updates_dropped_total", Help: "snapshots antigos descartados"})
	prometheus.MustRegister(viewers, delivered, coalesced, dropped)

	// Hub único do processo, alimentado pelo canal Redis do odds-processor
	snapshots := oddscache.New(redisClient)
	hub := ws.NewHub(log, snapshots, ws.Hooks{
		OnViewers:   func(n int) { viewers.Set(float64(n)) },
		OnDelivered: func(n int) { delivered.Add(float64(n)) },
		OnCoalesced: func() { coalesced.Inc() },
		OnDropped:   func() { dropped.Inc() },
	})
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)

	allowOrigin := func(r *http.Request) bool { return cfg.Env == "local" || r.Header.Get("Origin") == "" }
	wsServer := ws.NewServer(hub, log, allowOrigin)

	api := &httpapi.API{
		ReadRepo: &repo.ReadRepo{DB: pg},
		Cache:    snapshots,
		WS:       wsServer.HandleWS,
	}

	// sobe servidor de métricas e health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return redisClient.Ping(ctx).Err()
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("odds-service listening", zap.String("addr", srv.Addr), zap.String("metrics_port", cfg.MetricsPort))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("http server failed", zap.Error(err))
	}
}
