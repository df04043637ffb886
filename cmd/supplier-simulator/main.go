package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sportsbook-core/internal/shared/config"
	"github.com/radieske/sportsbook-core/internal/shared/logger"
	"github.com/radieske/sportsbook-core/internal/shared/metrics"
	"github.com/radieske/sportsbook-core/internal/supplier-simulator/feed"
)

func main() {
	cfg := config.Load()
	log, err := logger.NewWithOptions(cfg.ServiceName, cfg.Env, logger.Options{File: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Métricas Prometheus para monitoramento de conexões e mensagens
	wsConnections := prometheus.NewGauge(prometheus.GaugeOpts{Name: "supplier_ws_connections", Help: "Clientes WebSocket conectados"})
	wsMessagesSent := prometheus.NewCounter(prometheus.CounterOpts{Name: "supplier_ws_messages_sent_total", Help: "Total de mensagens WS enviadas"})
	prometheus.MustRegister(wsConnections, wsMessagesSent)

	hub := feed.NewHub(log)
	hub.OnConnections = func(n int) { wsConnections.Set(float64(n)) }
	hub.OnSent = func() { wsMessagesSent.Inc() }

	srv := &feed.Server{
		Sim: feed.NewSimulator(feed.DefaultCatalog(), time.Now().UnixNano()),
		Hub: hub,
		Log: log,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Gera e envia preços simulados a cada 3 segundos
	go srv.Run(ctx, 3*time.Second)

	metrics.StartMetricsServer(cfg.MetricsPort, func(context.Context) error { return nil })

	publicSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = publicSrv.Shutdown(shutdownCtx)
	}()

	log.Info("supplier simulator (public) running",
		zap.String("addr", publicSrv.Addr),
		zap.String("paths", "/ws,/results"),
		zap.String("metrics_port", cfg.MetricsPort),
	)
	if err := publicSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("public server error", zap.Error(err))
	}
}
