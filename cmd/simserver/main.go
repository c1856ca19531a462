// cmd/simserver exposes the paper-trading engine to the desktop UI over
// HTTP and WebSocket, with Prometheus metrics and a health endpoint.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"simtrade/config"
	"simtrade/internal/gateway"
	"simtrade/internal/logger"
	"simtrade/internal/marketdata/cache"
	"simtrade/internal/marketdata/httpapi"
	"simtrade/internal/metrics"
	"simtrade/internal/model"
	"simtrade/internal/sim"
	"simtrade/internal/store/sqlite"
)

func main() {
	godotenv.Load()
	cfg := config.Load()
	log := logger.Init("simserver", slog.LevelInfo)

	var provider model.MarketData = httpapi.New(cfg.DataServiceURL)
	if cfg.RedisAddr != "" {
		cached, err := cache.New(provider, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			TTL:      24 * time.Hour,
		})
		if err != nil {
			log.Warn("redis cache unavailable, using direct provider", "err", err)
		} else {
			provider = cached
			defer cached.Close()
		}
	}

	journal, err := sqlite.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Error("journal open failed", "err", err)
		os.Exit(1)
	}
	defer journal.Close()

	m := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.SetJournal(true)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// Probe the data service so /healthz reflects connectivity.
	go probeDataService(provider, health)

	gw := gateway.NewServer(provider, sim.Costs{
		FeeRate:      cfg.FeeRate,
		SlippageRate: cfg.SlippageRate,
	}, journal, m, health)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: gw.Router(),
	}

	go func() {
		log.Info("simserver listening", "addr", cfg.ListenAddr, "data_service", cfg.DataServiceURL)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	metricsSrv.Stop(ctx)
}

// probeDataService checks the calendar endpoint periodically.
func probeDataService(provider model.MarketData, health *metrics.HealthStatus) {
	probe := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		today := time.Now().Format("2006-01-02")
		start := time.Now()
		_, err := provider.TradingDays(ctx, today, today)
		health.SetDataService(err == nil, time.Since(start))
	}
	probe()
	for range time.Tick(30 * time.Second) {
		probe()
	}
}
