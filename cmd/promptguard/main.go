package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"promptguard/internal/analytics"
	"promptguard/internal/bot"
	"promptguard/internal/config"
	"promptguard/internal/metrics"
	"promptguard/internal/modules/audit"
	"promptguard/internal/storage"
	"promptguard/internal/tracker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("config load failed", zap.Error(err))
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	tr := tracker.New(cfg.Security)
	auditLogger := audit.NewLogger(store, logger)
	analyticsSvc := analytics.New(store)

	b, err := bot.New(cfg, logger, store, tr, auditLogger, analyticsSvc, m)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := b.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("promptguard started")

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := store.CleanupSecurityEvents(ctx, cfg.RetentionDays); err != nil {
			logger.Warn("event cleanup failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("scheduler setup failed", zap.Error(err))
	}
	scheduler.Start()

	var healthServer *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		healthServer = &http.Server{Addr: cfg.Health.Addr, Handler: mux}
		go func() {
			if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server failed", zap.Error(err))
			}
		}()
		logger.Info("health server listening", zap.String("addr", cfg.Health.Addr))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	<-scheduler.Stop().Done()
	if healthServer != nil {
		_ = healthServer.Shutdown(shutdownCtx)
	}
	b.Close(shutdownCtx)
}
