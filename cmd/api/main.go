package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-reminders/cmd/mainconfig"
	"github.com/wolfman30/clinic-reminders/internal/api/router"
	"github.com/wolfman30/clinic-reminders/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-reminders API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	pool := mainconfig.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("api requires a reachable DATABASE_URL")
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	metricsHandler, reminderMetrics := setupMetrics()
	publisher, closePublisher := bootstrap.BuildPublisher(cfg, &awsCfg, reminderMetrics, logger)
	defer func() {
		if err := closePublisher(); err != nil {
			logger.Warn("failed to close outcome publisher", "error", err)
		}
	}()

	engine := bootstrap.BuildEngine(cfg, bootstrap.EngineDeps{
		DB:        pool,
		Transport: bootstrap.BuildTransport(cfg, &awsCfg, logger),
		Publisher: publisher,
		Metrics:   reminderMetrics,
	}, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		RemindersHandler:   reminders.NewHandler(engine, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		RateLimitPerSecond: cfg.APIRateLimitPerSecond,
		RateLimitBurst:     cfg.APIRateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers reminder metrics on a private registry.
func setupMetrics() (http.Handler, *metrics.ReminderMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.NewReminderMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}
