package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfman30/clinic-reminders/cmd/mainconfig"
	"github.com/wolfman30/clinic-reminders/internal/app/bootstrap"
	"github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	sweepworker "github.com/wolfman30/clinic-reminders/internal/worker/sweep"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := mainconfig.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("reminder worker requires a reachable DATABASE_URL")
		os.Exit(1)
	}
	defer pool.Close()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	reminderMetrics := metrics.NewReminderMetrics(nil)
	publisher, closePublisher := bootstrap.BuildPublisher(cfg, &awsCfg, reminderMetrics, logger)
	defer func() { _ = closePublisher() }()

	engine := bootstrap.BuildEngine(cfg, bootstrap.EngineDeps{
		DB:        pool,
		Transport: bootstrap.BuildTransport(cfg, &awsCfg, logger),
		Publisher: publisher,
		Metrics:   reminderMetrics,
	}, logger)

	runner := sweepworker.NewRunner(engine, logger).WithInterval(cfg.SweepInterval)
	sweepLease, closeLease := bootstrap.BuildSweepLease(ctx, cfg, logger)
	defer closeLease()
	if sweepLease != nil {
		runner = runner.WithLease(sweepLease)
	} else {
		logger.Warn("no sweep lease; run a single worker per database")
	}
	if store := bootstrap.BuildArchive(cfg, &awsCfg, "reminder-worker", logger); store != nil {
		runner = runner.WithArchiver(store)
	}

	go runner.Run(ctx)
	logger.Info("reminder worker started", "interval", cfg.SweepInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("reminder worker shutting down")
	cancel()
	time.Sleep(2 * time.Second)
}
