package main

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/clinic-reminders/cmd/mainconfig"
	"github.com/wolfman30/clinic-reminders/internal/app/bootstrap"
	"github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/observability/metrics"
	"github.com/wolfman30/clinic-reminders/internal/reminders"
	sweepworker "github.com/wolfman30/clinic-reminders/internal/worker/sweep"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// ticker is the slice of the sweep runner the handler needs.
type ticker interface {
	Tick(ctx context.Context) (reminders.SweepResult, bool)
}

type response struct {
	Ran     bool `json:"ran"`
	Sent    int  `json:"sent"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	pool := mainconfig.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		panic(errors.New("DATABASE_URL is required and must be reachable"))
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		panic(err)
	}

	// Lambda containers are frozen between invocations, so the publisher is never closed.
	reminderMetrics := metrics.NewReminderMetrics(nil)
	publisher, _ := bootstrap.BuildPublisher(cfg, &awsCfg, reminderMetrics, logger)

	engine := bootstrap.BuildEngine(cfg, bootstrap.EngineDeps{
		DB:        pool,
		Transport: bootstrap.BuildTransport(cfg, &awsCfg, logger),
		Publisher: publisher,
		Metrics:   reminderMetrics,
	}, logger)

	runner := sweepworker.NewRunner(engine, logger)
	if sweepLease, _ := bootstrap.BuildSweepLease(ctx, cfg, logger); sweepLease != nil {
		runner = runner.WithLease(sweepLease)
	}
	if store := bootstrap.BuildArchive(cfg, &awsCfg, "sweep-lambda", logger); store != nil {
		runner = runner.WithArchiver(store)
	}

	lambda.Start(func(ctx context.Context, evt events.CloudWatchEvent) (response, error) {
		return handle(ctx, runner, logger, evt)
	})
}

func handle(ctx context.Context, r ticker, logger *logging.Logger, evt events.CloudWatchEvent) (response, error) {
	start := time.Now()
	result, ran := r.Tick(ctx)
	logger.Info("scheduled sweep invocation",
		"event_id", evt.ID,
		"event_time", evt.Time,
		"ran", ran,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return response{
		Ran:     ran,
		Sent:    len(result.Sent),
		Failed:  len(result.Failed),
		Skipped: len(result.Skipped),
	}, nil
}
