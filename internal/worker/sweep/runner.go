package sweepworker

import (
	"context"
	"time"

	"github.com/wolfman30/clinic-reminders/internal/reminders"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

type sweeper interface {
	CheckAndSendDueReminders(ctx context.Context, now time.Time) reminders.SweepResult
}

// Lease guards a sweep against concurrent runs in other processes. A held
// lease is renewed every TTL/2 until the sweep returns.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
	TTL() time.Duration
}

// Archiver records non-empty sweep results.
type Archiver interface {
	ArchiveSweep(ctx context.Context, asOf time.Time, result reminders.SweepResult) error
}

// Runner triggers the due-reminder sweep on an interval.
type Runner struct {
	engine   sweeper
	lease    Lease
	archive  Archiver
	logger   *logging.Logger
	interval time.Duration
	now      func() time.Time
}

func NewRunner(engine sweeper, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		engine:   engine,
		logger:   logger,
		interval: time.Minute,
		now:      time.Now,
	}
}

func (r *Runner) WithInterval(d time.Duration) *Runner {
	if d > 0 {
		r.interval = d
	}
	return r
}

// WithLease makes each tick skip the sweep unless the lease is acquired.
func (r *Runner) WithLease(l Lease) *Runner {
	r.lease = l
	return r
}

func (r *Runner) WithArchiver(a Archiver) *Runner {
	r.archive = a
	return r
}

// Run sweeps immediately and then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one guarded sweep. It reports whether the sweep ran.
func (r *Runner) Tick(ctx context.Context) (reminders.SweepResult, bool) {
	if r.engine == nil {
		return reminders.SweepResult{}, false
	}
	if r.lease != nil {
		ok, err := r.lease.Acquire(ctx)
		if err != nil {
			r.logger.Error("sweep lease acquire failed", "error", err)
			return reminders.SweepResult{}, false
		}
		if !ok {
			r.logger.Debug("sweep lease held elsewhere; skipping tick")
			return reminders.SweepResult{}, false
		}
		defer func() {
			if err := r.lease.Release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("sweep lease release failed", "error", err)
			}
		}()
		stop := r.keepAlive(ctx)
		defer stop()
	}

	asOf := r.now()
	result := r.engine.CheckAndSendDueReminders(ctx, asOf)
	if result.Empty() {
		return result, true
	}
	r.logger.Info("sweep completed",
		"sent", len(result.Sent),
		"failed", len(result.Failed),
		"skipped", len(result.Skipped),
	)
	if r.archive != nil {
		if err := r.archive.ArchiveSweep(ctx, asOf, result); err != nil {
			r.logger.Error("sweep archive failed", "error", err)
		}
	}
	return result, true
}

// keepAlive renews the held lease in the background. The returned func stops
// renewal and waits for the goroutine to exit.
func (r *Runner) keepAlive(ctx context.Context) func() {
	every := r.lease.TTL() / 2
	if every <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := r.lease.Renew(ctx); err != nil && ctx.Err() == nil {
					r.logger.Error("sweep lease renew failed; another worker may start sweeping", "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
