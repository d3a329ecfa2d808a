package sweepworker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-reminders/internal/reminders"
)

type fakeEngine struct {
	mu     sync.Mutex
	calls  []time.Time
	result reminders.SweepResult
	delay  time.Duration
}

func (f *fakeEngine) CheckAndSendDueReminders(_ context.Context, now time.Time) reminders.SweepResult {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.result
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLease struct {
	mu       sync.Mutex
	held     bool
	err      error
	ttl      time.Duration
	acquired int
	renewals int
	releases int
}

func (f *fakeLease) Renew(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewals++
	return nil
}

func (f *fakeLease) TTL() time.Duration { return f.ttl }

func (f *fakeLease) renewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewals
}

func (f *fakeLease) Acquire(context.Context) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held {
		return false, nil
	}
	f.acquired++
	return true, nil
}

func (f *fakeLease) Release(context.Context) error {
	f.releases++
	return nil
}

type fakeArchiver struct {
	results []reminders.SweepResult
	err     error
}

func (f *fakeArchiver) ArchiveSweep(_ context.Context, _ time.Time, r reminders.SweepResult) error {
	f.results = append(f.results, r)
	return f.err
}

func nonEmpty() reminders.SweepResult {
	return reminders.SweepResult{
		Sent:    []reminders.SweepItem{{ReminderID: "REM_1"}},
		Failed:  []reminders.SweepItem{},
		Skipped: []reminders.SweepItem{},
	}
}

func TestTickRunsSweepUnderLease(t *testing.T) {
	engine := &fakeEngine{result: nonEmpty()}
	lease := &fakeLease{}
	archive := &fakeArchiver{}
	fixed := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	r := NewRunner(engine, nil).WithLease(lease).WithArchiver(archive)
	r.now = func() time.Time { return fixed }

	res, ran := r.Tick(context.Background())
	require.True(t, ran)
	assert.Len(t, res.Sent, 1)
	assert.Equal(t, []time.Time{fixed}, engine.calls)
	assert.Equal(t, 1, lease.acquired)
	assert.Equal(t, 1, lease.releases)
	assert.Len(t, archive.results, 1)
}

func TestTickRenewsLeaseDuringLongSweep(t *testing.T) {
	engine := &fakeEngine{result: nonEmpty(), delay: 120 * time.Millisecond}
	lease := &fakeLease{ttl: 40 * time.Millisecond}
	r := NewRunner(engine, nil).WithLease(lease)

	_, ran := r.Tick(context.Background())
	require.True(t, ran)
	renewed := lease.renewCount()
	assert.GreaterOrEqual(t, renewed, 2)
	assert.Equal(t, 1, lease.releases)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, renewed, lease.renewCount(), "renewal must stop once the sweep returns")
}

func TestTickWithoutTTLDoesNotRenew(t *testing.T) {
	lease := &fakeLease{}
	r := NewRunner(&fakeEngine{delay: 20 * time.Millisecond}, nil).WithLease(lease)

	_, ran := r.Tick(context.Background())
	require.True(t, ran)
	assert.Zero(t, lease.renewCount())
}

func TestTickSkipsWhenLeaseHeld(t *testing.T) {
	engine := &fakeEngine{}
	lease := &fakeLease{held: true}
	r := NewRunner(engine, nil).WithLease(lease)

	_, ran := r.Tick(context.Background())
	assert.False(t, ran)
	assert.Zero(t, engine.count())
	assert.Zero(t, lease.releases)
}

func TestTickSkipsOnLeaseError(t *testing.T) {
	engine := &fakeEngine{}
	r := NewRunner(engine, nil).WithLease(&fakeLease{err: errors.New("redis down")})

	_, ran := r.Tick(context.Background())
	assert.False(t, ran)
	assert.Zero(t, engine.count())
}

func TestTickDoesNotArchiveEmptySweep(t *testing.T) {
	archive := &fakeArchiver{}
	r := NewRunner(&fakeEngine{}, nil).WithArchiver(archive)

	_, ran := r.Tick(context.Background())
	assert.True(t, ran)
	assert.Empty(t, archive.results)
}

func TestTickArchiveErrorIsNotFatal(t *testing.T) {
	archive := &fakeArchiver{err: errors.New("s3 down")}
	r := NewRunner(&fakeEngine{result: nonEmpty()}, nil).WithArchiver(archive)

	res, ran := r.Tick(context.Background())
	assert.True(t, ran)
	assert.Len(t, res.Sent, 1)
}

func TestRunSweepsImmediatelyAndStops(t *testing.T) {
	engine := &fakeEngine{}
	r := NewRunner(engine, nil).WithInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return engine.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}
