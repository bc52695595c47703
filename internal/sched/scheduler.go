// Package sched decides when sync cycles run: once at startup when the cache
// holds nothing upcoming, and periodically thereafter, independent of any
// request handling.
package sched

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/skycast/skycast/internal/forecast"
)

// SyncRunner runs one refresh cycle.
type SyncRunner interface {
	SyncNow(ctx context.Context) error
}

// UpcomingCounter reports how many cached rows exist for a date onward.
type UpcomingCounter interface {
	CountUpcoming(ctx context.Context, from time.Time) (int64, error)
}

// Scheduler registers the recurring sync job and the startup fill check.
type Scheduler struct {
	sched    *gocron.Scheduler
	runner   SyncRunner
	store    UpcomingCounter
	interval time.Duration
	log      *slog.Logger

	initialized atomic.Bool
}

// New constructs a Scheduler that triggers runner every interval.
func New(runner SyncRunner, store UpcomingCounter, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		sched:    gocron.NewScheduler(time.UTC),
		runner:   runner,
		store:    store,
		interval: interval,
		log:      log,
	}
}

// EnsureInitialized performs the scheduler's one-time setup. It is safe to
// call from multiple goroutines and many times per process; the work runs at
// most once, guarded by an atomic check-and-set that stays set for the
// process lifetime. The first call registers the recurring job and kicks off
// an asynchronous check that triggers an immediate sync when the cache holds
// no rows for today onward.
func (s *Scheduler) EnsureInitialized(ctx context.Context) error {
	if !s.initialized.CompareAndSwap(false, true) {
		return nil
	}

	// WaitForSchedule holds the first periodic run back a full interval;
	// whether a sync happens at startup is syncIfEmpty's decision alone.
	if _, err := s.sched.Every(s.interval).WaitForSchedule().Do(s.runScheduledSync); err != nil {
		return err
	}
	s.sched.StartAsync()
	s.log.Info("periodic sync registered", "interval", s.interval)

	go s.syncIfEmpty(ctx)
	return nil
}

// Stop halts the recurring job. In-flight cycles are not interrupted beyond
// their context; a cycle cut off mid-write is self-healing, the next pass
// re-populates regardless of current content.
func (s *Scheduler) Stop() {
	s.sched.Stop()
}

func (s *Scheduler) runScheduledSync() {
	// The cycle carries its own deadline.
	if err := s.runner.SyncNow(context.Background()); err != nil {
		s.log.Error("scheduled sync failed", "err", err)
	}
}

// syncIfEmpty triggers an immediate sync when the cache has nothing to show
// for today onward. A failed count is treated the same as an empty cache,
// reported as a warning rather than an error.
func (s *Scheduler) syncIfEmpty(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("startup fill check panicked", "recover", r)
		}
	}()

	n, err := s.store.CountUpcoming(ctx, forecast.Today())
	if err != nil {
		s.log.Warn("upcoming row count failed, forcing sync", "err", err)
	} else if n > 0 {
		return
	}

	if err := s.runner.SyncNow(ctx); err != nil {
		s.log.Error("startup sync failed", "err", err)
	}
}
