// Package syncer performs end-to-end forecast refresh cycles: fetch the
// remote document, decode it, swap the local cache, and conditionally notify
// the user.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/skycast/skycast/internal/forecast"
	"github.com/skycast/skycast/internal/notify"
	"github.com/skycast/skycast/internal/owm"
)

// Sentinel errors for the three ways a cycle can fail. None of them is
// retried within the cycle; the next scheduled sync is the retry.
var (
	ErrFetchFailed  = errors.New("forecast fetch failed")
	ErrDecodeFailed = errors.New("forecast decode failed")
	ErrWriteFailed  = errors.New("forecast write failed")
)

// notificationInterval is the minimum gap between user notifications.
const notificationInterval = 24 * time.Hour

// syncTimeout bounds one full cycle, fetch through write.
const syncTimeout = 5 * time.Minute

// Source fetches the raw remote forecast document.
type Source interface {
	Fetch(ctx context.Context, location string, days int) ([]byte, error)
}

// Store is the facade surface the syncer writes through.
type Store interface {
	ReplaceAll(ctx context.Context, days []forecast.Day) (int, error)
	GetByDate(ctx context.Context, date time.Time) (*forecast.Day, error)
}

// Preferences supplies the user settings a cycle consults.
type Preferences interface {
	Location() string
	Units() forecast.Units
	NotificationsEnabled() bool
	LastNotificationTime(ctx context.Context) (time.Time, error)
	SetLastNotificationTime(ctx context.Context, t time.Time) error
}

// Syncer coordinates refresh cycles. Concurrent SyncNow callers are
// coalesced: while a cycle is in flight, additional callers join it and
// share its result rather than starting a second cycle, so writes to the
// store are never interleaved.
type Syncer struct {
	source   Source
	store    Store
	prefs    Preferences
	notifier notify.Notifier
	days     int
	log      *slog.Logger

	group singleflight.Group
	now   func() time.Time
}

// New constructs a Syncer fetching up to days upcoming days per cycle.
func New(source Source, store Store, prefs Preferences, notifier notify.Notifier, days int, log *slog.Logger) *Syncer {
	return &Syncer{
		source:   source,
		store:    store,
		prefs:    prefs,
		notifier: notifier,
		days:     days,
		log:      log,
		now:      time.Now,
	}
}

// NewWithClock constructs a Syncer with an injectable clock (for tests).
func NewWithClock(source Source, store Store, prefs Preferences, notifier notify.Notifier, days int, log *slog.Logger, now func() time.Time) *Syncer {
	s := New(source, store, prefs, notifier, days, log)
	s.now = now
	return s
}

// SyncNow runs one refresh cycle, or joins the cycle already in flight.
// The cycle runs under its own deadline, detached from the initiating
// caller's cancellation: a caller that disconnects mid-cycle must not fail
// the run for everyone coalesced onto it.
func (s *Syncer) SyncNow(ctx context.Context) error {
	_, err, _ := s.group.Do("sync", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), syncTimeout)
		defer cancel()
		return nil, s.run(runCtx)
	})
	return err
}

func (s *Syncer) run(ctx context.Context) error {
	location := s.prefs.Location()

	doc, err := s.source.Fetch(ctx, location, s.days)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	days, err := owm.Decode(doc, s.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	// An empty-but-valid document must not wipe a good cache.
	if len(days) == 0 {
		s.log.Info("forecast document contained no days, keeping cached data", "location", location)
		return nil
	}

	written, err := s.store.ReplaceAll(ctx, days)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	s.log.Info("forecast cache replaced", "location", location, "rows", written)

	s.maybeNotify(ctx)
	return nil
}

// maybeNotify shows a notification for the nearest upcoming day when the
// user has notifications enabled and none was shown within the last day.
// Failures here never fail the sync; the fresh data is already stored.
func (s *Syncer) maybeNotify(ctx context.Context) {
	if !s.prefs.NotificationsEnabled() {
		return
	}

	last, err := s.prefs.LastNotificationTime(ctx)
	if err != nil {
		s.log.Warn("reading last notification time failed", "err", err)
		return
	}
	now := s.now()
	if now.Sub(last) < notificationInterval {
		return
	}

	today, err := s.store.GetByDate(ctx, forecast.NormalizeDate(now))
	if err != nil {
		s.log.Warn("loading today's forecast for notification failed", "err", err)
		return
	}
	if today == nil {
		return
	}

	n := notify.Notification{
		Title: "skycast",
		Body:  forecast.Summary(*today, s.prefs.Units()),
		Date:  today.Date,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warn("notification delivery failed", "err", err)
		return
	}

	if err := s.prefs.SetLastNotificationTime(ctx, now); err != nil {
		s.log.Warn("persisting last notification time failed", "err", err)
	}
}
