// Package prefs exposes the user preferences the sync path depends on.
// Static preferences come from configuration; the last-notification
// timestamp is mutable state persisted in Redis so it survives restarts.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skycast/skycast/internal/forecast"
)

const lastNotificationKey = "prefs:last_notification"

// Prefs provides read access to user preferences and read/write access to
// the last-notification timestamp.
type Prefs struct {
	client               *redis.Client
	location             string
	units                forecast.Units
	notificationsEnabled bool
}

// New constructs Prefs over the given Redis client.
func New(client *redis.Client, location string, units forecast.Units, notificationsEnabled bool) *Prefs {
	return &Prefs{
		client:               client,
		location:             location,
		units:                units,
		notificationsEnabled: notificationsEnabled,
	}
}

// Location returns the preferred forecast location query.
func (p *Prefs) Location() string { return p.location }

// Units returns the preferred display temperature scale.
func (p *Prefs) Units() forecast.Units { return p.units }

// NotificationsEnabled reports whether the user wants new-weather notifications.
func (p *Prefs) NotificationsEnabled() bool { return p.notificationsEnabled }

// LastNotificationTime returns when a notification was last shown, or the
// zero time when none ever was.
func (p *Prefs) LastNotificationTime(ctx context.Context) (time.Time, error) {
	val, err := p.client.Get(ctx, lastNotificationKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("reading last notification time: %w", err)
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last notification time %q: %w", val, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// SetLastNotificationTime persists t as the moment a notification was shown.
func (p *Prefs) SetLastNotificationTime(ctx context.Context, t time.Time) error {
	val := strconv.FormatInt(t.UnixMilli(), 10)
	if err := p.client.Set(ctx, lastNotificationKey, val, 0).Err(); err != nil {
		return fmt.Errorf("persisting last notification time: %w", err)
	}
	return nil
}
