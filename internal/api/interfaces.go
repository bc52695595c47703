package api

import (
	"context"
	"time"

	"github.com/skycast/skycast/internal/forecast"
)

// ForecastReader defines the store operations needed by handlers.
type ForecastReader interface {
	QueryRange(ctx context.Context, from, to time.Time, ascending bool) ([]forecast.Day, error)
	GetByDate(ctx context.Context, date time.Time) (*forecast.Day, error)
}

// ForecastCache defines the read-path cache operations needed by handlers.
type ForecastCache interface {
	GetUpcoming(ctx context.Context) ([]forecast.Day, error)
	SetUpcoming(ctx context.Context, days []forecast.Day) error
}

// SyncRunner triggers one refresh cycle on demand.
type SyncRunner interface {
	SyncNow(ctx context.Context) error
}
