package store_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skycast/skycast/internal/forecast"
	"github.com/skycast/skycast/internal/store"
)

// ---- mock repository ----

type mockRepo struct {
	insertFn     func(ctx context.Context, day forecast.Day) (int64, error)
	bulkInsertFn func(ctx context.Context, days []forecast.Day) (int, error)
	deleteAllFn  func(ctx context.Context) (int64, error)
	replaceAllFn func(ctx context.Context, days []forecast.Day) (int, error)
	queryRangeFn func(ctx context.Context, from, to time.Time, ascending bool) ([]forecast.Day, error)
	getByDateFn  func(ctx context.Context, date time.Time) (*forecast.Day, error)
	countFn      func(ctx context.Context, from time.Time) (int64, error)
}

func (m *mockRepo) InsertOrReplace(ctx context.Context, day forecast.Day) (int64, error) {
	return m.insertFn(ctx, day)
}
func (m *mockRepo) BulkInsert(ctx context.Context, days []forecast.Day) (int, error) {
	return m.bulkInsertFn(ctx, days)
}
func (m *mockRepo) DeleteAll(ctx context.Context) (int64, error) {
	return m.deleteAllFn(ctx)
}
func (m *mockRepo) ReplaceAll(ctx context.Context, days []forecast.Day) (int, error) {
	return m.replaceAllFn(ctx, days)
}
func (m *mockRepo) QueryRange(ctx context.Context, from, to time.Time, ascending bool) ([]forecast.Day, error) {
	return m.queryRangeFn(ctx, from, to, ascending)
}
func (m *mockRepo) GetByDate(ctx context.Context, date time.Time) (*forecast.Day, error) {
	return m.getByDateFn(ctx, date)
}
func (m *mockRepo) CountUpcoming(ctx context.Context, from time.Time) (int64, error) {
	return m.countFn(ctx, from)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleDay() forecast.Day {
	return forecast.Day{
		Date:        forecast.NormalizeDate(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
		ConditionID: 800,
		MinTemp:     7,
		MaxTemp:     14,
		Humidity:    60,
		Pressure:    1013,
		WindSpeed:   3.5,
		WindDegrees: 180,
	}
}

const notifyWait = 2 * time.Second

func TestInsertOrReplace_NotifiesObservers(t *testing.T) {
	repo := &mockRepo{
		insertFn: func(_ context.Context, _ forecast.Day) (int64, error) { return 1, nil },
	}
	s := store.New(repo, testLogger())

	var notified atomic.Int64
	cancel := s.Subscribe(func() { notified.Add(1) })
	defer cancel()

	id, err := s.InsertOrReplace(context.Background(), sampleDay())
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.Eventually(t, func() bool { return notified.Load() == 1 }, notifyWait, 10*time.Millisecond)
}

func TestInsertOrReplace_NoNotifyOnError(t *testing.T) {
	repo := &mockRepo{
		insertFn: func(_ context.Context, _ forecast.Day) (int64, error) {
			return 0, fmt.Errorf("db error")
		},
	}
	s := store.New(repo, testLogger())

	var notified atomic.Int64
	cancel := s.Subscribe(func() { notified.Add(1) })
	defer cancel()

	_, err := s.InsertOrReplace(context.Background(), sampleDay())
	require.Error(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, notified.Load())
}

func TestDeleteAll_NoNotifyWhenNothingDeleted(t *testing.T) {
	repo := &mockRepo{
		deleteAllFn: func(_ context.Context) (int64, error) { return 0, nil },
	}
	s := store.New(repo, testLogger())

	var notified atomic.Int64
	cancel := s.Subscribe(func() { notified.Add(1) })
	defer cancel()

	n, err := s.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, notified.Load())
}

func TestDeleteAll_NotifiesWhenRowsRemoved(t *testing.T) {
	repo := &mockRepo{
		deleteAllFn: func(_ context.Context) (int64, error) { return 5, nil },
	}
	s := store.New(repo, testLogger())

	var notified atomic.Int64
	cancel := s.Subscribe(func() { notified.Add(1) })
	defer cancel()

	n, err := s.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	require.Eventually(t, func() bool { return notified.Load() == 1 }, notifyWait, 10*time.Millisecond)
}

func TestBulkInsert_NoNotifyWhenNothingWritten(t *testing.T) {
	repo := &mockRepo{
		bulkInsertFn: func(_ context.Context, _ []forecast.Day) (int, error) { return 0, nil },
	}
	s := store.New(repo, testLogger())

	var notified atomic.Int64
	cancel := s.Subscribe(func() { notified.Add(1) })
	defer cancel()

	n, err := s.BulkInsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, notified.Load())
}

func TestReplaceAll_EachWriteDeliveredToEachObserver(t *testing.T) {
	repo := &mockRepo{
		replaceAllFn: func(_ context.Context, days []forecast.Day) (int, error) { return len(days), nil },
	}
	s := store.New(repo, testLogger())

	var first, second atomic.Int64
	cancel1 := s.Subscribe(func() { first.Add(1) })
	defer cancel1()
	cancel2 := s.Subscribe(func() { second.Add(1) })
	defer cancel2()

	_, err := s.ReplaceAll(context.Background(), []forecast.Day{sampleDay()})
	require.NoError(t, err)
	_, err = s.ReplaceAll(context.Background(), []forecast.Day{sampleDay()})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return first.Load() == 2 && second.Load() == 2
	}, notifyWait, 10*time.Millisecond)
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	repo := &mockRepo{
		replaceAllFn: func(_ context.Context, days []forecast.Day) (int, error) { return len(days), nil },
	}
	s := store.New(repo, testLogger())

	var notified atomic.Int64
	cancel := s.Subscribe(func() { notified.Add(1) })

	_, err := s.ReplaceAll(context.Background(), []forecast.Day{sampleDay()})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return notified.Load() == 1 }, notifyWait, 10*time.Millisecond)

	cancel()

	_, err = s.ReplaceAll(context.Background(), []forecast.Day{sampleDay()})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), notified.Load())
}

func TestObserverPanicDoesNotPropagate(t *testing.T) {
	repo := &mockRepo{
		replaceAllFn: func(_ context.Context, days []forecast.Day) (int, error) { return len(days), nil },
	}
	s := store.New(repo, testLogger())

	var notified atomic.Int64
	cancelPanicky := s.Subscribe(func() { panic("observer bug") })
	defer cancelPanicky()
	cancel := s.Subscribe(func() { notified.Add(1) })
	defer cancel()

	_, err := s.ReplaceAll(context.Background(), []forecast.Day{sampleDay()})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return notified.Load() == 1 }, notifyWait, 10*time.Millisecond)
}

func TestReadsProxyRepository(t *testing.T) {
	day := sampleDay()
	repo := &mockRepo{
		queryRangeFn: func(_ context.Context, from, to time.Time, asc bool) ([]forecast.Day, error) {
			assert.True(t, asc)
			return []forecast.Day{day}, nil
		},
		getByDateFn: func(_ context.Context, date time.Time) (*forecast.Day, error) {
			assert.Equal(t, day.Date, date)
			return &day, nil
		},
		countFn: func(_ context.Context, _ time.Time) (int64, error) { return 3, nil },
	}
	s := store.New(repo, testLogger())
	ctx := context.Background()

	days, err := s.QueryRange(ctx, day.Date, time.Time{}, true)
	require.NoError(t, err)
	assert.Len(t, days, 1)

	got, err := s.GetByDate(ctx, day.Date)
	require.NoError(t, err)
	require.NotNil(t, got)

	n, err := s.CountUpcoming(ctx, day.Date)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
