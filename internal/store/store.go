// Package store is the single access path to the local forecast cache. It
// proxies the storage repository and adds a change-notification side channel
// so readers can re-query after any successful write.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skycast/skycast/internal/forecast"
)

// Repository is the storage surface the facade fronts.
type Repository interface {
	InsertOrReplace(ctx context.Context, day forecast.Day) (int64, error)
	BulkInsert(ctx context.Context, days []forecast.Day) (int, error)
	DeleteAll(ctx context.Context) (int64, error)
	ReplaceAll(ctx context.Context, days []forecast.Day) (int, error)
	QueryRange(ctx context.Context, from, to time.Time, ascending bool) ([]forecast.Day, error)
	GetByDate(ctx context.Context, date time.Time) (*forecast.Day, error)
	CountUpcoming(ctx context.Context, from time.Time) (int64, error)
}

// Store wraps a Repository with observer callbacks. Observers are invoked
// asynchronously after every write that changed the table; the writer never
// blocks on observer execution, and each distinct write is delivered at
// least once.
type Store struct {
	repo Repository
	log  *slog.Logger

	mu      sync.Mutex
	subs    map[uint64]func()
	nextSub uint64
}

// New constructs a Store over the given repository.
func New(repo Repository, log *slog.Logger) *Store {
	return &Store{
		repo: repo,
		log:  log,
		subs: make(map[uint64]func()),
	}
}

// Subscribe registers fn to run after each successful write. The returned
// cancel function removes the subscription.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notifyAll() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn := fn
		go func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("store observer panicked", "recover", r)
				}
			}()
			fn()
		}()
	}
}

// InsertOrReplace proxies the repository and notifies observers on success.
func (s *Store) InsertOrReplace(ctx context.Context, day forecast.Day) (int64, error) {
	id, err := s.repo.InsertOrReplace(ctx, day)
	if err != nil {
		return 0, err
	}
	s.notifyAll()
	return id, nil
}

// BulkInsert proxies the repository and notifies observers when at least one
// row was written.
func (s *Store) BulkInsert(ctx context.Context, days []forecast.Day) (int, error) {
	n, err := s.repo.BulkInsert(ctx, days)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.notifyAll()
	}
	return n, nil
}

// DeleteAll proxies the repository and notifies observers when rows were
// actually removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notifyAll()
	}
	return n, nil
}

// ReplaceAll proxies the repository's transactional swap and notifies
// observers on success.
func (s *Store) ReplaceAll(ctx context.Context, days []forecast.Day) (int, error) {
	n, err := s.repo.ReplaceAll(ctx, days)
	if err != nil {
		return n, err
	}
	s.notifyAll()
	return n, nil
}

// QueryRange proxies the repository.
func (s *Store) QueryRange(ctx context.Context, from, to time.Time, ascending bool) ([]forecast.Day, error) {
	return s.repo.QueryRange(ctx, from, to, ascending)
}

// GetByDate proxies the repository.
func (s *Store) GetByDate(ctx context.Context, date time.Time) (*forecast.Day, error) {
	return s.repo.GetByDate(ctx, date)
}

// CountUpcoming proxies the repository.
func (s *Store) CountUpcoming(ctx context.Context, from time.Time) (int64, error) {
	return s.repo.CountUpcoming(ctx, from)
}
