package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skycast/skycast/internal/forecast"
	"github.com/skycast/skycast/internal/syncer"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	store  ForecastReader
	cache  ForecastCache
	runner SyncRunner
	log    *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(store ForecastReader, cache ForecastCache, runner SyncRunner, log *slog.Logger) *Handlers {
	return &Handlers{
		store:  store,
		cache:  cache,
		runner: runner,
		log:    log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListForecast handles GET /api/v1/forecast: the cached forecast for today
// onward, ascending by date. Cache hit → return. Otherwise query the store
// and repopulate the cache. An empty store is a 200 with an empty list, not
// an error; a never-synced cache simply has nothing to show yet.
func (h *Handlers) ListForecast(w http.ResponseWriter, r *http.Request) {
	cached, err := h.cache.GetUpcoming(r.Context())
	if err != nil {
		h.log.Error("cache get failed", "err", err)
	}
	if cached != nil {
		writeJSON(w, http.StatusOK, map[string]any{"forecast": cached})
		return
	}

	days, err := h.store.QueryRange(r.Context(), forecast.Today(), time.Time{}, true)
	if err != nil {
		h.log.Error("forecast query failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if days == nil {
		days = []forecast.Day{}
	}

	if err := h.cache.SetUpcoming(r.Context(), days); err != nil {
		h.log.Warn("cache set failed after store read", "err", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"forecast": days})
}

// GetDay handles GET /api/v1/forecast/{date} with date as YYYY-MM-DD.
func (h *Handlers) GetDay(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	date, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date, want YYYY-MM-DD"})
		return
	}

	day, err := h.store.GetByDate(r.Context(), date)
	if err != nil {
		h.log.Error("forecast day query failed", "date", raw, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if day == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no forecast for that date"})
		return
	}

	writeJSON(w, http.StatusOK, day)
}

// TriggerSync handles POST /api/v1/sync. Concurrent requests coalesce onto
// the in-flight cycle.
func (h *Handlers) TriggerSync(w http.ResponseWriter, r *http.Request) {
	err := h.runner.SyncNow(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
	case errors.Is(err, syncer.ErrFetchFailed), errors.Is(err, syncer.ErrDecodeFailed):
		h.log.Error("manual sync failed upstream", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream forecast source unavailable"})
	default:
		h.log.Error("manual sync failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sync failed"})
	}
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis
// connectivity; 200 when both respond, 503 otherwise.
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}

type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}
