package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skycast/skycast/internal/api"
	"github.com/skycast/skycast/internal/cache"
	"github.com/skycast/skycast/internal/config"
	"github.com/skycast/skycast/internal/notify"
	"github.com/skycast/skycast/internal/owm"
	"github.com/skycast/skycast/internal/prefs"
	"github.com/skycast/skycast/internal/sched"
	"github.com/skycast/skycast/internal/storage"
	"github.com/skycast/skycast/internal/store"
	"github.com/skycast/skycast/internal/syncer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()

	// Connect to PostgreSQL.
	pool, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Run migrations.
	if err := storage.RunMigrations(ctx, pool, os.DirFS("migrations")); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied")

	// Connect to Redis.
	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	// Wire dependencies.
	repo := storage.NewRepository(pool)
	forecastStore := store.New(repo, log)
	cacheLayer := cache.NewCache(redisClient)
	preferences := prefs.New(redisClient, cfg.Location, cfg.Units, cfg.NotificationsEnabled)
	source := owm.NewClient(cfg.APIKey)

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL)
	}

	sync := syncer.New(source, forecastStore, preferences, notifier, cfg.ForecastDays, log)

	// Any store change drops the cached read view so the next request
	// observes fresh rows.
	cancelSub := forecastStore.Subscribe(func() {
		invCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cacheLayer.Invalidate(invCtx); err != nil {
			log.Warn("cache invalidation failed", "err", err)
		}
	})
	defer cancelSub()

	// Periodic sync plus an immediate one when the cache is empty.
	scheduler := sched.New(sync, forecastStore, cfg.SyncInterval, log)
	if err := scheduler.EnsureInitialized(ctx); err != nil {
		return fmt.Errorf("initializing scheduler: %w", err)
	}
	defer scheduler.Stop()

	handlers := api.NewHandlers(forecastStore, cacheLayer, sync, log)

	dbPinger := &pgxPoolPinger{pool: pool}
	redisPinger := &redisPingerAdapter{client: redisClient}

	router := api.NewRouter(handlers, cfg.BearerToken, dbPinger, redisPinger, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

// pgxPoolPinger adapts pgxpool.Pool to the api health-check interface.
type pgxPoolPinger struct {
	pool interface {
		Ping(ctx context.Context) error
	}
}

func (p *pgxPoolPinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// redisPingerAdapter adapts redis.Client to the api health-check interface.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
