// Package cache keeps the upcoming-forecast read path off the database.
// The cached slice is invalidated whenever the store reports a change, so a
// freshly synced forecast is visible on the next read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skycast/skycast/internal/forecast"
)

const (
	defaultTTL  = time.Hour
	upcomingKey = "forecast:upcoming"
)

// Connect dials Redis at redisURL and fails unless a ping round-trips.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// Cache wraps a Redis client and provides typed access to the cached
// upcoming forecast.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache with a 1-hour TTL.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client, ttl: defaultTTL}
}

// GetUpcoming retrieves the cached upcoming forecast.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) GetUpcoming(ctx context.Context) ([]forecast.Day, error) {
	val, err := c.client.Get(ctx, upcomingKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get upcoming forecast: %w", err)
	}

	var days []forecast.Day
	if err := json.Unmarshal([]byte(val), &days); err != nil {
		return nil, fmt.Errorf("unmarshaling cached forecast: %w", err)
	}
	return days, nil
}

// SetUpcoming stores the upcoming forecast with the configured TTL.
func (c *Cache) SetUpcoming(ctx context.Context, days []forecast.Day) error {
	if days == nil {
		return nil
	}

	b, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("marshaling forecast for cache: %w", err)
	}

	if err := c.client.Set(ctx, upcomingKey, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set upcoming forecast: %w", err)
	}
	return nil
}

// Invalidate drops the cached upcoming forecast.
func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, upcomingKey).Err(); err != nil {
		return fmt.Errorf("cache invalidate upcoming forecast: %w", err)
	}
	return nil
}
