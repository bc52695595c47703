package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/skycast/skycast/internal/forecast"
)

// AppConfig holds everything the process reads from the environment.
type AppConfig struct {
	DatabaseURL string
	RedisURL    string
	APIKey      string
	BearerToken string
	Port        string

	// Location is the forecast query, e.g. "94043,US" or a "lat,lon" pair.
	Location string
	Units    forecast.Units

	SyncInterval time.Duration
	ForecastDays int

	NotificationsEnabled bool
	// NotifyWebhookURL is optional; when empty, notifications go to the log.
	NotifyWebhookURL string
}

// Load reads configuration from the environment, honoring a .env file when
// present.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "err", err)
	}

	cfg := &AppConfig{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		APIKey:           os.Getenv("OPENWEATHER_API_KEY"),
		BearerToken:      os.Getenv("BEARER_TOKEN"),
		Port:             getenvDefault("PORT", "8080"),
		Location:         getenvDefault("LOCATION", "94043,US"),
		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
	}

	for _, req := range []struct{ key, val string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"REDIS_URL", cfg.RedisURL},
		{"OPENWEATHER_API_KEY", cfg.APIKey},
		{"BEARER_TOKEN", cfg.BearerToken},
	} {
		if req.val == "" {
			return nil, fmt.Errorf("required environment variable %s not set", req.key)
		}
	}

	units := forecast.Units(getenvDefault("UNITS", string(forecast.Metric)))
	if units != forecast.Metric && units != forecast.Imperial {
		return nil, fmt.Errorf("invalid UNITS %q: want %q or %q", units, forecast.Metric, forecast.Imperial)
	}
	cfg.Units = units

	interval, err := time.ParseDuration(getenvDefault("SYNC_INTERVAL", "3h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}
	cfg.SyncInterval = interval

	days, err := getenvInt("FORECAST_DAYS", 14)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, fmt.Errorf("FORECAST_DAYS must be positive, got %d", days)
	}
	cfg.ForecastDays = days

	enabled, err := getenvBool("NOTIFICATIONS_ENABLED", true)
	if err != nil {
		return nil, err
	}
	cfg.NotificationsEnabled = enabled

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
