// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the journey monitoring server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// RedisAddr is the address of the Redis instance backing the
	// notification queue. Optional: when empty, safety events are written
	// to the log instead of a queue.
	RedisAddr string

	// NotifyWebhookURL is where the sender worker POSTs safety events.
	// Required when RedisAddr is set.
	NotifyWebhookURL string

	// NotifyQueueKey is the Redis list key events are queued under.
	// Defaults to "journeys:events".
	NotifyQueueKey string

	// ScanInterval is the overdue scanner cadence. Defaults to 60s.
	ScanInterval time.Duration

	// ScanJourneyTimeout bounds the store work for one journey during a
	// scan. Defaults to 5s.
	ScanJourneyTimeout time.Duration

	// MaxBodyBytes caps incoming request body sizes. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set.
func Load() (Config, error) {
	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyQueueKey:   getEnv("NOTIFY_QUEUE_KEY", "journeys:events"),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if cfg.RedisAddr != "" && cfg.NotifyWebhookURL == "" {
		missing = append(missing, "NOTIFY_WEBHOOK_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.ScanInterval, err = getSeconds("SCAN_INTERVAL_SECONDS", 60); err != nil {
		return Config{}, err
	}
	if cfg.ScanJourneyTimeout, err = getSeconds("SCAN_JOURNEY_TIMEOUT_SECONDS", 5); err != nil {
		return Config{}, err
	}

	cfg.MaxBodyBytes = 1 << 20
	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("MAX_BODY_BYTES must be a positive integer, got %q", v)
		}
		cfg.MaxBodyBytes = n
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getSeconds parses an integer-seconds environment variable into a duration.
func getSeconds(key string, fallback int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallback) * time.Second, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer of seconds, got %q", key, v)
	}
	return time.Duration(n) * time.Second, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
