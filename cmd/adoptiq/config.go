package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/neomorfeo/adoptiq/internal/app"
)

// config holds process settings read from the environment.
type config struct {
	Port         string
	DatabasePath string
	StoreDriver  string // "sqlite" or "memory"
	StoreTimeout time.Duration
	LogLevel     slog.Level
	Retry        app.RetryPolicy
}

func loadConfig() (config, error) {
	cfg := config{
		Port:         envOrDefault("PORT", "8080"),
		DatabasePath: envOrDefault("DATABASE_PATH", "adoptiq.db"),
		StoreDriver:  envOrDefault("STORE_DRIVER", "sqlite"),
		Retry:        app.DefaultRetryPolicy(),
	}

	if cfg.StoreDriver != "sqlite" && cfg.StoreDriver != "memory" {
		return config{}, fmt.Errorf("STORE_DRIVER: unsupported driver %q (use \"sqlite\" or \"memory\")", cfg.StoreDriver)
	}

	var err error
	if cfg.StoreTimeout, err = durationEnv("STORE_TIMEOUT", 5*time.Second); err != nil {
		return config{}, err
	}
	if cfg.Retry.InitialInterval, err = durationEnv("APPROVE_BACKOFF", cfg.Retry.InitialInterval); err != nil {
		return config{}, err
	}
	if cfg.Retry.MaxAttempts, err = intEnv("APPROVE_MAX_ATTEMPTS", cfg.Retry.MaxAttempts); err != nil {
		return config{}, err
	}
	if cfg.Retry.MaxAttempts < 1 {
		return config{}, fmt.Errorf("APPROVE_MAX_ATTEMPTS: must be at least 1, got %d", cfg.Retry.MaxAttempts)
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(envOrDefault("LOG_LEVEL", "info"))); err != nil {
		return config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
