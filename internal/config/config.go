// Package config reads process configuration from the environment once at
// startup. Everything downstream receives values through this struct; nothing
// reads os.Getenv after Load returns.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr             string
	DBPath           string
	JWTSecret        string
	TokenTTL         time.Duration
	AnalyticsURL     string
	AnalyticsTimeout time.Duration
	FrontendOrigin   string
	LogLevel         string

	// Rate limit applied to /auth/register and /auth/login, per client.
	AuthRateLimit  int
	AuthRateWindow time.Duration

	// "otlp", "stdout", or "" for no tracing export.
	OTelExporter string
}

var ErrMissingSecret = errors.New("JWT_SECRET must be set")

func Load() (Config, error) {
	cfg := Config{
		Addr:             envOr("ADDR", ":8080"),
		DBPath:           envOr("DB_PATH", "data/quicktask.db"),
		JWTSecret:        strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TokenTTL:         envDuration("TOKEN_TTL", 24*time.Hour),
		AnalyticsURL:     envOr("ANALYTICS_URL", "http://localhost:8001"),
		AnalyticsTimeout: envDuration("ANALYTICS_TIMEOUT", 30*time.Second),
		FrontendOrigin:   envOr("FRONTEND_ORIGIN", "http://localhost:5173"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		AuthRateLimit:    envInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow:   envDuration("AUTH_RATE_WINDOW", 15*time.Minute),
		OTelExporter:     envOr("OTEL_EXPORTER", ""),
	}
	if cfg.JWTSecret == "" {
		return Config{}, ErrMissingSecret
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
