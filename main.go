package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quicktask/quicktask-api/internal/analytics"
	"github.com/quicktask/quicktask-api/internal/auth"
	"github.com/quicktask/quicktask-api/internal/config"
	"github.com/quicktask/quicktask-api/internal/httpx"
	"github.com/quicktask/quicktask-api/internal/middleware"
	"github.com/quicktask/quicktask-api/internal/observability"
	"github.com/quicktask/quicktask-api/internal/storage"
	"github.com/quicktask/quicktask-api/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger) // for third-party packages that use slog

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flushTraces, err := observability.SetupTracing(ctx, cfg.OTelExporter)
	if err != nil {
		logger.Error("tracing_setup_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Error("db_open_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	taskRepo := tasks.NewSQLiteRepo(db)
	userRepo := auth.NewSQLiteRepo(db)
	if err := taskRepo.ApplyMigrations(ctx); err != nil {
		logger.Error("migrate_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := userRepo.ApplyMigrations(ctx); err != nil {
		logger.Error("migrate_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	analyticsClient := analytics.NewHTTPClient(cfg.AnalyticsURL, cfg.AnalyticsTimeout)
	authLimiter := middleware.NewClientLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)

	r := newRouter(cfg, logger, taskRepo, userRepo, tokens, analyticsClient, authLimiter)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listen", slog.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("server_shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown_error", slog.String("error", err.Error()))
		}
		if err := flushTraces(shutdownCtx); err != nil {
			logger.Error("trace_flush_error", slog.String("error", err.Error()))
		}
	}
}

// newRouter wires the middleware stack and all route groups. /health and
// /metrics are open; /auth carries the per-client limiter on its credential
// endpoints; /tasks and /analytics sit behind the bearer middleware.
func newRouter(
	cfg config.Config,
	logger *slog.Logger,
	taskRepo tasks.Repository,
	userRepo auth.Repository,
	tokens *auth.TokenManager,
	analyticsClient analytics.Client,
	authLimiter *middleware.ClientLimiter,
) *chi.Mux {
	r := chi.NewRouter()

	// RequestID first so downstream can include it (logger, spans, etc.)
	r.Use(chimw.RequestID)

	// Panic recovery: never crash the server; returns 500 on panics
	r.Use(chimw.Recoverer)

	// Timeouts: cancel handlers that exceed this duration
	r.Use(chimw.Timeout(15 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.TracingMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	auth.RegisterRoutes(r, userRepo, tokens, logger, middleware.RateLimit(authLimiter), middleware.Auth(tokens))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tokens))
		tasks.RegisterRoutes(r, taskRepo, logger)
		analytics.RegisterRoutes(r, analyticsClient, logger)
	})

	r.NotFound(httpx.NotFoundHandler())

	return r
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: l,
	})
	return slog.New(handler)
}
