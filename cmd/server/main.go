// Package main is the entrypoint for the garment-swap API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clothai/clothai/internal/api"
	"github.com/clothai/clothai/internal/api/handler"
	mw "github.com/clothai/clothai/internal/api/middleware"
	"github.com/clothai/clothai/internal/api/response"
	"github.com/clothai/clothai/internal/cache"
	"github.com/clothai/clothai/internal/config"
	"github.com/clothai/clothai/internal/gateway"
	"github.com/clothai/clothai/internal/poller"
	"github.com/clothai/clothai/internal/service"
	"github.com/clothai/clothai/internal/store"
	"github.com/clothai/clothai/internal/uploader"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "flow_id", cfg.Provider.FlowID, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create outbound clients
	flowClient := gateway.NewHTTPClient(
		cfg.Provider.BaseURL,
		cfg.Provider.FlowID,
		cfg.Provider.APIKey,
		cfg.Provider.WebhookURL,
		cfg.Provider.Timeout,
	)
	imageHost := uploader.NewHTTPClient(
		cfg.Uploader.URL,
		cfg.Uploader.APIKey,
		cfg.Uploader.Timeout,
	)

	// 6. Create store and pipeline service
	pgStore := store.NewPostgresStore(pool)
	wait := poller.New(flowClient, cfg.Polling.MaxRetries, cfg.Polling.Interval)
	svc := service.New(flowClient, imageHost, pgStore, redisCache, wait)
	slog.Info("pipeline initialized", "poll_budget", wait.Budget().String())

	// 7. Build router with dependencies
	auth := mw.NewAuth(cfg.Auth.APIKey)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:      healthHandler(pgStore, redisCache),
		ChangeClothHandler: handler.NewChangeClothHandler(svc),
		StatusHandler:      handler.NewStatusHandler(svc),
		ExecutionsHandler:  handler.NewExecutionsHandler(svc),
		GetTryCountHandler: handler.NewGetTryCountHandler(pgStore),
		SetTryCountHandler: handler.NewSetTryCountHandler(pgStore),
		ListDevicesHandler: handler.NewListDevicesHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server. The write timeout must cover a synchronous
	// change-cloth request, which blocks for up to the polling budget.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: wait.Budget() + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
