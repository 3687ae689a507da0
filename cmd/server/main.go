// Package main is the entrypoint for the outreach API server.
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

	"github.com/joho/godotenv"
	"github.com/rvenkatesh9/outreach/internal/api"
	"github.com/rvenkatesh9/outreach/internal/api/handler"
	mw "github.com/rvenkatesh9/outreach/internal/api/middleware"
	"github.com/rvenkatesh9/outreach/internal/cache"
	"github.com/rvenkatesh9/outreach/internal/config"
	"github.com/rvenkatesh9/outreach/internal/llm"
	"github.com/rvenkatesh9/outreach/internal/pipeline"
	"github.com/rvenkatesh9/outreach/internal/scholar"
	"github.com/rvenkatesh9/outreach/internal/store"
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
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "llm_provider", cfg.LLM.Provider, "env", cfg.Server.Env)

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

	// 5. Create store and external clients
	pgStore := store.NewPostgresStore(pool)

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	slog.Info("llm client initialized", "provider", llmClient.Name())

	scholarClient := scholar.NewHTTPClient(cfg.Scholar.BaseURL, cfg.Scholar.Timeout)

	// 6. Wire the pipeline: stages, dispatcher, executor. The dispatcher's
	// worker calls back into the executor, so it starts after both exist.
	dispatcher := pipeline.NewQueueDispatcher(cfg.Pipeline.QueueSize)
	executor := pipeline.NewExecutor(pgStore, redisCache, dispatcher, cfg.Pipeline.StageTimeout,
		pipeline.NewProspectStage(pgStore, llmClient),
		pipeline.NewPublicationStage(pgStore, scholarClient, redisCache),
		pipeline.NewCVStage(pgStore, llmClient),
		pipeline.NewEmailStage(pgStore, llmClient),
	)
	dispatcher.Start(executor.Execute)

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:        handler.NewHealthHandler(pgStore, redisCache),
		CreateProfileHandler: handler.NewCreateProfileHandler(pgStore),
		DeployHandler:        handler.NewDeployHandler(pgStore, dispatcher),
		GetJobHandler:        handler.NewGetJobHandler(pgStore),
		ListJobsHandler:      handler.NewListJobsHandler(pgStore),
		StageHandler:         handler.NewStageHandler(executor),
		CreateKeyHandler:     handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:      handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:     handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
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

	// Graceful shutdown with timeout. Stop accepting requests first, then
	// let the dispatcher drain in-flight stage work.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dispatcher shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
