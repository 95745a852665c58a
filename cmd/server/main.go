// Package main is the entrypoint for the PageTutor API server.
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

	"github.com/unitutor/pagetutor/internal/ai"
	"github.com/unitutor/pagetutor/internal/api"
	"github.com/unitutor/pagetutor/internal/api/handler"
	mw "github.com/unitutor/pagetutor/internal/api/middleware"
	"github.com/unitutor/pagetutor/internal/cache"
	"github.com/unitutor/pagetutor/internal/chat"
	"github.com/unitutor/pagetutor/internal/config"
	"github.com/unitutor/pagetutor/internal/docstore"
	"github.com/unitutor/pagetutor/internal/render"
	"github.com/unitutor/pagetutor/internal/scheduler"
	"github.com/unitutor/pagetutor/internal/store"
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
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

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

	// 5. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 6. Assemble the services
	pgStore := store.NewPostgresStore(pool)
	explanations := cache.NewExplanationCache(redisCache, pgStore, cfg.Processing.CacheTTL)
	documents := docstore.New(pgStore, cfg.Storage.UploadDir, cfg.Storage.MaxFileSizeMB)
	renderer := render.NewPDFRenderer()

	sched := scheduler.New(aiProvider, renderer, explanations, scheduler.Config{
		Workers:          cfg.Processing.Workers,
		RenderTimeout:    cfg.Processing.RenderTimeout,
		InferenceTimeout: cfg.AI.InferenceTimeout,
	})
	chatStreamer := chat.New(aiProvider, explanations, cfg.AI.InferenceTimeout)

	// 7. Build router with dependencies
	maxUploadBytes := int64(cfg.Storage.MaxFileSizeMB) * 1024 * 1024

	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, 60),

		HealthHandler:      handler.NewHealthHandler(pgStore, redisCache),
		UploadHandler:      handler.NewUploadHandler(documents, maxUploadBytes),
		GetDocumentHandler: handler.NewGetDocumentHandler(documents),
		ProcessHandler:     handler.NewProcessHandler(documents, sched),
		ProgressHandler:    handler.NewProgressHandler(documents, sched),
		ExplanationHandler: handler.NewExplanationHandler(explanations, sched),
		ChatHandler:        handler.NewChatHandler(chatStreamer),
		InvalidateHandler:  handler.NewInvalidateHandler(explanations),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server. WriteTimeout must leave room for a full chat
	// stream, which can run as long as the inference timeout.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.InferenceTimeout + 30*time.Second,
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
