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

	"github.com/rostilos/CodeCrow-sub011/internal/api"
	"github.com/rostilos/CodeCrow-sub011/internal/branchindex"
	"github.com/rostilos/CodeCrow-sub011/internal/config"
	"github.com/rostilos/CodeCrow-sub011/internal/jobs"
	"github.com/rostilos/CodeCrow-sub011/internal/store"
	"github.com/rostilos/CodeCrow-sub011/internal/store/postgres"
	vk "github.com/rostilos/CodeCrow-sub011/internal/store/valkey"
	"github.com/rostilos/CodeCrow-sub011/internal/vcs"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database pool
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if err := postgres.EnsureSchema(ctx, pool, cfg.Ollama.Dimensions); err != nil {
		logger.Error("failed to ensure schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	s := store.New(pool)
	registry := store.NewBranchRegistry(s)

	// Valkey backs the job queue; without it nothing can be enqueued.
	vkClient, err := vk.NewClient(cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	producer := jobs.NewProducer(vkClient)
	provider := vcs.NewLocalProvider(logger)
	engine := branchindex.NewDecisionEngine(registry)
	engine.SetStaleIndexingAfter(cfg.Worker.GuardTTL)
	policy := branchindex.NewPolicy(registry, registry, engine, provider, producer, logger)

	deps := &api.RouterDeps{
		Registry: registry,
		Settings: registry,
		Producer: producer,
		Policy:   policy,
	}

	router := api.NewRouter(logger, s, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting API server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}
