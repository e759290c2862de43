package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rostilos/CodeCrow-sub011/internal/config"
	"github.com/rostilos/CodeCrow-sub011/internal/jobs"
	"github.com/rostilos/CodeCrow-sub011/internal/store"
	"github.com/rostilos/CodeCrow-sub011/internal/store/postgres"
	vk "github.com/rostilos/CodeCrow-sub011/internal/store/valkey"
)

// The reconciler process periodically enqueues one reconcile job per
// RAG-enabled project. The actual stale-branch sweep runs in the workers.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	s := store.New(pool)

	vkClient, err := vk.NewClient(cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	producer := jobs.NewProducer(vkClient)

	logger.Info("starting reconciler", slog.Duration("interval", cfg.Reconcile.Interval))

	ticker := time.NewTicker(cfg.Reconcile.Interval)
	defer ticker.Stop()

	enqueueAll(ctx, logger, s, producer)

	for {
		select {
		case <-ctx.Done():
			logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			enqueueAll(ctx, logger, s, producer)
		}
	}
}

func enqueueAll(ctx context.Context, logger *slog.Logger, s *store.Store, producer *jobs.Producer) {
	ids, err := s.ListProjectIDs(ctx)
	if err != nil {
		logger.Error("list projects", slog.String("error", err.Error()))
		return
	}

	for _, id := range ids {
		if _, err := producer.EnqueueReconcile(ctx, jobs.ReconcileJob{ProjectID: id}); err != nil {
			logger.Error("enqueue reconcile",
				slog.String("project_id", id.String()),
				slog.String("error", err.Error()))
			continue
		}
	}
	logger.Info("reconcile sweep enqueued", slog.Int("projects", len(ids)))
}
