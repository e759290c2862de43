package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rostilos/CodeCrow-sub011/internal/branchindex"
	"github.com/rostilos/CodeCrow-sub011/internal/config"
	"github.com/rostilos/CodeCrow-sub011/internal/jobs"
	"github.com/rostilos/CodeCrow-sub011/internal/store"
	"github.com/rostilos/CodeCrow-sub011/internal/store/postgres"
	vk "github.com/rostilos/CodeCrow-sub011/internal/store/valkey"
	"github.com/rostilos/CodeCrow-sub011/internal/vcs"
	"github.com/rostilos/CodeCrow-sub011/internal/vectorindex"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
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

	// Valkey
	vkClient, err := vk.NewClient(cfg.Valkey)
	if err != nil {
		logger.Error("failed to connect to valkey", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer vkClient.Close()
	logger.Info("connected to valkey")

	provider := vcs.NewLocalProvider(logger)
	guard := branchindex.NewValkeyGuard(vkClient, cfg.Worker.GuardTTL, logger)

	// Vector backend
	var vstore vectorindex.Store
	switch cfg.Indexing.VectorBackend {
	case "qdrant":
		embedder := vectorindex.NewOllamaEmbedder(vectorindex.OllamaConfig{
			Host:       cfg.Ollama.Host,
			Model:      cfg.Ollama.Model,
			Dimensions: cfg.Ollama.Dimensions,
		})
		chunker := vectorindex.NewChunker(cfg.Indexing.ChunkLines, cfg.Indexing.ChunkOverlap)
		qs, err := vectorindex.NewQdrantStore(ctx, vectorindex.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			Collection: cfg.Qdrant.Collection,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
		}, provider, embedder, chunker, logger)
		if err != nil {
			logger.Error("failed to connect to qdrant", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer qs.Close()
		vstore = qs
		logger.Info("vector backend: qdrant", slog.String("collection", cfg.Qdrant.Collection))
	case "pgvector":
		embedder := vectorindex.NewOllamaEmbedder(vectorindex.OllamaConfig{
			Host:       cfg.Ollama.Host,
			Model:      cfg.Ollama.Model,
			Dimensions: cfg.Ollama.Dimensions,
		})
		chunker := vectorindex.NewChunker(cfg.Indexing.ChunkLines, cfg.Indexing.ChunkOverlap)
		vstore = vectorindex.NewPgvectorStore(pool, provider, embedder, chunker, logger)
		logger.Info("vector backend: pgvector")
	case "none":
		// Index jobs will fail with a configuration error until a backend
		// is configured; reconcile-driven deletes still need a store.
		logger.Warn("no vector backend configured")
	default:
		logger.Error("unknown vector backend", slog.String("backend", cfg.Indexing.VectorBackend))
		os.Exit(1)
	}

	engine := branchindex.NewDecisionEngine(registry)
	engine.SetStaleIndexingAfter(cfg.Worker.GuardTTL)
	executor := branchindex.NewExecutor(registry, registry, provider, vstore, guard, logger)
	executor.SetBatchSize(cfg.Indexing.BatchSize)
	service := branchindex.NewService(engine, executor, registry, provider, logger)
	reconciler := branchindex.NewReconciler(registry, registry, executor, provider, logger)
	sink := branchindex.LogSink(logger)

	handleIndexJob := func(ctx context.Context, data []byte) error {
		var job jobs.IndexJob
		if err := json.Unmarshal(data, &job); err != nil {
			logger.Error("unmarshal index job", slog.String("error", err.Error()))
			return nil // malformed payloads are not retryable
		}

		var err error
		if job.Action == "delete" {
			_, _, err = service.DeleteBranch(ctx, job.ProjectID, job.BranchName, sink)
		} else {
			_, _, err = service.SyncBranch(ctx, job.ProjectID, job.BranchName, sink)
		}
		if errors.Is(err, branchindex.ErrBusy) {
			logger.Info("branch busy, leaving job pending",
				slog.String("project_id", job.ProjectID.String()),
				slog.String("branch", job.BranchName))
		}
		return err
	}

	handleReconcileJob := func(ctx context.Context, data []byte) error {
		var job jobs.ReconcileJob
		if err := json.Unmarshal(data, &job); err != nil {
			logger.Error("unmarshal reconcile job", slog.String("error", err.Error()))
			return nil
		}

		result, err := reconciler.Reconcile(ctx, job.ProjectID)
		if err != nil {
			return err
		}
		logger.Info("reconcile complete",
			slog.String("project_id", job.ProjectID.String()),
			slog.Int("deleted", len(result.DeletedBranches)),
			slog.Int("failed", len(result.FailedBranches)))
		return nil
	}

	var wg sync.WaitGroup

	for i := 0; i < cfg.Worker.IndexConcurrency; i++ {
		consumer := jobs.NewIndexConsumer(vkClient, fmt.Sprintf("index-worker-%d", i), logger)
		if err := consumer.EnsureGroup(ctx); err != nil {
			logger.Error("failed to ensure index consumer group", slog.String("error", err.Error()))
			os.Exit(1)
		}
		wg.Add(1)
		go func(c *jobs.Consumer, id int) {
			defer wg.Done()
			logger.Info("starting index worker",
				slog.Int("worker", id),
				slog.String("stream", jobs.IndexStream))
			if err := c.Consume(ctx, handleIndexJob); err != nil {
				if ctx.Err() == nil {
					logger.Error("index consumer error", slog.String("error", err.Error()))
				}
			}
		}(consumer, i)
	}

	for i := 0; i < cfg.Worker.ReconcileConcurrency; i++ {
		consumer := jobs.NewReconcileConsumer(vkClient, fmt.Sprintf("reconcile-worker-%d", i), logger)
		if err := consumer.EnsureGroup(ctx); err != nil {
			logger.Error("failed to ensure reconcile consumer group", slog.String("error", err.Error()))
			os.Exit(1)
		}
		wg.Add(1)
		go func(c *jobs.Consumer, id int) {
			defer wg.Done()
			logger.Info("starting reconcile worker",
				slog.Int("worker", id),
				slog.String("stream", jobs.ReconcileStream))
			if err := c.Consume(ctx, handleReconcileJob); err != nil {
				if ctx.Err() == nil {
					logger.Error("reconcile consumer error", slog.String("error", err.Error()))
				}
			}
		}(consumer, i)
	}

	wg.Wait()
	logger.Info("worker stopped")
}
