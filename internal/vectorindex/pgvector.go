package vectorindex

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// PgvectorStore implements Store on a shared postgres table with a pgvector
// embedding column. Rows are disambiguated by (project_id, branch), mirroring
// the payload tagging of the Qdrant store.
type PgvectorStore struct {
	pool     *pgxpool.Pool
	contents ContentSource
	embedder Embedder
	chunker  *Chunker
	logger   *slog.Logger
}

func NewPgvectorStore(pool *pgxpool.Pool, contents ContentSource, embedder Embedder, chunker *Chunker, logger *slog.Logger) *PgvectorStore {
	return &PgvectorStore{pool: pool, contents: contents, embedder: embedder, chunker: chunker, logger: logger}
}

func (s *PgvectorStore) UpsertChunks(ctx context.Context, req UpsertRequest) (int, error) {
	var chunks []Chunk
	for _, path := range req.Files {
		content, err := s.contents.GetFileContent(ctx, req.Repo, req.Commit, path)
		if err != nil {
			return 0, fmt.Errorf("read %s at %s: %w", path, req.Commit, err)
		}
		chunks = append(chunks, s.chunker.Split(path, content)...)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	// Single pipelined batch instead of one round-trip per chunk.
	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(
			`INSERT INTO branch_chunks (id, project_id, branch, commit_sha, path, ordinal, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE
			 SET commit_sha = EXCLUDED.commit_sha, content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			pointID(req.ProjectID, req.Branch, c.Path, c.Ordinal),
			req.ProjectID, req.Branch, req.Commit, c.Path, c.Ordinal, c.Text,
			pgvector.NewVector(embeddings[i]),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range chunks {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("upsert chunk batch: %w", err)
		}
	}
	return len(chunks), nil
}

func (s *PgvectorStore) DeleteFiles(ctx context.Context, projectID uuid.UUID, branch string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM branch_chunks WHERE project_id = $1 AND branch = $2 AND path = ANY($3::text[])`,
		projectID, branch, paths)
	if err != nil {
		return fmt.Errorf("delete chunk files: %w", err)
	}
	return nil
}

func (s *PgvectorStore) DeleteBranch(ctx context.Context, projectID uuid.UUID, branch string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM branch_chunks WHERE project_id = $1 AND branch = $2`,
		projectID, branch)
	if err != nil {
		return fmt.Errorf("delete branch chunks: %w", err)
	}
	return nil
}

func (s *PgvectorStore) BranchExists(ctx context.Context, projectID uuid.UUID, branch string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM branch_chunks WHERE project_id = $1 AND branch = $2)`,
		projectID, branch).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check branch chunks: %w", err)
	}
	return exists, nil
}
