package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL is applied idempotently at startup. The embedding column dimension
// is injected from config so the schema follows the configured embedder.
const schemaDDL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS projects (
    id                   UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    slug                 TEXT NOT NULL UNIQUE,
    name                 TEXT NOT NULL,
    repo_path            TEXT NOT NULL,
    base_branch          TEXT NOT NULL DEFAULT 'main',
    rag_enabled          BOOLEAN NOT NULL DEFAULT TRUE,
    multi_branch_enabled BOOLEAN NOT NULL DEFAULT FALSE,
    branch_push_pattern  TEXT NOT NULL DEFAULT '',
    webhook_token        TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS branch_indexes (
    project_id      UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    branch_name     TEXT NOT NULL,
    base_branch     TEXT NOT NULL DEFAULT '',
    indexed_commit  TEXT NOT NULL DEFAULT '',
    ready_state     TEXT NOT NULL,
    last_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_success_at TIMESTAMPTZ,
    last_error      TEXT NOT NULL DEFAULT '',
    version         BIGINT NOT NULL DEFAULT 1,
    PRIMARY KEY (project_id, branch_name)
);

CREATE INDEX IF NOT EXISTS idx_branch_indexes_state
    ON branch_indexes (project_id, ready_state);

CREATE TABLE IF NOT EXISTS branch_chunks (
    id         UUID PRIMARY KEY,
    project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    branch     TEXT NOT NULL,
    commit_sha TEXT NOT NULL,
    path       TEXT NOT NULL,
    ordinal    INT NOT NULL,
    content    TEXT NOT NULL,
    embedding  vector(%d)
);

CREATE INDEX IF NOT EXISTS idx_branch_chunks_branch
    ON branch_chunks (project_id, branch);

CREATE INDEX IF NOT EXISTS idx_branch_chunks_path
    ON branch_chunks (project_id, branch, path);
`

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, embeddingDims int) error {
	if embeddingDims <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", embeddingDims)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(schemaDDL, embeddingDims)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
