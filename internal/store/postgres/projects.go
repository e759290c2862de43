package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID                 uuid.UUID
	Slug               string
	Name               string
	RepoPath           string
	BaseBranch         string
	RAGEnabled         bool
	MultiBranchEnabled bool
	BranchPushPattern  string
	WebhookToken       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const projectColumns = `id, slug, name, repo_path, base_branch, rag_enabled,
       multi_branch_enabled, branch_push_pattern, webhook_token, created_at, updated_at`

func scanProject(row interface{ Scan(...interface{}) error }) (Project, error) {
	var p Project
	err := row.Scan(
		&p.ID, &p.Slug, &p.Name, &p.RepoPath, &p.BaseBranch, &p.RAGEnabled,
		&p.MultiBranchEnabled, &p.BranchPushPattern, &p.WebhookToken,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

type CreateProjectParams struct {
	Slug               string
	Name               string
	RepoPath           string
	BaseBranch         string
	RAGEnabled         bool
	MultiBranchEnabled bool
	BranchPushPattern  string
	WebhookToken       string
}

func (q *Queries) CreateProject(ctx context.Context, arg CreateProjectParams) (Project, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO projects (slug, name, repo_path, base_branch, rag_enabled,
		                      multi_branch_enabled, branch_push_pattern, webhook_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+projectColumns,
		arg.Slug, arg.Name, arg.RepoPath, arg.BaseBranch, arg.RAGEnabled,
		arg.MultiBranchEnabled, arg.BranchPushPattern, arg.WebhookToken,
	)
	return scanProject(row)
}

func (q *Queries) GetProject(ctx context.Context, id uuid.UUID) (Project, error) {
	row := q.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	return scanProject(row)
}

func (q *Queries) GetProjectBySlug(ctx context.Context, slug string) (Project, error) {
	row := q.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE slug = $1`, slug)
	return scanProject(row)
}

func (q *Queries) ListProjects(ctx context.Context, limit, offset int32) ([]Project, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ListProjectIDs returns the ids of every project with RAG enabled. The
// reconcile scheduler fans out over this set.
func (q *Queries) ListProjectIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `SELECT id FROM projects WHERE rag_enabled ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type UpdateProjectSettingsParams struct {
	ID                 uuid.UUID
	BaseBranch         string
	RAGEnabled         bool
	MultiBranchEnabled bool
	BranchPushPattern  string
}

func (q *Queries) UpdateProjectSettings(ctx context.Context, arg UpdateProjectSettingsParams) (Project, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE projects
		SET base_branch = $2,
		    rag_enabled = $3,
		    multi_branch_enabled = $4,
		    branch_push_pattern = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+projectColumns,
		arg.ID, arg.BaseBranch, arg.RAGEnabled, arg.MultiBranchEnabled, arg.BranchPushPattern,
	)
	return scanProject(row)
}
