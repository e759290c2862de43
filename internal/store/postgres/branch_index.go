package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BranchIndex struct {
	ProjectID     uuid.UUID
	BranchName    string
	BaseBranch    string
	IndexedCommit string
	ReadyState    string
	LastAttemptAt time.Time
	LastSuccessAt *time.Time
	LastError     string
	Version       int64
}

const branchIndexColumns = `project_id, branch_name, base_branch, indexed_commit,
       ready_state, last_attempt_at, last_success_at, last_error, version`

func scanBranchIndex(row interface{ Scan(...interface{}) error }) (BranchIndex, error) {
	var b BranchIndex
	err := row.Scan(
		&b.ProjectID, &b.BranchName, &b.BaseBranch, &b.IndexedCommit,
		&b.ReadyState, &b.LastAttemptAt, &b.LastSuccessAt, &b.LastError, &b.Version,
	)
	return b, err
}

func (q *Queries) GetBranchIndex(ctx context.Context, projectID uuid.UUID, branchName string) (BranchIndex, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+branchIndexColumns+`
		FROM branch_indexes
		WHERE project_id = $1 AND branch_name = $2`,
		projectID, branchName,
	)
	return scanBranchIndex(row)
}

type InsertBranchIndexParams struct {
	ProjectID     uuid.UUID
	BranchName    string
	BaseBranch    string
	IndexedCommit string
	ReadyState    string
	LastAttemptAt time.Time
	LastSuccessAt *time.Time
	LastError     string
}

// InsertBranchIndex creates a fresh record at version 1. A unique violation
// surfaces as a pgconn error with code 23505 when the record already exists.
func (q *Queries) InsertBranchIndex(ctx context.Context, arg InsertBranchIndexParams) (BranchIndex, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO branch_indexes (project_id, branch_name, base_branch, indexed_commit,
		                            ready_state, last_attempt_at, last_success_at, last_error, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
		RETURNING `+branchIndexColumns,
		arg.ProjectID, arg.BranchName, arg.BaseBranch, arg.IndexedCommit,
		arg.ReadyState, arg.LastAttemptAt, arg.LastSuccessAt, arg.LastError,
	)
	return scanBranchIndex(row)
}

type UpdateBranchIndexParams struct {
	ProjectID     uuid.UUID
	BranchName    string
	BaseBranch    string
	IndexedCommit string
	ReadyState    string
	LastAttemptAt time.Time
	LastSuccessAt *time.Time
	LastError     string
	Version       int64
}

// UpdateBranchIndex replaces a record only when the caller still holds the
// current version. No rows returned means the version moved underneath the
// caller (pgx.ErrNoRows).
func (q *Queries) UpdateBranchIndex(ctx context.Context, arg UpdateBranchIndexParams) (BranchIndex, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE branch_indexes
		SET base_branch = $3,
		    indexed_commit = $4,
		    ready_state = $5,
		    last_attempt_at = $6,
		    last_success_at = $7,
		    last_error = $8,
		    version = version + 1
		WHERE project_id = $1 AND branch_name = $2 AND version = $9
		RETURNING `+branchIndexColumns,
		arg.ProjectID, arg.BranchName, arg.BaseBranch, arg.IndexedCommit,
		arg.ReadyState, arg.LastAttemptAt, arg.LastSuccessAt, arg.LastError, arg.Version,
	)
	return scanBranchIndex(row)
}

func (q *Queries) ListBranchIndexes(ctx context.Context, projectID uuid.UUID) ([]BranchIndex, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+branchIndexColumns+`
		FROM branch_indexes
		WHERE project_id = $1
		ORDER BY branch_name`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []BranchIndex
	for rows.Next() {
		b, err := scanBranchIndex(rows)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, b)
	}
	return indexes, rows.Err()
}

func (q *Queries) ListBranchNames(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	rows, err := q.db.Query(ctx, `
		SELECT branch_name FROM branch_indexes
		WHERE project_id = $1
		ORDER BY branch_name`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (q *Queries) DeleteBranchIndex(ctx context.Context, projectID uuid.UUID, branchName string) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM branch_indexes
		WHERE project_id = $1 AND branch_name = $2`,
		projectID, branchName,
	)
	return err
}
