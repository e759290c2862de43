package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rostilos/CodeCrow-sub011/internal/branchindex"
	"github.com/rostilos/CodeCrow-sub011/internal/store/postgres"
)

const uniqueViolation = "23505"

// BranchRegistry backs the branch-index registry with postgres. Version-gated
// updates give compare-and-swap semantics: a writer holding a stale version
// gets ErrConcurrentModification instead of clobbering a newer record.
type BranchRegistry struct {
	store *Store
}

func NewBranchRegistry(s *Store) *BranchRegistry {
	return &BranchRegistry{store: s}
}

var _ branchindex.Registry = (*BranchRegistry)(nil)
var _ branchindex.SettingsSource = (*BranchRegistry)(nil)

func (r *BranchRegistry) Get(ctx context.Context, projectID uuid.UUID, branchName string) (branchindex.Record, error) {
	row, err := r.store.GetBranchIndex(ctx, projectID, branchName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return branchindex.Record{}, branchindex.ErrNotFound
		}
		return branchindex.Record{}, fmt.Errorf("get branch index: %w", err)
	}
	return toRecord(row), nil
}

func (r *BranchRegistry) Upsert(ctx context.Context, rec branchindex.Record) (branchindex.Record, error) {
	if rec.Version == 0 {
		row, err := r.store.InsertBranchIndex(ctx, postgres.InsertBranchIndexParams{
			ProjectID:     rec.ProjectID,
			BranchName:    rec.BranchName,
			BaseBranch:    rec.BaseBranch,
			IndexedCommit: rec.IndexedCommit,
			ReadyState:    string(rec.ReadyState),
			LastAttemptAt: rec.LastAttemptAt,
			LastSuccessAt: toNullableTime(rec.LastSuccessAt),
			LastError:     rec.LastError,
		})
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return branchindex.Record{}, branchindex.ErrConcurrentModification
			}
			return branchindex.Record{}, fmt.Errorf("insert branch index: %w", err)
		}
		return toRecord(row), nil
	}

	row, err := r.store.UpdateBranchIndex(ctx, postgres.UpdateBranchIndexParams{
		ProjectID:     rec.ProjectID,
		BranchName:    rec.BranchName,
		BaseBranch:    rec.BaseBranch,
		IndexedCommit: rec.IndexedCommit,
		ReadyState:    string(rec.ReadyState),
		LastAttemptAt: rec.LastAttemptAt,
		LastSuccessAt: toNullableTime(rec.LastSuccessAt),
		LastError:     rec.LastError,
		Version:       rec.Version,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return branchindex.Record{}, branchindex.ErrConcurrentModification
		}
		return branchindex.Record{}, fmt.Errorf("update branch index: %w", err)
	}
	return toRecord(row), nil
}

func (r *BranchRegistry) ListBranches(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	names, err := r.store.ListBranchNames(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list branch names: %w", err)
	}
	return names, nil
}

func (r *BranchRegistry) Delete(ctx context.Context, projectID uuid.UUID, branchName string) error {
	if err := r.store.DeleteBranchIndex(ctx, projectID, branchName); err != nil {
		return fmt.Errorf("delete branch index: %w", err)
	}
	return nil
}

// ProjectSettings reads the project row's indexing knobs.
func (r *BranchRegistry) ProjectSettings(ctx context.Context, projectID uuid.UUID) (branchindex.ProjectSettings, error) {
	p, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return branchindex.ProjectSettings{}, fmt.Errorf("project %s: %w", projectID, branchindex.ErrNotFound)
		}
		return branchindex.ProjectSettings{}, fmt.Errorf("get project: %w", err)
	}
	return branchindex.ProjectSettings{
		ProjectID:          p.ID,
		RepoPath:           p.RepoPath,
		BaseBranch:         p.BaseBranch,
		RAGEnabled:         p.RAGEnabled,
		MultiBranchEnabled: p.MultiBranchEnabled,
		BranchPushPattern:  p.BranchPushPattern,
		WebhookToken:       p.WebhookToken,
	}, nil
}

func toRecord(row postgres.BranchIndex) branchindex.Record {
	rec := branchindex.Record{
		ProjectID:     row.ProjectID,
		BranchName:    row.BranchName,
		BaseBranch:    row.BaseBranch,
		IndexedCommit: row.IndexedCommit,
		ReadyState:    branchindex.ReadyState(row.ReadyState),
		LastAttemptAt: row.LastAttemptAt,
		LastError:     row.LastError,
		Version:       row.Version,
	}
	if row.LastSuccessAt != nil {
		rec.LastSuccessAt = *row.LastSuccessAt
	}
	return rec
}

func toNullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
