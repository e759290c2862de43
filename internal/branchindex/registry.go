package branchindex

import (
	"context"

	"github.com/google/uuid"
)

// Registry is the durable record of indexing state per (project, branch).
// It is the only shared mutable state the core owns; every write goes through
// the compare-and-set Upsert, which is the correctness backstop against lost
// updates even if the concurrency guard misbehaves.
type Registry interface {
	// Get returns the record for the key, or ErrNotFound.
	Get(ctx context.Context, projectID uuid.UUID, branchName string) (Record, error)

	// Upsert inserts or replaces the record keyed by (ProjectID, BranchName).
	// rec.Version must be the version previously observed (zero for a new
	// record); a mismatch fails with ErrConcurrentModification. On success the
	// stored record with its advanced version is returned.
	Upsert(ctx context.Context, rec Record) (Record, error)

	// ListBranches returns every branch with any record for the project,
	// regardless of state.
	ListBranches(ctx context.Context, projectID uuid.UUID) ([]string, error)

	// Delete removes the record. Idempotent: deleting an absent key succeeds.
	Delete(ctx context.Context, projectID uuid.UUID, branchName string) error
}

// SettingsSource resolves per-project indexing configuration.
type SettingsSource interface {
	ProjectSettings(ctx context.Context, projectID uuid.UUID) (ProjectSettings, error)
}
