package branchindex

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRegistry is an in-process Registry with the same compare-and-set
// semantics as the postgres-backed one. Used by tests and by minimal
// single-process deployments that carry no database.
type MemoryRegistry struct {
	mu      sync.Mutex
	records map[memKey]Record
}

type memKey struct {
	projectID uuid.UUID
	branch    string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: make(map[memKey]Record)}
}

func (r *MemoryRegistry) Get(_ context.Context, projectID uuid.UUID, branchName string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[memKey{projectID, branchName}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRegistry) Upsert(_ context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memKey{rec.ProjectID, rec.BranchName}
	current, exists := r.records[key]

	if rec.Version == 0 {
		if exists {
			return Record{}, ErrConcurrentModification
		}
	} else if !exists || current.Version != rec.Version {
		return Record{}, ErrConcurrentModification
	}

	rec.Version++
	r.records[key] = rec
	return rec, nil
}

func (r *MemoryRegistry) ListBranches(_ context.Context, projectID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var branches []string
	for key := range r.records {
		if key.projectID == projectID {
			branches = append(branches, key.branch)
		}
	}
	sort.Strings(branches)
	return branches, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, projectID uuid.UUID, branchName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, memKey{projectID, branchName})
	return nil
}
