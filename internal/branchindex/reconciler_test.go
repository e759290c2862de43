package branchindex

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newTestReconciler(reg Registry, store *fakeStore, provider *fakeProvider) *Reconciler {
	settings := testSettings()
	exec := NewExecutor(reg, settings, provider, store, NewKeyedGuard(), testLogger())
	return NewReconciler(reg, settings, exec, provider, testLogger())
}

func seedBranches(t *testing.T, reg Registry, projectID uuid.UUID, branches ...string) {
	t.Helper()
	for _, b := range branches {
		seedRecord(t, reg, Record{
			ProjectID:     projectID,
			BranchName:    b,
			IndexedCommit: "c1",
			ReadyState:    StateReady,
		})
	}
}

func TestCleanupStaleBranchesDeletesExactlyTheStale(t *testing.T) {
	reg := NewMemoryRegistry()
	store := newFakeStore()
	rec := newTestReconciler(reg, store, &fakeProvider{})

	projectID := uuid.New()
	seedBranches(t, reg, projectID, "feature/a", "feature/b", "feature/c")

	result, err := rec.CleanupStaleBranches(context.Background(), projectID, []string{"feature/a", "feature/c"})
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if len(result.DeletedBranches) != 1 || result.DeletedBranches[0] != "feature/b" {
		t.Errorf("deleted = %v, want [feature/b]", result.DeletedBranches)
	}
	if len(result.FailedBranches) != 0 {
		t.Errorf("failed = %v, want none", result.FailedBranches)
	}

	if _, err := reg.Get(context.Background(), projectID, "feature/b"); !errors.Is(err, ErrNotFound) {
		t.Error("feature/b record survived cleanup")
	}
	for _, keep := range []string{"feature/a", "feature/c"} {
		if _, err := reg.Get(context.Background(), projectID, keep); err != nil {
			t.Errorf("%s should survive cleanup: %v", keep, err)
		}
	}
}

func TestCleanupNeverDeletesBaseBranch(t *testing.T) {
	reg := NewMemoryRegistry()
	store := newFakeStore()
	rec := newTestReconciler(reg, store, &fakeProvider{})

	projectID := uuid.New()
	seedBranches(t, reg, projectID, "main", "feature/a")

	// Even an empty active list must not take down the base index.
	result, err := rec.CleanupStaleBranches(context.Background(), projectID, nil)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if len(result.DeletedBranches) != 1 || result.DeletedBranches[0] != "feature/a" {
		t.Errorf("deleted = %v, want [feature/a]", result.DeletedBranches)
	}
	if _, err := reg.Get(context.Background(), projectID, "main"); err != nil {
		t.Errorf("base branch record deleted: %v", err)
	}
}

func TestCleanupFailureDoesNotAbortOthers(t *testing.T) {
	reg := NewMemoryRegistry()
	store := newFakeStore()
	store.deleteBranchErr["feature/a"] = errors.New("store down")
	rec := newTestReconciler(reg, store, &fakeProvider{})

	projectID := uuid.New()
	seedBranches(t, reg, projectID, "feature/a", "feature/b")

	result, err := rec.CleanupStaleBranches(context.Background(), projectID, nil)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if len(result.FailedBranches) != 1 || result.FailedBranches[0] != "feature/a" {
		t.Errorf("failed = %v, want [feature/a]", result.FailedBranches)
	}
	if len(result.DeletedBranches) != 1 || result.DeletedBranches[0] != "feature/b" {
		t.Errorf("deleted = %v, want [feature/b]", result.DeletedBranches)
	}
}

func TestReconcileUsesLiveBranchList(t *testing.T) {
	reg := NewMemoryRegistry()
	store := newFakeStore()
	provider := &fakeProvider{branches: []string{"main", "feature/a"}}
	rec := newTestReconciler(reg, store, provider)

	projectID := uuid.New()
	seedBranches(t, reg, projectID, "feature/a", "feature/stale")

	result, err := rec.Reconcile(context.Background(), projectID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(result.DeletedBranches) != 1 || result.DeletedBranches[0] != "feature/stale" {
		t.Errorf("deleted = %v, want [feature/stale]", result.DeletedBranches)
	}
}

func TestReconcileBranchListFailure(t *testing.T) {
	reg := NewMemoryRegistry()
	provider := &fakeProvider{branchesErr: errors.New("repo unreachable")}
	rec := newTestReconciler(reg, newFakeStore(), provider)

	_, err := rec.Reconcile(context.Background(), uuid.New())
	if !errors.Is(err, ErrDiffUnavailable) {
		t.Fatalf("error = %v, want ErrDiffUnavailable", err)
	}
}
