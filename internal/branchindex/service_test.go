package branchindex

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/rostilos/CodeCrow-sub011/internal/vcs"
)

func newTestService(reg Registry, store *fakeStore, provider *fakeProvider) *Service {
	settings := testSettings()
	exec := NewExecutor(reg, settings, provider, store, NewKeyedGuard(), testLogger())
	return NewService(NewDecisionEngine(reg), exec, settings, provider, testLogger())
}

func TestServiceSyncBranchCreatesOnFirstSight(t *testing.T) {
	reg := NewMemoryRegistry()
	store := newFakeStore()
	provider := &fakeProvider{head: "c1", files: []string{"a.go"}}
	svc := newTestService(reg, store, provider)

	projectID := uuid.New()
	plan, result, err := svc.SyncBranch(context.Background(), projectID, "feature/x", nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if plan.Action != ActionCreate {
		t.Errorf("action = %s, want %s", plan.Action, ActionCreate)
	}
	if !result.Success {
		t.Error("expected successful mutation")
	}

	rec, err := reg.Get(context.Background(), projectID, "feature/x")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.ReadyState != StateReady || rec.IndexedCommit != "c1" {
		t.Errorf("record = %+v, want ready at c1", rec)
	}
}

func TestServiceSyncBranchNoopWhenCurrent(t *testing.T) {
	reg := NewMemoryRegistry()
	provider := &fakeProvider{head: "c1"}
	svc := newTestService(reg, newFakeStore(), provider)

	projectID := uuid.New()
	seedRecord(t, reg, Record{
		ProjectID:     projectID,
		BranchName:    "feature/x",
		IndexedCommit: "c1",
		ReadyState:    StateReady,
	})

	plan, result, err := svc.SyncBranch(context.Background(), projectID, "feature/x", nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if plan.Action != ActionNoop || !result.Success {
		t.Errorf("plan=%+v result=%+v, want successful noop", plan, result)
	}
}

func TestServiceSyncBranchDeletesWhenBranchGone(t *testing.T) {
	reg := NewMemoryRegistry()
	store := newFakeStore()
	provider := &fakeProvider{headErr: fmt.Errorf("resolve feature/x: %w", vcs.ErrBranchNotFound)}
	svc := newTestService(reg, store, provider)

	projectID := uuid.New()
	seedRecord(t, reg, Record{
		ProjectID:     projectID,
		BranchName:    "feature/x",
		IndexedCommit: "c1",
		ReadyState:    StateReady,
	})

	plan, result, err := svc.SyncBranch(context.Background(), projectID, "feature/x", nil)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if plan.Action != ActionDelete || !result.Success {
		t.Errorf("plan=%+v result=%+v, want successful delete", plan, result)
	}
	if _, err := reg.Get(context.Background(), projectID, "feature/x"); !errors.Is(err, ErrNotFound) {
		t.Error("record survived branch deletion")
	}
}

func TestServiceSyncBranchHeadFailure(t *testing.T) {
	reg := NewMemoryRegistry()
	provider := &fakeProvider{headErr: errors.New("repo unreachable")}
	svc := newTestService(reg, newFakeStore(), provider)

	_, _, err := svc.SyncBranch(context.Background(), uuid.New(), "feature/x", nil)
	if !errors.Is(err, ErrDiffUnavailable) {
		t.Fatalf("error = %v, want ErrDiffUnavailable", err)
	}
}
