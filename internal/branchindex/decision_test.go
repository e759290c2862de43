package branchindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rostilos/CodeCrow-sub011/internal/vcs"
)

func TestDecide(t *testing.T) {
	projectID := uuid.New()

	tests := []struct {
		name       string
		seed       *Record
		head       string
		wantAction Action
		wantBusy   bool
		wantFrom   string
		wantTo     string
	}{
		{
			name:       "no record creates",
			head:       "c1",
			wantAction: ActionCreate,
			wantTo:     "c1",
		},
		{
			name:       "indexing record is busy noop",
			seed:       &Record{ReadyState: StateIndexing, LastAttemptAt: time.Now()},
			head:       "c1",
			wantAction: ActionNoop,
			wantBusy:   true,
		},
		{
			name:       "stale indexing with commit recovers incrementally",
			seed:       &Record{ReadyState: StateIndexing, IndexedCommit: "c1", LastAttemptAt: time.Now().Add(-24 * time.Hour)},
			head:       "c2",
			wantAction: ActionIncrementalUpdate,
			wantFrom:   "c1",
			wantTo:     "c2",
		},
		{
			name:       "stale indexing without commit rebuilds",
			seed:       &Record{ReadyState: StateIndexing, LastAttemptAt: time.Now().Add(-24 * time.Hour)},
			head:       "c1",
			wantAction: ActionCreate,
			wantTo:     "c1",
		},
		{
			name:       "ready at head is noop",
			seed:       &Record{ReadyState: StateReady, IndexedCommit: "c1"},
			head:       "c1",
			wantAction: ActionNoop,
		},
		{
			name:       "ready behind head updates incrementally",
			seed:       &Record{ReadyState: StateReady, IndexedCommit: "c1"},
			head:       "c2",
			wantAction: ActionIncrementalUpdate,
			wantFrom:   "c1",
			wantTo:     "c2",
		},
		{
			name:       "failed with last-good commit retries incrementally",
			seed:       &Record{ReadyState: StateFailed, IndexedCommit: "c1", LastError: "boom"},
			head:       "c2",
			wantAction: ActionIncrementalUpdate,
			wantFrom:   "c1",
			wantTo:     "c2",
		},
		{
			name:       "failed without commit rebuilds",
			seed:       &Record{ReadyState: StateFailed, LastError: "boom"},
			head:       "c2",
			wantAction: ActionCreate,
			wantTo:     "c2",
		},
		{
			name:       "failed at head is noop",
			seed:       &Record{ReadyState: StateFailed, IndexedCommit: "c1", LastError: "boom"},
			head:       "c1",
			wantAction: ActionNoop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewMemoryRegistry()
			if tt.seed != nil {
				rec := *tt.seed
				rec.ProjectID = projectID
				rec.BranchName = "feature/x"
				seedRecord(t, reg, rec)
			}

			engine := NewDecisionEngine(reg)
			plan, err := engine.Decide(context.Background(), DecideRequest{
				ProjectID:      projectID,
				BranchName:     "feature/x",
				BaseBranch:     "main",
				LiveHeadCommit: tt.head,
			})
			if err != nil {
				t.Fatalf("decide: %v", err)
			}

			if plan.Action != tt.wantAction {
				t.Errorf("action = %s, want %s", plan.Action, tt.wantAction)
			}
			if plan.Busy != tt.wantBusy {
				t.Errorf("busy = %v, want %v", plan.Busy, tt.wantBusy)
			}
			if plan.FromCommit != tt.wantFrom {
				t.Errorf("from commit = %q, want %q", plan.FromCommit, tt.wantFrom)
			}
			if plan.ToCommit != tt.wantTo {
				t.Errorf("to commit = %q, want %q", plan.ToCommit, tt.wantTo)
			}
		})
	}
}

func TestDecideRecoversAbandonedIndexing(t *testing.T) {
	reg := NewMemoryRegistry()
	projectID := uuid.New()
	seedRecord(t, reg, Record{
		ProjectID:     projectID,
		BranchName:    "feature/x",
		ReadyState:    StateIndexing,
		IndexedCommit: "c1",
		LastAttemptAt: time.Now().Add(-24 * time.Hour),
	})

	engine := NewDecisionEngine(reg)
	store := newFakeStore()
	provider := &fakeProvider{diff: []vcs.FileChange{{Path: "f1.go"}}}
	exec := NewExecutor(reg, testSettings(), provider, store, NewKeyedGuard(), testLogger())

	plan, err := engine.Decide(context.Background(), DecideRequest{
		ProjectID:      projectID,
		BranchName:     "feature/x",
		BaseBranch:     "main",
		LiveHeadCommit: "c2",
	})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if plan.Busy {
		t.Fatal("abandoned mutation still reported busy")
	}

	if _, err := exec.Execute(context.Background(), plan, nil); err != nil {
		t.Fatalf("execute recovered plan: %v", err)
	}

	rec, err := reg.Get(context.Background(), projectID, "feature/x")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.ReadyState != StateReady || rec.IndexedCommit != "c2" {
		t.Errorf("record = %+v, want ready at c2", rec)
	}
}

func TestDecideEmptyHeadIsConfigurationError(t *testing.T) {
	engine := NewDecisionEngine(NewMemoryRegistry())
	_, err := engine.Decide(context.Background(), DecideRequest{
		ProjectID:  uuid.New(),
		BranchName: "feature/x",
		BaseBranch: "main",
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestDecideBaseBranchHasNoBase(t *testing.T) {
	engine := NewDecisionEngine(NewMemoryRegistry())
	plan, err := engine.Decide(context.Background(), DecideRequest{
		ProjectID:      uuid.New(),
		BranchName:     "main",
		BaseBranch:     "main",
		LiveHeadCommit: "c1",
	})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if plan.BaseBranch != "" {
		t.Errorf("base branch = %q, want empty for the base branch's own plan", plan.BaseBranch)
	}
}
