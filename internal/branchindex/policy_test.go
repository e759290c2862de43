package branchindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeEnqueuer struct {
	plans []Plan
	err   error
}

func (f *fakeEnqueuer) EnqueuePlan(_ context.Context, plan Plan) error {
	if f.err != nil {
		return f.err
	}
	f.plans = append(f.plans, plan)
	return nil
}

func policySettings(rag, multi bool, pattern string) fixedSettings {
	return fixedSettings{settings: ProjectSettings{
		RepoPath:           "/repos/demo",
		BaseBranch:         "main",
		RAGEnabled:         rag,
		MultiBranchEnabled: multi,
		BranchPushPattern:  pattern,
	}}
}

func TestShouldUseMultiBranchRAG(t *testing.T) {
	projectID := uuid.New()

	tests := []struct {
		name       string
		rag        bool
		multi      bool
		target     string
		seed       *Record
		wantUse    bool
		wantReason string
	}{
		{
			name:       "rag disabled wins over everything",
			rag:        false,
			multi:      true,
			target:     "feature/x",
			seed:       &Record{ReadyState: StateReady, IndexedCommit: "c1"},
			wantReason: ReasonRAGDisabled,
		},
		{
			name:       "target is base even when an index exists",
			rag:        true,
			multi:      true,
			target:     "main",
			seed:       &Record{ReadyState: StateReady, IndexedCommit: "c1"},
			wantReason: ReasonTargetIsBase,
		},
		{
			name:       "multi branch disabled",
			rag:        true,
			multi:      false,
			target:     "feature/x",
			seed:       &Record{ReadyState: StateReady, IndexedCommit: "c1"},
			wantReason: ReasonMultiBranchDisabled,
		},
		{
			name:       "ready index enables multi branch",
			rag:        true,
			multi:      true,
			target:     "feature/x",
			seed:       &Record{ReadyState: StateReady, IndexedCommit: "c1"},
			wantUse:    true,
			wantReason: ReasonBranchIndexAvailable,
		},
		{
			name:       "absent index falls back",
			rag:        true,
			multi:      true,
			target:     "feature/x",
			wantReason: ReasonBranchIndexNotReady,
		},
		{
			name:       "failed index falls back",
			rag:        true,
			multi:      true,
			target:     "feature/x",
			seed:       &Record{ReadyState: StateFailed, LastError: "boom"},
			wantReason: ReasonBranchIndexNotReady,
		},
		{
			name:       "indexing in flight falls back",
			rag:        true,
			multi:      true,
			target:     "feature/x",
			seed:       &Record{ReadyState: StateIndexing},
			wantReason: ReasonBranchIndexNotReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewMemoryRegistry()
			if tt.seed != nil {
				rec := *tt.seed
				rec.ProjectID = projectID
				rec.BranchName = tt.target
				seedRecord(t, reg, rec)
			}

			policy := NewPolicy(policySettings(tt.rag, tt.multi, ""), reg,
				NewDecisionEngine(reg), &fakeProvider{}, &fakeEnqueuer{}, testLogger())

			decision, err := policy.ShouldUseMultiBranchRAG(context.Background(), projectID, tt.target)
			if err != nil {
				t.Fatalf("policy: %v", err)
			}
			if decision.UseMultiBranch != tt.wantUse {
				t.Errorf("use = %v, want %v", decision.UseMultiBranch, tt.wantUse)
			}
			if decision.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", decision.Reason, tt.wantReason)
			}
			if decision.BaseBranch != "main" || decision.TargetBranch != tt.target {
				t.Errorf("decision branches = %q/%q, want main/%q",
					decision.BaseBranch, decision.TargetBranch, tt.target)
			}
		})
	}
}

func TestShouldUseMultiBranchRAGEmptyBase(t *testing.T) {
	settings := fixedSettings{settings: ProjectSettings{RAGEnabled: true}}
	reg := NewMemoryRegistry()
	policy := NewPolicy(settings, reg, NewDecisionEngine(reg), &fakeProvider{}, &fakeEnqueuer{}, testLogger())

	_, err := policy.ShouldUseMultiBranchRAG(context.Background(), uuid.New(), "feature/x")
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestEnsureBranchIndexForPRTarget(t *testing.T) {
	projectID := uuid.New()

	t.Run("base target is always ready", func(t *testing.T) {
		reg := NewMemoryRegistry()
		enq := &fakeEnqueuer{}
		policy := NewPolicy(policySettings(true, true, ""), reg, NewDecisionEngine(reg), &fakeProvider{}, enq, testLogger())

		ready, err := policy.EnsureBranchIndexForPRTarget(context.Background(), projectID, "main")
		if err != nil || !ready {
			t.Fatalf("ready=%v err=%v, want true", ready, err)
		}
		if len(enq.plans) != 0 {
			t.Errorf("enqueued %d plans, want none", len(enq.plans))
		}
	})

	t.Run("ready index needs no trigger", func(t *testing.T) {
		reg := NewMemoryRegistry()
		seedRecord(t, reg, Record{
			ProjectID:     projectID,
			BranchName:    "release/1.2",
			IndexedCommit: "c1",
			ReadyState:    StateReady,
		})
		enq := &fakeEnqueuer{}
		policy := NewPolicy(policySettings(true, true, ""), reg, NewDecisionEngine(reg), &fakeProvider{}, enq, testLogger())

		ready, err := policy.EnsureBranchIndexForPRTarget(context.Background(), projectID, "release/1.2")
		if err != nil || !ready {
			t.Fatalf("ready=%v err=%v, want true", ready, err)
		}
		if len(enq.plans) != 0 {
			t.Errorf("enqueued %d plans, want none", len(enq.plans))
		}
	})

	t.Run("pattern mismatch skips", func(t *testing.T) {
		reg := NewMemoryRegistry()
		enq := &fakeEnqueuer{}
		policy := NewPolicy(policySettings(true, true, "release/*"), reg, NewDecisionEngine(reg), &fakeProvider{head: "c1"}, enq, testLogger())

		ready, err := policy.EnsureBranchIndexForPRTarget(context.Background(), projectID, "feature/x")
		if err != nil || ready {
			t.Fatalf("ready=%v err=%v, want false without error", ready, err)
		}
		if len(enq.plans) != 0 {
			t.Errorf("enqueued %d plans, want none", len(enq.plans))
		}
	})

	t.Run("missing index triggers a build", func(t *testing.T) {
		reg := NewMemoryRegistry()
		enq := &fakeEnqueuer{}
		policy := NewPolicy(policySettings(true, true, "release/*"), reg, NewDecisionEngine(reg), &fakeProvider{head: "c9"}, enq, testLogger())

		ready, err := policy.EnsureBranchIndexForPRTarget(context.Background(), projectID, "release/1.2")
		if err != nil {
			t.Fatalf("ensure: %v", err)
		}
		if ready {
			t.Error("ready = true, want false until the build lands")
		}
		if len(enq.plans) != 1 {
			t.Fatalf("enqueued %d plans, want 1", len(enq.plans))
		}
		plan := enq.plans[0]
		if plan.Action != ActionCreate || plan.ToCommit != "c9" || plan.BranchName != "release/1.2" {
			t.Errorf("plan = %+v, want create of release/1.2 at c9", plan)
		}
	})

	t.Run("build in flight does not double-trigger", func(t *testing.T) {
		reg := NewMemoryRegistry()
		seedRecord(t, reg, Record{
			ProjectID:     projectID,
			BranchName:    "release/1.2",
			ReadyState:    StateIndexing,
			LastAttemptAt: time.Now(),
		})
		enq := &fakeEnqueuer{}
		policy := NewPolicy(policySettings(true, true, ""), reg, NewDecisionEngine(reg), &fakeProvider{head: "c9"}, enq, testLogger())

		ready, err := policy.EnsureBranchIndexForPRTarget(context.Background(), projectID, "release/1.2")
		if err != nil || ready {
			t.Fatalf("ready=%v err=%v, want false without error", ready, err)
		}
		if len(enq.plans) != 0 {
			t.Errorf("enqueued %d plans, want none while indexing", len(enq.plans))
		}
	})

	t.Run("unresolvable head is a diff failure", func(t *testing.T) {
		reg := NewMemoryRegistry()
		policy := NewPolicy(policySettings(true, true, ""), reg, NewDecisionEngine(reg),
			&fakeProvider{headErr: errors.New("no such branch")}, &fakeEnqueuer{}, testLogger())

		_, err := policy.EnsureBranchIndexForPRTarget(context.Background(), projectID, "release/1.2")
		if !errors.Is(err, ErrDiffUnavailable) {
			t.Fatalf("error = %v, want ErrDiffUnavailable", err)
		}
	})
}
