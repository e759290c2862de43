package branchindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/rostilos/CodeCrow-sub011/internal/vcs"
)

// Decision reasons, first matching rule wins.
const (
	ReasonRAGDisabled          = "rag_disabled"
	ReasonTargetIsBase         = "target_is_base"
	ReasonMultiBranchDisabled  = "multi_branch_disabled"
	ReasonBranchIndexAvailable = "branch_index_available"
	ReasonBranchIndexNotReady  = "branch_index_not_ready"
)

// Decision is the outcome of the multi-branch policy for one PR target.
type Decision struct {
	UseMultiBranch       bool   `json:"use_multi_branch"`
	BaseBranch           string `json:"base_branch"`
	TargetBranch         string `json:"target_branch"`
	BranchIndexAvailable bool   `json:"branch_index_available"`
	Reason               string `json:"reason"`
}

// PlanEnqueuer hands a mutation plan to the job layer for asynchronous
// execution. Implemented by the jobs producer.
type PlanEnqueuer interface {
	EnqueuePlan(ctx context.Context, plan Plan) error
}

// Policy decides whether multi-branch retrieval context applies to a project
// and PR target branch, and triggers on-demand index builds for PR targets
// that should be indexed but are not yet.
type Policy struct {
	settings SettingsSource
	registry Registry
	engine   *DecisionEngine
	provider vcs.DiffProvider
	enqueuer PlanEnqueuer
	logger   *slog.Logger
}

func NewPolicy(settings SettingsSource, registry Registry, engine *DecisionEngine, provider vcs.DiffProvider, enqueuer PlanEnqueuer, logger *slog.Logger) *Policy {
	return &Policy{
		settings: settings,
		registry: registry,
		engine:   engine,
		provider: provider,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// ShouldUseMultiBranchRAG evaluates the policy rules in order:
//
//  1. RAG disabled for the project          -> false, rag_disabled
//  2. target is the base branch             -> false, target_is_base
//  3. multi-branch disabled for the project -> false, multi_branch_disabled
//  4. branch index exists and is READY      -> true,  branch_index_available
//  5. otherwise                             -> false, branch_index_not_ready
//
// Rule 2 holds regardless of branch-index state: the base index already
// covers its own branch.
func (p *Policy) ShouldUseMultiBranchRAG(ctx context.Context, projectID uuid.UUID, targetBranch string) (Decision, error) {
	settings, err := p.settings.ProjectSettings(ctx, projectID)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: resolve project settings: %v", ErrConfiguration, err)
	}
	if settings.BaseBranch == "" {
		return Decision{}, fmt.Errorf("%w: project %s has no base branch", ErrConfiguration, projectID)
	}

	decision := Decision{
		BaseBranch:   settings.BaseBranch,
		TargetBranch: targetBranch,
	}

	if !settings.RAGEnabled {
		decision.Reason = ReasonRAGDisabled
		return decision, nil
	}
	if targetBranch == settings.BaseBranch {
		decision.Reason = ReasonTargetIsBase
		return decision, nil
	}
	if !settings.MultiBranchEnabled {
		decision.Reason = ReasonMultiBranchDisabled
		return decision, nil
	}

	rec, err := p.registry.Get(ctx, projectID, targetBranch)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Decision{}, fmt.Errorf("read registry: %w", err)
	}
	if err == nil && rec.ReadyState == StateReady {
		decision.UseMultiBranch = true
		decision.BranchIndexAvailable = true
		decision.Reason = ReasonBranchIndexAvailable
		return decision, nil
	}

	decision.Reason = ReasonBranchIndexNotReady
	return decision, nil
}

// EnsureBranchIndexForPRTarget triggers an index build for a PR target branch
// that should be indexed (per the project's branch-push pattern) but is not
// yet READY. The build is enqueued, not awaited: the returned bool reports
// whether the index is ready now, and callers needing freshness re-check
// after the trigger.
func (p *Policy) EnsureBranchIndexForPRTarget(ctx context.Context, projectID uuid.UUID, targetBranch string) (bool, error) {
	settings, err := p.settings.ProjectSettings(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("%w: resolve project settings: %v", ErrConfiguration, err)
	}
	if targetBranch == settings.BaseBranch {
		// The base index is maintained by the regular push flow.
		return true, nil
	}
	if !settings.RAGEnabled || !settings.MultiBranchEnabled {
		return false, nil
	}
	if !branchMatchesPattern(settings.BranchPushPattern, targetBranch) {
		p.logger.Debug("pr target not eligible for branch indexing",
			slog.String("project_id", projectID.String()),
			slog.String("branch", targetBranch),
			slog.String("pattern", settings.BranchPushPattern))
		return false, nil
	}

	rec, err := p.registry.Get(ctx, projectID, targetBranch)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("read registry: %w", err)
	}
	if err == nil && rec.ReadyState == StateReady {
		return true, nil
	}

	head, err := p.provider.GetBranchHead(ctx, settings.RepoPath, targetBranch)
	if err != nil {
		return false, fmt.Errorf("%w: resolve head of %s: %v", ErrDiffUnavailable, targetBranch, err)
	}

	plan, err := p.engine.Decide(ctx, DecideRequest{
		ProjectID:      projectID,
		BranchName:     targetBranch,
		BaseBranch:     settings.BaseBranch,
		LiveHeadCommit: head,
	})
	if err != nil {
		return false, err
	}
	if plan.Action == ActionNoop {
		// Busy: a build is already in flight; plain NOOP cannot occur here
		// because a READY record returned above.
		return false, nil
	}

	if err := p.enqueuer.EnqueuePlan(ctx, plan); err != nil {
		return false, fmt.Errorf("enqueue %s for %s: %w", plan.Action, targetBranch, err)
	}

	p.logger.Info("branch index build triggered for pr target",
		slog.String("project_id", projectID.String()),
		slog.String("branch", targetBranch),
		slog.String("action", string(plan.Action)))
	return false, nil
}

// branchMatchesPattern reports whether the push pattern covers the branch.
// An empty pattern covers every branch.
func branchMatchesPattern(pattern, branch string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, branch)
	return err == nil && ok
}
