package branchindex

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/rostilos/CodeCrow-sub011/internal/vcs"
)

// ReconcileResult reports which stale branches were removed and which failed.
type ReconcileResult struct {
	DeletedBranches []string `json:"deleted_branches"`
	FailedBranches  []string `json:"failed_branches"`
}

// Reconciler removes index entries for branches that no longer exist in the
// source VCS.
type Reconciler struct {
	registry Registry
	settings SettingsSource
	executor *Executor
	provider vcs.DiffProvider
	logger   *slog.Logger
}

func NewReconciler(registry Registry, settings SettingsSource, executor *Executor, provider vcs.DiffProvider, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		registry: registry,
		settings: settings,
		executor: executor,
		provider: provider,
		logger:   logger,
	}
}

// Reconcile fetches the live branch list from the VCS and removes orphaned
// registry entries.
func (r *Reconciler) Reconcile(ctx context.Context, projectID uuid.UUID) (ReconcileResult, error) {
	settings, err := r.settings.ProjectSettings(ctx, projectID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: resolve project settings: %v", ErrConfiguration, err)
	}

	live, err := r.provider.ListLiveBranches(ctx, settings.RepoPath)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: list live branches: %v", ErrDiffUnavailable, err)
	}
	return r.CleanupStaleBranches(ctx, projectID, live)
}

// CleanupStaleBranches deletes every tracked branch not present in
// activeBranches. One branch's failure never aborts the others; failures are
// collected and reported. The project's base branch is never deleted, even
// when the caller's active list omits it.
func (r *Reconciler) CleanupStaleBranches(ctx context.Context, projectID uuid.UUID, activeBranches []string) (ReconcileResult, error) {
	settings, err := r.settings.ProjectSettings(ctx, projectID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("%w: resolve project settings: %v", ErrConfiguration, err)
	}

	tracked, err := r.registry.ListBranches(ctx, projectID)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("list tracked branches: %w", err)
	}

	active := make(map[string]struct{}, len(activeBranches))
	for _, b := range activeBranches {
		active[b] = struct{}{}
	}

	var stale []string
	for _, b := range tracked {
		if _, live := active[b]; !live {
			stale = append(stale, b)
		}
	}
	sort.Strings(stale)

	var result ReconcileResult
	for _, branch := range stale {
		if branch == settings.BaseBranch {
			// Safety invariant: the base index survives even a bad caller list.
			r.logger.Warn("refusing to reconcile away base branch",
				slog.String("project_id", projectID.String()),
				slog.String("branch", branch))
			continue
		}

		plan := Plan{
			ProjectID:  projectID,
			BranchName: branch,
			Action:     ActionDelete,
		}
		if _, err := r.executor.Execute(ctx, plan, nil); err != nil {
			r.logger.Error("stale branch cleanup failed",
				slog.String("project_id", projectID.String()),
				slog.String("branch", branch),
				slog.String("error", err.Error()))
			result.FailedBranches = append(result.FailedBranches, branch)
			continue
		}

		r.logger.Info("stale branch index removed",
			slog.String("project_id", projectID.String()),
			slog.String("branch", branch))
		result.DeletedBranches = append(result.DeletedBranches, branch)
	}
	return result, nil
}
