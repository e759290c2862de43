package branchindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rostilos/CodeCrow-sub011/internal/vcs"
)

// Service is the entry point the job worker drives: it resolves the live head
// of a branch, decides the mutation, and executes it. A branch whose head no
// longer resolves upstream is treated as deleted.
type Service struct {
	engine   *DecisionEngine
	executor *Executor
	settings SettingsSource
	provider vcs.DiffProvider
	logger   *slog.Logger
}

func NewService(engine *DecisionEngine, executor *Executor, settings SettingsSource, provider vcs.DiffProvider, logger *slog.Logger) *Service {
	return &Service{
		engine:   engine,
		executor: executor,
		settings: settings,
		provider: provider,
		logger:   logger,
	}
}

// SyncBranch brings one branch's index current. Returns the plan that was
// decided alongside the execution result; ErrBusy when another mutation holds
// the key.
func (s *Service) SyncBranch(ctx context.Context, projectID uuid.UUID, branch string, sink EventSink) (Plan, MutationResult, error) {
	settings, err := s.settings.ProjectSettings(ctx, projectID)
	if err != nil {
		return Plan{}, MutationResult{}, fmt.Errorf("%w: resolve project settings: %v", ErrConfiguration, err)
	}

	head, err := s.provider.GetBranchHead(ctx, settings.RepoPath, branch)
	if err != nil {
		if errors.Is(err, vcs.ErrBranchNotFound) {
			s.logger.Info("branch gone upstream, removing its index",
				slog.String("project_id", projectID.String()),
				slog.String("branch", branch))
			return s.DeleteBranch(ctx, projectID, branch, sink)
		}
		return Plan{}, MutationResult{}, fmt.Errorf("%w: resolve head of %s: %v", ErrDiffUnavailable, branch, err)
	}

	plan, err := s.engine.Decide(ctx, DecideRequest{
		ProjectID:      projectID,
		BranchName:     branch,
		BaseBranch:     settings.BaseBranch,
		LiveHeadCommit: head,
	})
	if err != nil {
		return Plan{}, MutationResult{}, err
	}

	result, err := s.executor.Execute(ctx, plan, sink)
	return plan, result, err
}

// DeleteBranch removes one branch's index and registry record.
func (s *Service) DeleteBranch(ctx context.Context, projectID uuid.UUID, branch string, sink EventSink) (Plan, MutationResult, error) {
	plan := Plan{
		ProjectID:  projectID,
		BranchName: branch,
		Action:     ActionDelete,
	}
	result, err := s.executor.Execute(ctx, plan, sink)
	return plan, result, err
}
