package branchindex

import (
	"context"
	"fmt"

	"github.com/rostilos/CodeCrow-sub011/internal/vcs"
)

// DeltaResult is the file-level difference between two commits.
type DeltaResult struct {
	ChangedFiles []string // added or modified relative paths
	DeletedFiles []string // deleted relative paths

	// IsFullRebuild signals the caller must treat this as a CREATE, not an
	// incremental update, because there is no previous commit to diff against.
	IsFullRebuild bool
}

// Empty reports whether the delta carries no file changes at all.
func (d DeltaResult) Empty() bool {
	return !d.IsFullRebuild && len(d.ChangedFiles) == 0 && len(d.DeletedFiles) == 0
}

// DiffResolver computes deltas via the VCS diff provider. Pure function of
// (fromCommit, toCommit) for a given repository.
type DiffResolver struct {
	provider vcs.DiffProvider
}

func NewDiffResolver(provider vcs.DiffProvider) *DiffResolver {
	return &DiffResolver{provider: provider}
}

// ComputeDelta returns the changed-file set between fromCommit and toCommit.
//
// An empty fromCommit means the branch was never indexed: the result is a
// full-rebuild signal with no file list. Identical commits yield an empty,
// non-rebuild delta. A provider failure is reported as ErrDiffUnavailable,
// never as an empty delta, so callers can always distinguish "nothing
// changed" from "failed to check".
func (r *DiffResolver) ComputeDelta(ctx context.Context, repo, fromCommit, toCommit string) (DeltaResult, error) {
	if fromCommit == "" {
		return DeltaResult{IsFullRebuild: true}, nil
	}
	if fromCommit == toCommit {
		return DeltaResult{}, nil
	}

	changes, err := r.provider.GetBranchDiff(ctx, repo, fromCommit, toCommit)
	if err != nil {
		return DeltaResult{}, fmt.Errorf("%w: %s..%s: %v", ErrDiffUnavailable, fromCommit, toCommit, err)
	}

	var delta DeltaResult
	for _, change := range changes {
		if change.Deleted {
			delta.DeletedFiles = append(delta.DeletedFiles, change.Path)
		} else {
			delta.ChangedFiles = append(delta.ChangedFiles, change.Path)
		}
	}
	return delta, nil
}
