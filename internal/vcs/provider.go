// Package vcs abstracts the version-control operations branch indexing needs:
// branch heads, live branch lists, file-level diffs between commits, and file
// content at a commit. The core never shells out to git itself; it talks to a
// DiffProvider.
package vcs

import (
	"context"
	"errors"
)

var (
	// ErrRepositoryNotFound indicates the repo locator does not resolve to a repository.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrBranchNotFound indicates the branch has no local or remote-tracking ref.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrCommitNotFound indicates a commit hash is unknown to the repository.
	ErrCommitNotFound = errors.New("commit not found")
)

// FileChange is one entry of a commit-to-commit diff.
type FileChange struct {
	Path    string
	Deleted bool
}

// DiffProvider exposes the VCS operations the branch index engine consumes.
// The repo argument is an opaque locator resolved from project settings (for
// the local provider, a filesystem path to a clone or mirror).
//
// Implementations must be safe for concurrent use.
type DiffProvider interface {
	// GetBranchHead resolves the current commit hash of a branch.
	GetBranchHead(ctx context.Context, repo, branch string) (string, error)

	// ListLiveBranches returns the names of all branches that currently exist.
	ListLiveBranches(ctx context.Context, repo string) ([]string, error)

	// GetBranchDiff returns the file-level changes between two commits.
	// A provider failure must surface as an error, never as an empty diff.
	GetBranchDiff(ctx context.Context, repo, fromCommit, toCommit string) ([]FileChange, error)

	// ListFiles returns every file path present at a commit, for full rebuilds.
	ListFiles(ctx context.Context, repo, commit string) ([]string, error)

	// GetFileContent reads one file's content as of a commit.
	GetFileContent(ctx context.Context, repo, commit, path string) ([]byte, error)
}
