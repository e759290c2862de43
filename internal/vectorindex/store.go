// Package vectorindex defines the branch-aware vector store the index
// mutation executor writes to, plus the Qdrant and pgvector implementations.
//
// All branch data lives in one shared collection, disambiguated by
// (project_id, branch) metadata on every point. That is why deletion targets
// metadata filters, never whole collections.
package vectorindex

import (
	"context"
	"strconv"

	"github.com/google/uuid"
)

// UpsertRequest describes one batch of files to (re)index for a branch.
type UpsertRequest struct {
	ProjectID uuid.UUID
	Repo      string // locator for reading file content
	Branch    string
	Commit    string
	Files     []string // relative paths
}

// Store is the branch-indexing capability. Deployments without a vector store
// wired construct the executor with a nil Store; the executor then reports a
// configuration error instead of silently doing nothing, so "looks indexed but
// isn't" can never happen.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// UpsertChunks chunks, embeds, and writes the given files, tagged with the
	// branch metadata. Returns the number of chunks written. Point identity is
	// deterministic per (path, ordinal), so a re-upsert overwrites matching
	// ordinals only; callers delete a file's previous chunks first when its
	// chunk count may have shrunk.
	UpsertChunks(ctx context.Context, req UpsertRequest) (int, error)

	// DeleteFiles removes all chunks of the given paths for one branch.
	DeleteFiles(ctx context.Context, projectID uuid.UUID, branch string, paths []string) error

	// DeleteBranch removes every chunk tagged with the branch. Idempotent:
	// deleting an absent branch succeeds with zero effect.
	DeleteBranch(ctx context.Context, projectID uuid.UUID, branch string) error

	// BranchExists reports whether any chunk is tagged with the branch.
	BranchExists(ctx context.Context, projectID uuid.UUID, branch string) (bool, error)
}

// ContentSource reads file content at a commit. Satisfied by vcs.DiffProvider.
type ContentSource interface {
	GetFileContent(ctx context.Context, repo, commit, path string) ([]byte, error)
}

// pointID derives a stable UUID for one chunk so re-upserts overwrite rather
// than duplicate. uuid.NameSpaceOID is arbitrary but fixed.
func pointID(projectID uuid.UUID, branch, path string, ordinal int) uuid.UUID {
	name := projectID.String() + "|" + branch + "|" + path + "|" + strconv.Itoa(ordinal)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}
