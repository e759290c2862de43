// Package branchindex keeps the per-branch retrieval index consistent with a
// moving git repository: it records what commit each branch's index reflects,
// decides which mutation (create, incremental update, delete) brings a stale
// index current, executes that mutation against a vector index store, and
// reconciles tracked branches against the branches that still exist upstream.
package branchindex

import (
	"time"

	"github.com/google/uuid"
)

// ReadyState describes the lifecycle state of a branch index record.
type ReadyState string

const (
	StateAbsent   ReadyState = "absent"
	StateIndexing ReadyState = "indexing"
	StateReady    ReadyState = "ready"
	StateFailed   ReadyState = "failed"
)

// Record is the durable indexing state for one (project, branch) pair.
//
// Invariants:
//   - at most one record exists per (ProjectID, BranchName)
//   - StateReady implies IndexedCommit != ""
//   - StateIndexing is transient and held only under the concurrency guard
//   - BaseBranch never equals BranchName (empty for the base branch itself)
//   - a failed mutation preserves the previous IndexedCommit
type Record struct {
	ProjectID     uuid.UUID  `json:"project_id"`
	BranchName    string     `json:"branch_name"`
	BaseBranch    string     `json:"base_branch"`
	IndexedCommit string     `json:"indexed_commit,omitempty"`
	ReadyState    ReadyState `json:"ready_state"`
	LastAttemptAt time.Time  `json:"last_attempt_at"`
	LastSuccessAt time.Time  `json:"last_success_at"`
	LastError     string     `json:"last_error,omitempty"`

	// Version is the compare-and-set token for Registry.Upsert. Zero means
	// the record has never been persisted. IndexedCommit is not a safe token
	// because a failed mutation keeps the old commit.
	Version int64 `json:"version"`
}

// Action is the category of index mutation a Plan prescribes.
type Action string

const (
	ActionCreate            Action = "create"
	ActionIncrementalUpdate Action = "incremental_update"
	ActionDelete            Action = "delete"
	ActionNoop              Action = "noop"
)

// Plan is an ephemeral, never-persisted description of one decided mutation.
// Produced fresh by the DecisionEngine per trigger.
type Plan struct {
	ProjectID  uuid.UUID `json:"project_id"`
	BranchName string    `json:"branch_name"`
	BaseBranch string    `json:"base_branch"`
	Action     Action    `json:"action"`
	FromCommit string    `json:"from_commit,omitempty"`
	ToCommit   string    `json:"to_commit,omitempty"`

	// Busy marks a NOOP issued because a mutation is already in flight for
	// this key. The caller must not start a concurrent mutation.
	Busy bool `json:"busy,omitempty"`
}

// MutationResult reports the outcome of executing a Plan.
type MutationResult struct {
	Success       bool
	ChunksWritten int
}

// ProjectSettings is the per-project configuration the policy and executor
// consult. Construction validation happens once at the store boundary; the
// struct itself is a plain immutable value.
type ProjectSettings struct {
	ProjectID          uuid.UUID
	RepoPath           string // locator handed to the VCS diff provider
	BaseBranch         string
	RAGEnabled         bool
	MultiBranchEnabled bool
	BranchPushPattern  string // path.Match pattern, e.g. "release/*"
	WebhookToken       string
}
