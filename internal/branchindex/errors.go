package branchindex

import "errors"

// Core error taxonomy. All of these are reported to the immediate caller;
// the core never downgrades a failure to success and never retries internally.
var (
	// ErrNotFound indicates no registry record exists for the (project, branch) key.
	ErrNotFound = errors.New("branch index record not found")

	// ErrDiffUnavailable indicates the VCS diff provider failed. It is distinct
	// from an empty delta so "failed to check" is never mistaken for "nothing changed".
	ErrDiffUnavailable = errors.New("branch diff unavailable")

	// ErrIndexWriteFailed indicates the vector index store rejected or partially
	// wrote a batch. Partial writes count as total mutation failure.
	ErrIndexWriteFailed = errors.New("vector index write failed")

	// ErrConcurrentModification indicates a registry compare-and-set lost a race.
	// Callers should re-run Decide rather than retry the same plan.
	ErrConcurrentModification = errors.New("branch index record modified concurrently")

	// ErrBusy signals a mutation is already in flight for the key. Not a true
	// failure; the trigger source should wait or report "in progress".
	ErrBusy = errors.New("index mutation already in progress")

	// ErrConfiguration indicates the project has no resolvable base branch,
	// repository path, or vector index store. No mutation is attempted.
	ErrConfiguration = errors.New("branch indexing misconfigured")
)
