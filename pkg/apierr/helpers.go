package apierr

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/rostilos/CodeCrow-sub011/internal/branchindex"
)

// IsNotFound returns true if the error is or wraps pgx.ErrNoRows or the
// registry's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, branchindex.ErrNotFound)
}

// FromCore maps a core branch-index error onto its API representation.
// Unrecognized errors become InternalError.
func FromCore(err error) *Error {
	switch {
	case errors.Is(err, branchindex.ErrBusy):
		return IndexMutationInProgress()
	case errors.Is(err, branchindex.ErrConcurrentModification):
		return ConcurrentModification()
	case errors.Is(err, branchindex.ErrDiffUnavailable):
		return DiffUnavailable(err)
	case errors.Is(err, branchindex.ErrIndexWriteFailed):
		return IndexWriteFailed(err)
	case errors.Is(err, branchindex.ErrConfiguration):
		return ConfigurationError(err)
	case errors.Is(err, branchindex.ErrNotFound):
		return BranchIndexNotFound()
	default:
		return InternalError(err)
	}
}
