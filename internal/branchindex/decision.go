package branchindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// defaultStaleIndexingAfter matches the default guard lease TTL: once the
// lease of the writer that marked INDEXING has expired, the record is
// recoverable.
const defaultStaleIndexingAfter = 10 * time.Minute

// DecideRequest carries the inputs for one staleness decision.
type DecideRequest struct {
	ProjectID      uuid.UUID
	BranchName     string
	BaseBranch     string
	LiveHeadCommit string
}

// DecisionEngine turns registry state plus the live VCS head into a mutation
// plan. It is pure apart from the single registry read; all I/O-heavy work
// belongs to the executor.
type DecisionEngine struct {
	registry   Registry
	staleAfter time.Duration
}

func NewDecisionEngine(registry Registry) *DecisionEngine {
	return &DecisionEngine{registry: registry, staleAfter: defaultStaleIndexingAfter}
}

// SetStaleIndexingAfter overrides how old an INDEXING record's last attempt
// may be before the writer is presumed dead. Must be at least the guard lease
// TTL, or a live writer could be undercut.
func (e *DecisionEngine) SetStaleIndexingAfter(d time.Duration) {
	if d > 0 {
		e.staleAfter = d
	}
}

// Decide produces the mutation plan for a branch. The tie-break order is:
//
//  1. no record, or FAILED with no last-good commit  -> CREATE at live head
//  2. READY at the live head                         -> NOOP
//  3. READY behind the live head                     -> INCREMENTAL_UPDATE
//  4. INDEXING                                       -> NOOP with Busy set
//
// A FAILED record that still holds a last-good commit retries incrementally
// from that commit (rule 2/3 applied to the preserved state), so one failed
// update never forces a full rebuild.
//
// An INDEXING record whose last attempt is older than the stale threshold is
// treated like FAILED: the writer that marked it crashed without reaching a
// terminal state and its guard lease has long expired, so the branch re-plans
// from the preserved commit instead of reporting busy forever.
func (e *DecisionEngine) Decide(ctx context.Context, req DecideRequest) (Plan, error) {
	if req.LiveHeadCommit == "" {
		return Plan{}, fmt.Errorf("%w: no live head commit for branch %q", ErrConfiguration, req.BranchName)
	}

	baseBranch := req.BaseBranch
	if baseBranch == req.BranchName {
		// The base branch's own record has no base to delta against.
		baseBranch = ""
	}

	plan := Plan{
		ProjectID:  req.ProjectID,
		BranchName: req.BranchName,
		BaseBranch: baseBranch,
		ToCommit:   req.LiveHeadCommit,
	}

	rec, err := e.registry.Get(ctx, req.ProjectID, req.BranchName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			plan.Action = ActionCreate
			return plan, nil
		}
		return Plan{}, fmt.Errorf("read registry: %w", err)
	}

	switch rec.ReadyState {
	case StateIndexing:
		if time.Since(rec.LastAttemptAt) <= e.staleAfter {
			plan.Action = ActionNoop
			plan.Busy = true
			plan.ToCommit = ""
			return plan, nil
		}
		// Abandoned mutation: recover from the last good commit.
		return planFromIndexed(plan, rec.IndexedCommit), nil

	case StateReady, StateFailed:
		return planFromIndexed(plan, rec.IndexedCommit), nil

	default:
		plan.Action = ActionCreate
		return plan, nil
	}
}

// planFromIndexed applies the create/noop/incremental tie-break against the
// record's last good commit. plan.ToCommit carries the live head.
func planFromIndexed(plan Plan, indexedCommit string) Plan {
	if indexedCommit == "" {
		plan.Action = ActionCreate
		return plan
	}
	if indexedCommit == plan.ToCommit {
		plan.Action = ActionNoop
		plan.ToCommit = ""
		return plan
	}
	plan.Action = ActionIncrementalUpdate
	plan.FromCommit = indexedCommit
	return plan
}
