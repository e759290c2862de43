package branchindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rostilos/CodeCrow-sub011/internal/vcs"
	"github.com/rostilos/CodeCrow-sub011/internal/vectorindex"
)

const defaultFileBatchSize = 50

// Executor applies one mutation plan to the vector index store and records
// the outcome in the registry.
//
// The guard is acquired before any store call and released on every exit
// path. The commit recorded in the registry only advances on full success, so
// a half-written batch is never reported as current; any failure, including
// caller cancellation mid-write, leaves the record FAILED with the previous
// commit preserved.
type Executor struct {
	registry  Registry
	settings  SettingsSource
	diff      *DiffResolver
	provider  vcs.DiffProvider
	store     vectorindex.Store // nil when the deployment has no vector index wired
	guard     Guard
	logger    *slog.Logger
	batchSize int
}

func NewExecutor(registry Registry, settings SettingsSource, provider vcs.DiffProvider, store vectorindex.Store, guard Guard, logger *slog.Logger) *Executor {
	return &Executor{
		registry:  registry,
		settings:  settings,
		diff:      NewDiffResolver(provider),
		provider:  provider,
		store:     store,
		guard:     guard,
		logger:    logger,
		batchSize: defaultFileBatchSize,
	}
}

// SetBatchSize overrides the number of files written per store call.
func (e *Executor) SetBatchSize(n int) {
	if n > 0 {
		e.batchSize = n
	}
}

// Execute runs the plan. Returns ErrBusy when another mutation holds the key,
// ErrConfiguration when no vector store or repository is configured, and
// ErrDiffUnavailable or ErrIndexWriteFailed on mutation failure. NOOP plans
// succeed immediately.
func (e *Executor) Execute(ctx context.Context, plan Plan, sink EventSink) (MutationResult, error) {
	if plan.Action == ActionNoop {
		if plan.Busy {
			return MutationResult{}, ErrBusy
		}
		return MutationResult{Success: true}, nil
	}

	if e.store == nil {
		e.emit(sink, ProgressEvent{
			Type:     EventWarning,
			Message:  "branch index operations not configured: no vector index store wired",
			Metadata: planMeta(plan),
		})
		return MutationResult{}, fmt.Errorf("%w: no vector index store wired", ErrConfiguration)
	}

	release, acquired, err := e.guard.TryAcquire(ctx, plan.ProjectID, plan.BranchName)
	if err != nil {
		return MutationResult{}, fmt.Errorf("acquire guard: %w", err)
	}
	if !acquired {
		return MutationResult{}, ErrBusy
	}
	defer release()

	e.emit(sink, ProgressEvent{
		Type:     EventStart,
		Message:  fmt.Sprintf("%s started for branch %s", plan.Action, plan.BranchName),
		Metadata: planMeta(plan),
	})

	if plan.Action == ActionDelete {
		return e.runDelete(ctx, plan, sink)
	}
	return e.runWrite(ctx, plan, sink)
}

// runWrite handles CREATE and INCREMENTAL_UPDATE.
func (e *Executor) runWrite(ctx context.Context, plan Plan, sink EventSink) (MutationResult, error) {
	settings, err := e.settings.ProjectSettings(ctx, plan.ProjectID)
	if err != nil {
		return MutationResult{}, fmt.Errorf("%w: resolve project settings: %v", ErrConfiguration, err)
	}
	if settings.RepoPath == "" {
		return MutationResult{}, fmt.Errorf("%w: project %s has no repository path", ErrConfiguration, plan.ProjectID)
	}

	rec, err := e.markIndexing(ctx, plan)
	if err != nil {
		return MutationResult{}, err
	}

	var files []string
	var deleted []string
	fullRebuild := plan.Action == ActionCreate

	switch plan.Action {
	case ActionCreate:
		files, err = e.provider.ListFiles(ctx, settings.RepoPath, plan.ToCommit)
		if err != nil {
			err = fmt.Errorf("%w: list files at %s: %v", ErrDiffUnavailable, plan.ToCommit, err)
			e.fail(ctx, rec, err, sink)
			return MutationResult{}, err
		}

	case ActionIncrementalUpdate:
		delta, derr := e.diff.ComputeDelta(ctx, settings.RepoPath, plan.FromCommit, plan.ToCommit)
		if derr != nil {
			e.fail(ctx, rec, derr, sink)
			return MutationResult{}, derr
		}
		if delta.IsFullRebuild {
			// No previous commit after all: fall back to a full build.
			fullRebuild = true
			files, err = e.provider.ListFiles(ctx, settings.RepoPath, plan.ToCommit)
			if err != nil {
				err = fmt.Errorf("%w: list files at %s: %v", ErrDiffUnavailable, plan.ToCommit, err)
				e.fail(ctx, rec, err, sink)
				return MutationResult{}, err
			}
		} else if delta.Empty() {
			// The branch moved but touched no indexable files. Still advance
			// the recorded commit so the index is reported current.
			if err := e.succeed(ctx, rec, plan, 0, sink); err != nil {
				return MutationResult{}, err
			}
			return MutationResult{Success: true}, nil
		} else {
			files = delta.ChangedFiles
			deleted = delta.DeletedFiles
		}

	default:
		return MutationResult{}, fmt.Errorf("unknown action %q", plan.Action)
	}

	e.emit(sink, ProgressEvent{
		Type:    EventDiffComputed,
		Message: fmt.Sprintf("resolved %d changed and %d deleted files", len(files), len(deleted)),
		Metadata: mergeMeta(planMeta(plan), map[string]string{
			"changed_files": strconv.Itoa(len(files)),
			"deleted_files": strconv.Itoa(len(deleted)),
		}),
	})

	// Superseded chunks go first: a changed file may produce fewer chunks at
	// the new commit, and deterministic point ids only overwrite matching
	// ordinals. A full rebuild clears the whole branch for the same reason.
	if fullRebuild {
		if err := e.store.DeleteBranch(ctx, plan.ProjectID, plan.BranchName); err != nil {
			err = fmt.Errorf("%w: clear branch before rebuild: %v", ErrIndexWriteFailed, err)
			e.fail(ctx, rec, err, sink)
			return MutationResult{}, err
		}
	} else if purge := append(append([]string(nil), deleted...), files...); len(purge) > 0 {
		if err := e.store.DeleteFiles(ctx, plan.ProjectID, plan.BranchName, purge); err != nil {
			err = fmt.Errorf("%w: remove superseded chunks: %v", ErrIndexWriteFailed, err)
			e.fail(ctx, rec, err, sink)
			return MutationResult{}, err
		}
	}

	chunks, err := e.writeBatches(ctx, plan, settings, files, sink)
	if err != nil {
		e.fail(ctx, rec, err, sink)
		return MutationResult{}, err
	}

	if err := e.succeed(ctx, rec, plan, chunks, sink); err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Success: true, ChunksWritten: chunks}, nil
}

// writeBatches submits files to the store in bounded batches, honoring
// cancellation between batches.
func (e *Executor) writeBatches(ctx context.Context, plan Plan, settings ProjectSettings, files []string, sink EventSink) (int, error) {
	total := 0
	for start := 0; start < len(files); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: cancelled mid-write: %v", ErrIndexWriteFailed, err)
		}

		end := start + e.batchSize
		if end > len(files) {
			end = len(files)
		}

		written, err := e.store.UpsertChunks(ctx, vectorindex.UpsertRequest{
			ProjectID: plan.ProjectID,
			Repo:      settings.RepoPath,
			Branch:    plan.BranchName,
			Commit:    plan.ToCommit,
			Files:     files[start:end],
		})
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrIndexWriteFailed, err)
		}
		total += written

		e.emit(sink, ProgressEvent{
			Type:    EventBatchWritten,
			Message: fmt.Sprintf("wrote %d chunks for %d files", written, end-start),
			Metadata: mergeMeta(planMeta(plan), map[string]string{
				"chunks": strconv.Itoa(written),
			}),
		})
	}
	return total, nil
}

// runDelete removes the branch from the store and drops the registry record.
// Idempotent: a branch with neither chunks nor a record deletes successfully.
// Needs no repository access, so cleanup still works for a project whose repo
// path is gone.
func (e *Executor) runDelete(ctx context.Context, plan Plan, sink EventSink) (MutationResult, error) {
	rec, err := e.registry.Get(ctx, plan.ProjectID, plan.BranchName)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return MutationResult{}, fmt.Errorf("read registry: %w", err)
	}

	if found {
		rec, err = e.markIndexingRecord(ctx, rec)
		if err != nil {
			return MutationResult{}, err
		}
	}

	if err := e.store.DeleteBranch(ctx, plan.ProjectID, plan.BranchName); err != nil {
		err = fmt.Errorf("%w: delete branch points: %v", ErrIndexWriteFailed, err)
		if found {
			e.fail(ctx, rec, err, sink)
		}
		return MutationResult{}, err
	}

	if err := e.registry.Delete(ctx, plan.ProjectID, plan.BranchName); err != nil {
		return MutationResult{}, fmt.Errorf("delete registry record: %w", err)
	}

	e.emit(sink, ProgressEvent{
		Type:     EventCompleted,
		Message:  fmt.Sprintf("branch %s removed from index", plan.BranchName),
		Metadata: planMeta(plan),
	})
	return MutationResult{Success: true}, nil
}

// markIndexing transitions the record (creating it on first index) to
// INDEXING via compare-and-set.
func (e *Executor) markIndexing(ctx context.Context, plan Plan) (Record, error) {
	rec, err := e.registry.Get(ctx, plan.ProjectID, plan.BranchName)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return Record{}, fmt.Errorf("read registry: %w", err)
		}
		rec = Record{
			ProjectID:  plan.ProjectID,
			BranchName: plan.BranchName,
			BaseBranch: plan.BaseBranch,
		}
	}
	return e.markIndexingRecord(ctx, rec)
}

func (e *Executor) markIndexingRecord(ctx context.Context, rec Record) (Record, error) {
	rec.ReadyState = StateIndexing
	rec.LastAttemptAt = time.Now().UTC()

	updated, err := e.registry.Upsert(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	return updated, nil
}

// succeed advances the record to READY at the plan's target commit.
func (e *Executor) succeed(ctx context.Context, rec Record, plan Plan, chunks int, sink EventSink) error {
	rec.ReadyState = StateReady
	rec.IndexedCommit = plan.ToCommit
	rec.LastSuccessAt = time.Now().UTC()
	rec.LastError = ""

	if _, err := e.registry.Upsert(ctx, rec); err != nil {
		return err
	}

	e.emit(sink, ProgressEvent{
		Type:    EventCompleted,
		Message: fmt.Sprintf("%s completed for branch %s at %s", plan.Action, plan.BranchName, plan.ToCommit),
		Metadata: mergeMeta(planMeta(plan), map[string]string{
			"chunks_written": strconv.Itoa(chunks),
		}),
	})
	return nil
}

// fail records the failure while preserving the previous indexed commit, so a
// branch that was READY at C1 still reports C1 as its last good state. The
// registry write uses a detached context: a cancelled mutation must still end
// as FAILED, never as a stuck INDEXING.
func (e *Executor) fail(ctx context.Context, rec Record, cause error, sink EventSink) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	rec.ReadyState = StateFailed
	rec.LastError = cause.Error()

	if _, err := e.registry.Upsert(wctx, rec); err != nil {
		e.logger.Error("record mutation failure",
			slog.String("project_id", rec.ProjectID.String()),
			slog.String("branch", rec.BranchName),
			slog.String("error", err.Error()))
	}

	e.emit(sink, ProgressEvent{
		Type:    EventFailed,
		Message: cause.Error(),
		Metadata: map[string]string{
			"project_id": rec.ProjectID.String(),
			"branch":     rec.BranchName,
		},
	})
}

// emit delivers an event, swallowing sink errors and panics: event delivery
// must never turn a working mutation into a failed one.
func (e *Executor) emit(sink EventSink, ev ProgressEvent) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("event sink panicked", slog.Any("panic", r))
		}
	}()
	if err := sink.Publish(ev); err != nil {
		e.logger.Debug("event sink rejected event",
			slog.String("type", string(ev.Type)),
			slog.String("error", err.Error()))
	}
}

func planMeta(plan Plan) map[string]string {
	meta := map[string]string{
		"project_id": plan.ProjectID.String(),
		"branch":     plan.BranchName,
		"action":     string(plan.Action),
	}
	if plan.FromCommit != "" {
		meta["from_commit"] = plan.FromCommit
	}
	if plan.ToCommit != "" {
		meta["to_commit"] = plan.ToCommit
	}
	return meta
}

func mergeMeta(base, extra map[string]string) map[string]string {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
