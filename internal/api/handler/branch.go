package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rostilos/CodeCrow-sub011/internal/branchindex"
	"github.com/rostilos/CodeCrow-sub011/internal/jobs"
	"github.com/rostilos/CodeCrow-sub011/internal/store"
	"github.com/rostilos/CodeCrow-sub011/pkg/apierr"
)

// IndexEnqueuer pushes index jobs onto the queue. Satisfied by *jobs.Producer.
type IndexEnqueuer interface {
	EnqueueIndex(ctx context.Context, job jobs.IndexJob) (string, error)
}

// RAGPolicy answers multi-branch retrieval questions. Satisfied by
// *branchindex.Policy.
type RAGPolicy interface {
	ShouldUseMultiBranchRAG(ctx context.Context, projectID uuid.UUID, targetBranch string) (branchindex.Decision, error)
	EnsureBranchIndexForPRTarget(ctx context.Context, projectID uuid.UUID, targetBranch string) (bool, error)
}

type BranchHandler struct {
	logger   *slog.Logger
	store    *store.Store
	registry branchindex.Registry
	producer IndexEnqueuer
	policy   RAGPolicy
}

func NewBranchHandler(logger *slog.Logger, s *store.Store, registry branchindex.Registry, producer IndexEnqueuer, policy RAGPolicy) *BranchHandler {
	return &BranchHandler{logger: logger, store: s, registry: registry, producer: producer, policy: policy}
}

// branchIndexResponse is the wire shape of a registry record.
type branchIndexResponse struct {
	ProjectID     uuid.UUID  `json:"project_id"`
	BranchName    string     `json:"branch_name"`
	BaseBranch    string     `json:"base_branch,omitempty"`
	IndexedCommit string     `json:"indexed_commit,omitempty"`
	ReadyState    string     `json:"ready_state"`
	LastAttemptAt time.Time  `json:"last_attempt_at"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

func toBranchIndexResponse(rec branchindex.Record) branchIndexResponse {
	resp := branchIndexResponse{
		ProjectID:     rec.ProjectID,
		BranchName:    rec.BranchName,
		BaseBranch:    rec.BaseBranch,
		IndexedCommit: rec.IndexedCommit,
		ReadyState:    string(rec.ReadyState),
		LastAttemptAt: rec.LastAttemptAt,
		LastError:     rec.LastError,
	}
	if !rec.LastSuccessAt.IsZero() {
		t := rec.LastSuccessAt
		resp.LastSuccessAt = &t
	}
	return resp
}

// List returns every tracked branch index for a project.
func (h *BranchHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidProjectID())
		return
	}

	rows, err := h.store.ListBranchIndexes(r.Context(), projectID)
	if err != nil {
		writeAPIError(w, h.logger, apierr.BranchIndexListFailed(err))
		return
	}

	indexes := make([]branchIndexResponse, 0, len(rows))
	for _, row := range rows {
		resp := branchIndexResponse{
			ProjectID:     row.ProjectID,
			BranchName:    row.BranchName,
			BaseBranch:    row.BaseBranch,
			IndexedCommit: row.IndexedCommit,
			ReadyState:    row.ReadyState,
			LastAttemptAt: row.LastAttemptAt,
			LastSuccessAt: row.LastSuccessAt,
			LastError:     row.LastError,
		}
		indexes = append(indexes, resp)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"branch_indexes": indexes,
	})
}

// Get returns the index record for one branch. The branch name rides in the
// 'branch' query parameter because branch names contain slashes.
func (h *BranchHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidProjectID())
		return
	}
	branch := r.URL.Query().Get("branch")
	if branch == "" {
		writeAPIError(w, h.logger, apierr.BranchRequired())
		return
	}

	rec, err := h.registry.Get(r.Context(), projectID, branch)
	if err != nil {
		writeAPIError(w, h.logger, apierr.FromCore(err))
		return
	}

	writeJSON(w, http.StatusOK, toBranchIndexResponse(rec))
}

// Reindex enqueues a build for one branch. The worker decides between create
// and incremental update against the registry.
func (h *BranchHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidProjectID())
		return
	}

	var req struct {
		Branch string `json:"branch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}
	if req.Branch == "" {
		writeAPIError(w, h.logger, apierr.BranchRequired())
		return
	}

	id, err := h.producer.EnqueueIndex(r.Context(), jobs.IndexJob{
		ProjectID:  projectID,
		BranchName: req.Branch,
		Trigger:    "manual",
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.EnqueueFailed(err))
		return
	}

	h.logger.Info("manual reindex enqueued",
		slog.String("project_id", projectID.String()),
		slog.String("branch", req.Branch),
		slog.String("job_id", id))

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "enqueued",
		"job_id": id,
	})
}

// Delete enqueues removal of one branch's index.
func (h *BranchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidProjectID())
		return
	}
	branch := r.URL.Query().Get("branch")
	if branch == "" {
		writeAPIError(w, h.logger, apierr.BranchRequired())
		return
	}

	id, err := h.producer.EnqueueIndex(r.Context(), jobs.IndexJob{
		ProjectID:  projectID,
		BranchName: branch,
		Trigger:    "manual",
		Action:     "delete",
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.EnqueueFailed(err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "enqueued",
		"job_id": id,
	})
}

// RAGPolicy reports whether multi-branch retrieval applies for a PR target.
func (h *BranchHandler) RAGPolicy(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidProjectID())
		return
	}
	target := r.URL.Query().Get("target")
	if target == "" {
		writeAPIError(w, h.logger, apierr.BranchRequired())
		return
	}

	decision, err := h.policy.ShouldUseMultiBranchRAG(r.Context(), projectID, target)
	if err != nil {
		writeAPIError(w, h.logger, apierr.FromCore(err))
		return
	}

	writeJSON(w, http.StatusOK, decision)
}
