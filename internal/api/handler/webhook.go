package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rostilos/CodeCrow-sub011/internal/branchindex"
	"github.com/rostilos/CodeCrow-sub011/internal/jobs"
	"github.com/rostilos/CodeCrow-sub011/pkg/apierr"
)

type WebhookHandler struct {
	logger   *slog.Logger
	settings branchindex.SettingsSource
	producer IndexEnqueuer
	policy   RAGPolicy
}

func NewWebhookHandler(logger *slog.Logger, settings branchindex.SettingsSource, producer IndexEnqueuer, policy RAGPolicy) *WebhookHandler {
	return &WebhookHandler{logger: logger, settings: settings, producer: producer, policy: policy}
}

// pushEvent is the payload VCS hosts post on branch activity.
type pushEvent struct {
	Event        string `json:"event"` // "push", "branch_deleted", "pr_opened"
	Branch       string `json:"branch"`
	TargetBranch string `json:"target_branch"` // pr_opened only
}

// Push handles POST /api/v1/webhooks/push/{projectID}. The per-project token
// rides in the X-Webhook-Token header.
func (h *WebhookHandler) Push(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidProjectID())
		return
	}

	token := r.Header.Get("X-Webhook-Token")
	if token == "" {
		writeAPIError(w, h.logger, apierr.MissingAuthToken())
		return
	}

	settings, err := h.settings.ProjectSettings(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, branchindex.ErrNotFound) {
			writeAPIError(w, h.logger, apierr.ProjectNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.InternalError(err))
		return
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(settings.WebhookToken)) != 1 {
		writeAPIError(w, h.logger, apierr.InvalidAuthToken())
		return
	}

	var ev pushEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	switch ev.Event {
	case "push":
		h.handlePush(w, r, projectID, settings, ev)
	case "branch_deleted":
		h.handleBranchDeleted(w, r, projectID, ev)
	case "pr_opened":
		h.handlePROpened(w, r, projectID, ev)
	default:
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
	}
}

func (h *WebhookHandler) handlePush(w http.ResponseWriter, r *http.Request, projectID uuid.UUID, settings branchindex.ProjectSettings, ev pushEvent) {
	if ev.Branch == "" {
		writeAPIError(w, h.logger, apierr.BranchRequired())
		return
	}
	if !settings.RAGEnabled {
		writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "rag_disabled"})
		return
	}

	isBase := ev.Branch == settings.BaseBranch
	if !isBase {
		if !settings.MultiBranchEnabled {
			writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "multi_branch_disabled"})
			return
		}
		if !pushPatternMatches(settings.BranchPushPattern, ev.Branch) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": "branch_not_matched"})
			return
		}
	}

	id, err := h.producer.EnqueueIndex(r.Context(), jobs.IndexJob{
		ProjectID:  projectID,
		BranchName: ev.Branch,
		Trigger:    "webhook",
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.EnqueueFailed(err))
		return
	}

	h.logger.Info("push webhook enqueued",
		slog.String("project_id", projectID.String()),
		slog.String("branch", ev.Branch),
		slog.String("job_id", id))

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "enqueued", "job_id": id})
}

func (h *WebhookHandler) handleBranchDeleted(w http.ResponseWriter, r *http.Request, projectID uuid.UUID, ev pushEvent) {
	if ev.Branch == "" {
		writeAPIError(w, h.logger, apierr.BranchRequired())
		return
	}

	id, err := h.producer.EnqueueIndex(r.Context(), jobs.IndexJob{
		ProjectID:  projectID,
		BranchName: ev.Branch,
		Trigger:    "webhook",
		Action:     "delete",
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.EnqueueFailed(err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "enqueued", "job_id": id})
}

func (h *WebhookHandler) handlePROpened(w http.ResponseWriter, r *http.Request, projectID uuid.UUID, ev pushEvent) {
	target := ev.TargetBranch
	if target == "" {
		writeAPIError(w, h.logger, apierr.BranchRequired())
		return
	}

	ready, err := h.policy.EnsureBranchIndexForPRTarget(r.Context(), projectID, target)
	if err != nil {
		writeAPIError(w, h.logger, apierr.FromCore(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"target_branch": target,
		"index_ready":   ready,
	})
}

func pushPatternMatches(pattern, branch string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, branch)
	return err == nil && ok
}
