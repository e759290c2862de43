package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rostilos/CodeCrow-sub011/internal/store"
	"github.com/rostilos/CodeCrow-sub011/internal/store/postgres"
	"github.com/rostilos/CodeCrow-sub011/pkg/apierr"
)

type ProjectHandler struct {
	logger *slog.Logger
	store  *store.Store
}

func NewProjectHandler(logger *slog.Logger, s *store.Store) *ProjectHandler {
	return &ProjectHandler{logger: logger, store: s}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	projects, err := h.store.ListProjects(r.Context(), int32(limit), int32(offset))
	if err != nil {
		writeAPIError(w, h.logger, apierr.ProjectListFailed(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"projects": projects,
	})
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidProjectID())
		return
	}

	project, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, h.logger, apierr.ProjectNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.InternalError(err))
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name               string `json:"name"`
		Slug               string `json:"slug"`
		RepoPath           string `json:"repo_path"`
		BaseBranch         string `json:"base_branch"`
		RAGEnabled         *bool  `json:"rag_enabled"`
		MultiBranchEnabled bool   `json:"multi_branch_enabled"`
		BranchPushPattern  string `json:"branch_push_pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	if err := validateSlug(req.Slug); err != nil {
		writeAPIError(w, h.logger, err)
		return
	}
	if err := validateName(req.Name); err != nil {
		writeAPIError(w, h.logger, err)
		return
	}

	baseBranch := req.BaseBranch
	if baseBranch == "" {
		baseBranch = "main"
	}
	ragEnabled := true
	if req.RAGEnabled != nil {
		ragEnabled = *req.RAGEnabled
	}

	project, err := h.store.CreateProject(r.Context(), postgres.CreateProjectParams{
		Name:               req.Name,
		Slug:               req.Slug,
		RepoPath:           req.RepoPath,
		BaseBranch:         baseBranch,
		RAGEnabled:         ragEnabled,
		MultiBranchEnabled: req.MultiBranchEnabled,
		BranchPushPattern:  req.BranchPushPattern,
		WebhookToken:       uuid.NewString(),
	})
	if err != nil {
		writeAPIError(w, h.logger, apierr.ProjectCreateFailed(err))
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidProjectID())
		return
	}

	var req struct {
		BaseBranch         *string `json:"base_branch"`
		RAGEnabled         *bool   `json:"rag_enabled"`
		MultiBranchEnabled *bool   `json:"multi_branch_enabled"`
		BranchPushPattern  *string `json:"branch_push_pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRequestBody())
		return
	}

	current, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, h.logger, apierr.ProjectNotFound())
			return
		}
		writeAPIError(w, h.logger, apierr.InternalError(err))
		return
	}

	params := postgres.UpdateProjectSettingsParams{
		ID:                 projectID,
		BaseBranch:         current.BaseBranch,
		RAGEnabled:         current.RAGEnabled,
		MultiBranchEnabled: current.MultiBranchEnabled,
		BranchPushPattern:  current.BranchPushPattern,
	}
	if req.BaseBranch != nil {
		params.BaseBranch = *req.BaseBranch
	}
	if req.RAGEnabled != nil {
		params.RAGEnabled = *req.RAGEnabled
	}
	if req.MultiBranchEnabled != nil {
		params.MultiBranchEnabled = *req.MultiBranchEnabled
	}
	if req.BranchPushPattern != nil {
		params.BranchPushPattern = *req.BranchPushPattern
	}

	project, err := h.store.UpdateProjectSettings(r.Context(), params)
	if err != nil {
		writeAPIError(w, h.logger, apierr.InternalError(err))
		return
	}

	writeJSON(w, http.StatusOK, project)
}
