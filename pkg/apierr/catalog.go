package apierr

import "net/http"

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InvalidProjectID() *Error {
	return New(CodeInvalidProjectID, http.StatusBadRequest, "Invalid project ID")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

// --- Project ---

func ProjectNotFound() *Error {
	return New(CodeProjectNotFound, http.StatusNotFound, "Project not found")
}

func ProjectCreateFailed(cause error) *Error {
	return Wrap(CodeProjectCreateFailed, http.StatusInternalServerError, "Failed to create project", cause)
}

func ProjectListFailed(cause error) *Error {
	return Wrap(CodeProjectListFailed, http.StatusInternalServerError, "Failed to list projects", cause)
}

// --- Branch index ---

func BranchRequired() *Error {
	return New(CodeBranchRequired, http.StatusBadRequest, "Branch name is required (query parameter 'branch')")
}

func BranchIndexNotFound() *Error {
	return New(CodeBranchIndexNotFound, http.StatusNotFound, "No index tracked for this branch")
}

func BranchIndexListFailed(cause error) *Error {
	return Wrap(CodeBranchIndexListFailed, http.StatusInternalServerError, "Failed to list branch indexes", cause)
}

func DiffUnavailable(cause error) *Error {
	return Wrap(CodeDiffUnavailable, http.StatusBadGateway, "Could not fetch diff from the VCS provider", cause)
}

func IndexWriteFailed(cause error) *Error {
	return Wrap(CodeIndexWriteFailed, http.StatusInternalServerError, "Vector index write failed", cause)
}

func ConcurrentModification() *Error {
	return New(CodeConcurrentModification, http.StatusConflict, "Branch index record changed underneath this operation; re-decide and retry")
}

func IndexMutationInProgress() *Error {
	return New(CodeIndexMutationInProgress, http.StatusConflict, "An index mutation is already in flight for this branch")
}

func ConfigurationError(cause error) *Error {
	return Wrap(CodeConfigurationError, http.StatusUnprocessableEntity, "Project indexing is misconfigured", cause)
}

func EnqueueFailed(cause error) *Error {
	return Wrap(CodeEnqueueFailed, http.StatusInternalServerError, "Failed to enqueue index job", cause)
}

// --- Validation ---

func SlugRequired() *Error {
	return New(CodeSlugRequired, http.StatusBadRequest, "Slug is required")
}

func SlugInvalid() *Error {
	return New(CodeSlugInvalid, http.StatusBadRequest, "Slug must be 3-63 chars, lowercase alphanumeric and hyphens, must start/end with alphanumeric")
}

func NameRequired() *Error {
	return New(CodeNameRequired, http.StatusBadRequest, "Name is required")
}

func NameTooLong() *Error {
	return New(CodeNameTooLong, http.StatusBadRequest, "Name must be 255 characters or fewer")
}

// --- Webhook ---

func MissingAuthToken() *Error {
	return New(CodeMissingAuthToken, http.StatusUnauthorized, "Missing X-Webhook-Token header")
}

func InvalidAuthToken() *Error {
	return New(CodeInvalidAuthToken, http.StatusUnauthorized, "Invalid webhook token")
}

// --- Health ---

func DatabaseNotReady() *Error {
	return New(CodeDatabaseNotReady, http.StatusServiceUnavailable, "Database not ready")
}
