package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInvalidProjectID   Code = "INVALID_PROJECT_ID"
	CodeInternalError      Code = "INTERNAL_ERROR"
)

// Project errors.
const (
	CodeProjectNotFound     Code = "PROJECT_NOT_FOUND"
	CodeProjectCreateFailed Code = "PROJECT_CREATE_FAILED"
	CodeProjectListFailed   Code = "PROJECT_LIST_FAILED"
)

// Branch index errors.
const (
	CodeBranchRequired          Code = "BRANCH_REQUIRED"
	CodeBranchIndexNotFound     Code = "BRANCH_INDEX_NOT_FOUND"
	CodeBranchIndexListFailed   Code = "BRANCH_INDEX_LIST_FAILED"
	CodeDiffUnavailable         Code = "DIFF_UNAVAILABLE"
	CodeIndexWriteFailed        Code = "INDEX_WRITE_FAILED"
	CodeConcurrentModification  Code = "CONCURRENT_MODIFICATION"
	CodeIndexMutationInProgress Code = "INDEX_MUTATION_IN_PROGRESS"
	CodeConfigurationError      Code = "CONFIGURATION_ERROR"
	CodeEnqueueFailed           Code = "ENQUEUE_FAILED"
)

// Validation errors.
const (
	CodeSlugRequired Code = "SLUG_REQUIRED"
	CodeSlugInvalid  Code = "SLUG_INVALID"
	CodeNameRequired Code = "NAME_REQUIRED"
	CodeNameTooLong  Code = "NAME_TOO_LONG"
)

// Webhook errors.
const (
	CodeMissingAuthToken Code = "MISSING_AUTH_TOKEN"
	CodeInvalidAuthToken Code = "INVALID_AUTH_TOKEN"
)

// Health errors.
const (
	CodeDatabaseNotReady Code = "DATABASE_NOT_READY"
)
