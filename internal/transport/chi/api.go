package chi

import (
	dombatch "github.com/kailas-cloud/tagsearch/internal/domain/batch"
	domtag "github.com/kailas-cloud/tagsearch/internal/domain/tag"
)

// ErrorCode is the machine-readable error kind in ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeValidationFailed   ErrorCode = "validation_failed"
	ErrorCodeBackendUnavailable ErrorCode = "backend_unavailable"
	ErrorCodeBackendQueryError  ErrorCode = "backend_query_error"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// RecognizeResponse is the body of GET /api/v1/tags/recognize.
type RecognizeResponse struct {
	Query string              `json:"q"`
	Tags  []domtag.Recognized `json:"tags"`
}

// TypeaheadResponse is the body of GET /api/v1/products/typeahead.
type TypeaheadResponse struct {
	Query       string   `json:"q"`
	Suggestions []string `json:"suggestions"`
}

// IndexResponse is the body of the tag indexing and product loading endpoints.
type IndexResponse struct {
	dombatch.Outcome
	Items []BatchResultItem `json:"items,omitempty"`
}

// BatchResultItem is the per-item status of a product batch.
type BatchResultItem struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
