// Package api provides the HTTP handlers of the ranking service and its
// standardized error responses.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/listrank/internal/bundle"
	"github.com/onnwee/listrank/internal/listing"
	"github.com/onnwee/listrank/internal/middleware"
	"github.com/onnwee/listrank/internal/ranking"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeMethodNotAllowed indicates an unsupported HTTP method.
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// ErrCodePayloadTooLarge indicates the request body exceeded its limit.
	ErrCodePayloadTooLarge = "payload_too_large"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// Model bundle errors.
	ErrCodeNoModelsAvailable = "no_models_available"
	ErrCodeModelNotFound     = "model_not_found"
	ErrCodeTooManyModels     = "too_many_models"
	ErrCodeInvalidModelName  = "invalid_model_name"
	ErrCodeMissingArtifact   = "missing_artifact"
	ErrCodeInvalidConfig     = "invalid_config"
	ErrCodeInvalidArtifact   = "invalid_artifact"

	// Middleware codes share the namespace.
	ErrCodeRateLimited = middleware.ErrCodeRateLimited
	ErrCodeAuthFailed  = middleware.ErrCodeAuthFailed
	ErrCodeForbidden   = middleware.ErrCodeForbidden
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
//
// The error code is picked up by the logging middleware for 4xx and 5xx
// responses when ctx carries it:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "Model not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// errorMapping pairs a domain sentinel with its error code; the status
// follows from StatusCodeMapping.
type errorMapping struct {
	target error
	code   string
}

// domainErrors is checked in order; the first errors.Is match wins.
var domainErrors = []errorMapping{
	{bundle.ErrNoModelsAvailable, ErrCodeNoModelsAvailable},
	{bundle.ErrBundleNotFound, ErrCodeModelNotFound},
	{bundle.ErrTooManyModels, ErrCodeTooManyModels},
	{bundle.ErrInvalidBundleName, ErrCodeInvalidModelName},
	{bundle.ErrMissingArtifact, ErrCodeMissingArtifact},
	{ranking.ErrInvalidConfig, ErrCodeInvalidConfig},
	{bundle.ErrInvalidArtifact, ErrCodeInvalidArtifact},
	{listing.ErrNegativeReviewCount, ErrCodeValidation},
	{listing.ErrRatingOutOfRange, ErrCodeValidation},
	{listing.ErrDuplicateID, ErrCodeValidation},
}

// ErrorStatus maps an error to its HTTP status and error code. Errors outside
// the domain taxonomy are internal failures.
func ErrorStatus(err error) (int, string) {
	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			return StatusCodeMapping(m.code), m.code
		}
	}
	return http.StatusInternalServerError, ErrCodeInternal
}

// writeDomainError writes err using ErrorStatus. The message carries the
// cause, including for internal failures.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := ErrorStatus(err)
	ctx := middleware.SetErrorCode(r.Context(), code)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", "error", err, "path", r.URL.Path)
	}
	WriteError(w, ctx, status, code, err.Error())
}

// writeMethodNotAllowed rejects a request whose method the handler does not serve.
func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	w.Header().Set("Allow", allowed)
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeMethodNotAllowed)
	WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status that goes with an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest,
		ErrCodeTooManyModels, ErrCodeInvalidModelName, ErrCodeMissingArtifact,
		ErrCodeInvalidConfig, ErrCodeInvalidArtifact:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeNoModelsAvailable, ErrCodeModelNotFound:
		return http.StatusNotFound
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
