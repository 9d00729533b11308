// Package api provides HTTP API utilities including standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/veridex/listrank/internal/middleware"
)

// Error codes returned in API error bodies.
const (
	ErrCodeValidation  = "validation_error"
	ErrCodeAuthFailed  = "auth_failed"
	ErrCodeNotFound    = "not_found"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeInternal    = "internal_error"
	ErrCodeForbidden   = "forbidden"
	ErrCodeConflict    = "conflict"
	ErrCodeBadRequest  = "bad_request"

	// Domain validation failures.
	ErrCodeInvalidPercent     = "invalid_percent"      // correction percent outside -100..100
	ErrCodeInvalidSort        = "invalid_sort"         // unsupported search sort mode
	ErrCodeInvalidWindow      = "invalid_window"       // non-positive history window
	ErrCodeInvalidSubjectType = "invalid_subject_type" // score subject neither operator nor listing

	ErrCodeOperatorNotFound = "operator_not_found"
	ErrCodeListingNotFound  = "listing_not_found"
)

// ErrorResponse is the envelope every API error uses:
// {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the standard JSON error body with the given status.
// Pass a context that already went through middleware.SetErrorCode so the
// access log line carries the code:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeOperatorNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeOperatorNotFound, "Operator not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	// Propagate the updated context to the logging middleware's writer.
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

// StatusCodeMapping returns the HTTP status a given error code maps to.
// Unknown codes map to 500 so a missed case never downgrades an error.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest,
		ErrCodeInvalidPercent, ErrCodeInvalidSort, ErrCodeInvalidWindow, ErrCodeInvalidSubjectType:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeOperatorNotFound, ErrCodeListingNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
