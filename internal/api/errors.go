// Package api provides the HTTP handlers of the place review service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/placereviews/internal/detail"
	"github.com/onnwee/placereviews/internal/middleware"
	"github.com/onnwee/placereviews/internal/review"
	"github.com/onnwee/placereviews/internal/vote"
)

// Error codes returned in the error envelope.
const (
	ErrCodeValidation   = "validation_error"
	ErrCodeAuthRequired = "auth_required"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeUpstream     = "upstream_error"
	ErrCodeWriteFailed  = "write_failed"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeInternal     = "internal_error"
)

// ErrorResponse is the error envelope: {"error": {"code": "...", "message": "..."}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a message for the user.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes the error envelope with status and records code for the
// request log.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	ctx = middleware.SetErrorCode(ctx, code)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
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

// StatusCodeMapping returns the HTTP status used for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeAuthRequired:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUpstream, ErrCodeWriteFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// classify maps a domain error to an error code and user-facing message.
func classify(err error) (code, message string) {
	var voteWrite *vote.WriteError
	var voteRead *vote.ReadError
	var commentWrite *detail.WriteError

	switch {
	case errors.Is(err, vote.ErrUnauthenticated), errors.Is(err, detail.ErrUnauthenticated):
		return ErrCodeAuthRequired, err.Error()
	case errors.Is(err, vote.ErrVoteInFlight):
		return ErrCodeConflict, err.Error()
	case errors.Is(err, vote.ErrInvalidReaction),
		errors.Is(err, detail.ErrEmptyComment),
		errors.Is(err, detail.ErrCommentTooLong):
		return ErrCodeValidation, err.Error()
	case errors.Is(err, review.ErrReviewNotFound):
		return ErrCodeNotFound, "review not found"
	case errors.As(err, &voteWrite):
		return ErrCodeWriteFailed, "your vote could not be saved, please try again"
	case errors.As(err, &commentWrite):
		return ErrCodeWriteFailed, "your comment could not be posted, please try again"
	case errors.As(err, &voteRead):
		return ErrCodeUpstream, "your current vote could not be read, please try again"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeUpstream, "the request timed out"
	default:
		return ErrCodeUpstream, "reviews are unavailable right now, please try again"
	}
}

// writeDomainError maps err onto the error envelope and logs server-side failures.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := classify(err)
	status := StatusCodeMapping(code)
	if status >= 500 {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
	WriteError(w, r.Context(), status, code, message)
}

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// decodeJSON decodes a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
