package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/tutorbot/internal/domain"
)

// ErrorCode is the machine-readable error code of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeNotFound         ErrorCode = "not_found"
	CodeLimitReached     ErrorCode = "limit_reached"
	CodeInvalidReferral  ErrorCode = "invalid_referral"
	CodeInvalidUserID    ErrorCode = "invalid_user_id"
	CodeConflict         ErrorCode = "conflict"
	CodeStoreUnavailable ErrorCode = "store_unavailable"
	CodeCompletionFailed ErrorCode = "completion_failed"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// defaultErrorHandlers maps sentinels to statuses. Order matters: the first match wins.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrLimitReached, http.StatusTooManyRequests, CodeLimitReached),
		sentinelHandler(domain.ErrInvalidReferral, http.StatusBadRequest, CodeInvalidReferral),
		sentinelHandler(domain.ErrInvalidUserID, http.StatusBadRequest, CodeInvalidUserID),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, CodeConflict),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, CodeStoreUnavailable),
		sentinelHandler(domain.ErrCompletionFailed, http.StatusBadGateway, CodeCompletionFailed),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrLimitReached,
		domain.ErrInvalidReferral,
		domain.ErrInvalidUserID,
		domain.ErrConflict,
		domain.ErrStoreUnavailable,
		domain.ErrCompletionFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
