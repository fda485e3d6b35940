package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/storepilot/storepilot/internal/domain"
	"github.com/storepilot/storepilot/internal/usecase"
)

// ErrorBody is the structured error envelope every failure response carries.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the structured error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeResponse(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", message)
}

// writeMappedError maps the domain error taxonomy onto HTTP statuses and
// stable error codes. An invalid transition reaching this point indicates a
// bug, so it is logged at error level and surfaced as a plain 500.
func writeMappedError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
	case errors.Is(err, usecase.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", "you do not have access to this store")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, domain.ErrDuplicateStore):
		WriteError(w, http.StatusConflict, "DUPLICATE_STORE", "a store with this name already exists")
	case errors.Is(err, domain.ErrDuplicateUser):
		WriteError(w, http.StatusConflict, "DUPLICATE_EMAIL", "this email is already registered")
	case errors.Is(err, domain.ErrQuotaExceeded):
		WriteError(w, http.StatusForbidden, "QUOTA_EXCEEDED", "active store limit reached")
	case errors.Is(err, domain.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "store created too recently, try again later")
	case errors.Is(err, domain.ErrUnsupportedEngine):
		WriteError(w, http.StatusBadRequest, "UNSUPPORTED_ENGINE", "unsupported store engine")
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, domain.ErrConflictingOperation):
		WriteError(w, http.StatusConflict, "CONFLICTING_OPERATION", err.Error())
	case errors.Is(err, domain.ErrDependencyUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE", "a required dependency is unavailable")
	case errors.Is(err, domain.ErrInvalidTransition):
		logger.Error("invalid transition surfaced to API layer", "error", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	default:
		logger.Error("unhandled error in API layer", "error", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
