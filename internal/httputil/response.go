package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"pollpick/internal/model"
)

// Error codes returned in the error envelope
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResultResponse wraps the payload of a named function call.
type ResultResponse struct {
	Result any `json:"result"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Warn("failed to encode response", "error", err)
		}
	}
}

// WriteResult writes {"result": data} with 200.
func WriteResult(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, ResultResponse{Result: data})
}

// WriteError writes an error response matching API spec format:
// {"error": {"code": "ERROR_CODE", "message": "Human readable message"}}
func WriteError(w http.ResponseWriter, status int, code string, message string) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// WriteServiceError maps a service error to a status by its category.
// Uncategorized errors are logged and answered with a generic message.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var domain *model.Error
	message := err.Error()
	if errors.As(err, &domain) {
		message = domain.Message
	}

	switch {
	case errors.Is(err, model.ErrStorageUnavailable):
		WriteError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
	case errors.Is(err, model.ErrUnauthenticated):
		WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
	case errors.Is(err, model.ErrInvalidArgument):
		WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
	case errors.Is(err, model.ErrPermissionDenied):
		WriteError(w, http.StatusForbidden, ErrCodeForbidden, message)
	case errors.Is(err, model.ErrNotFound):
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
	case errors.Is(err, model.ErrDuplicate):
		WriteError(w, http.StatusConflict, ErrCodeConflict, message)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		WriteInternalError(w, "Something went wrong")
	}
}

// Common error response helpers

// WriteBadRequest writes a 400 Bad Request error
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// WriteBadRequestWithCode writes a 400 Bad Request error with a custom code
func WriteBadRequestWithCode(w http.ResponseWriter, code string, message string) {
	WriteError(w, http.StatusBadRequest, code, message)
}

// WriteUnauthorized writes a 401 Unauthorized error
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// WriteUnauthorizedWithCode writes a 401 Unauthorized error with a custom code
func WriteUnauthorizedWithCode(w http.ResponseWriter, code string, message string) {
	WriteError(w, http.StatusUnauthorized, code, message)
}

// WriteNotFound writes a 404 Not Found error
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// WriteInternalError writes a 500 Internal Server Error
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}
