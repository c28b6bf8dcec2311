// Package httpx holds the JSON error envelope shared by every handler and
// middleware. All failures leaving this service have the shape
// {"error":{"message","code","details"?}} so clients can switch on code alone.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Error codes. TASK_NOT_FOUND deliberately covers both "does not exist" and
// "exists but belongs to someone else" so task IDs cannot be enumerated
// across users.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeAuthFailed         = "AUTH_FAILED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeForbidden          = "FORBIDDEN"
	CodeTaskNotFound       = "TASK_NOT_FOUND"
	CodeNotFound           = "NOT_FOUND"
	CodeDuplicate          = "DUPLICATE_ERROR"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeServerError        = "SERVER_ERROR"
)

type ErrorBody struct {
	Message string   `json:"message"`
	Code    string   `json:"code"`
	Details []string `json:"details,omitempty"`
}

type errResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON serializes v with the given status. Encoding errors are ignored:
// by the time Encode fails the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string, details ...string) {
	WriteJSON(w, status, errResponse{Error: ErrorBody{
		Message: message,
		Code:    code,
		Details: details,
	}})
}

// NotFoundHandler serves the envelope for unknown routes.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, CodeNotFound, "Route not found")
	}
}
