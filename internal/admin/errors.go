package admin

import (
	"encoding/json"
	"net/http"
)

// Standard error codes for API responses.
const (
	// ErrCodeInvalidRequest indicates a malformed request body.
	ErrCodeInvalidRequest = "invalid_request"

	// ErrCodeInvalidCredentials indicates a failed login. The message
	// stays generic so usernames cannot be probed.
	ErrCodeInvalidCredentials = "invalid_credentials"

	// ErrCodeNotAuthenticated indicates a missing or expired session.
	ErrCodeNotAuthenticated = "not_authenticated"

	// ErrCodeForbidden indicates a live session with an insufficient role.
	ErrCodeForbidden = "forbidden"

	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeInternalError indicates a server error.
	ErrCodeInternalError = "internal_error"
)

// APIError is the standard error response format for JSON APIs.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response with the given status code,
// error code and message. Internal detail belongs in the log, not here.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Response already started, nothing we can do
	json.NewEncoder(w).Encode(APIError{Error: code, Message: message})
}

// WriteJSON writes a JSON success response.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Response already started, nothing we can do
	json.NewEncoder(w).Encode(payload)
}
