package httpx

import (
	"encoding/json"
	"io"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// APIError is the error body every endpoint speaks.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	ErrorCode  string `json:"errorCode,omitempty"`
}

// Error codes shared by the user-management endpoints.
const (
	CodeUserExists       = "user_exists"
	CodeInexistentUser   = "inexistent_user"
	CodeDatabaseError    = "database_error"
	CodeIDPError         = "idp_error"
	CodeTooManyRequests  = "too_many_requests"
	CodeMissingAttribute = "missing_attributes"
	CodeInvalidRequest   = "invalid_request"
)

// WriteError writes an APIError whose error field is the status text.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, APIError{
		StatusCode: status,
		Error:      http.StatusText(status),
		Message:    message,
		ErrorCode:  code,
	})
}

// DecodeJSON reads a JSON request body (capped at 1 MiB) into v.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return io.EOF
	}
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

const maxBodySize = 1 << 20
