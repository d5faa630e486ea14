package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Path-Check/safeplaces-auth/internal/auth/service"
	"github.com/Path-Check/safeplaces-auth/pkg/gatekeeper"
	"github.com/Path-Check/safeplaces-auth/pkg/httpx"
	"github.com/Path-Check/safeplaces-auth/pkg/idm"
	"github.com/Path-Check/safeplaces-auth/pkg/slogx"
)

// writeNamedError writes an APIError whose error field is a stable name
// clients switch on, such as "MFARequired".
func writeNamedError(w http.ResponseWriter, status int, name, message string) {
	httpx.WriteJSON(w, status, httpx.APIError{
		StatusCode: status,
		Error:      name,
		Message:    message,
	})
}

// writeMissingBody answers a request without a usable JSON body and tags it
// the way the enforcer tags its own denials.
func writeMissingBody(w http.ResponseWriter, kind gatekeeper.Kind, message string) {
	w.Header().Set(gatekeeper.DefaultTagHeader, kind.Tag())
	writeNamedError(w, http.StatusBadRequest, kind.String(), message)
}

// writeServiceError maps a user-management error onto its response.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeInexistentUser, "User does not exist")
	case errors.Is(err, service.ErrUserExists):
		httpx.WriteError(w, http.StatusConflict, httpx.CodeUserExists, "User already exists")
	case errors.Is(err, service.ErrMissingAttribute):
		httpx.WriteError(w, http.StatusUnprocessableEntity, httpx.CodeMissingAttribute, "Missing required attributes")
	case errors.Is(err, service.ErrInvalidRole):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "Unknown role")
	case errors.Is(err, service.ErrInvalidToken):
		writeNamedError(w, http.StatusUnauthorized, "InvalidRegistrationToken", "Registration token is invalid or expired")
	case errors.Is(err, idm.ErrTooManyRequests):
		httpx.WriteError(w, http.StatusTooManyRequests, httpx.CodeTooManyRequests, "Too many requests, try again later")
	case errors.Is(err, service.ErrDatabase):
		logFailure(r, err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeDatabaseError, "Database error")
	case errors.Is(err, service.ErrIDP):
		logFailure(r, err)
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeIDPError, "Identity provider error")
	default:
		logFailure(r, err)
		writeNamedError(w, http.StatusInternalServerError, "InternalServerError", "An unexpected error occurred")
	}
}

// writeMFAError maps the provider's MFA failures; anything else falls
// through to writeServiceError.
func writeMFAError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, idm.ErrMFATokenExpired):
		writeNamedError(w, http.StatusUnauthorized, "MFATokenExpired", "The MFA token has expired, log in again")
	case errors.Is(err, idm.ErrMFATokenMalformed):
		writeNamedError(w, http.StatusBadRequest, "MFATokenMalformed", "The MFA token is malformed")
	case errors.Is(err, idm.ErrInvalidPhoneNumber), errors.Is(err, service.ErrInvalidPhone):
		writeNamedError(w, http.StatusBadRequest, "InvalidPhoneNumber", "Phone number must be in E.164 format")
	case errors.Is(err, idm.ErrInvalidBindingCode):
		writeNamedError(w, http.StatusForbidden, "InvalidBindingCode", "The verification code is invalid")
	case errors.Is(err, idm.ErrInvalidRecoveryCode):
		writeNamedError(w, http.StatusUnauthorized, "InvalidRecoveryCode", "The recovery code is invalid")
	case errors.Is(err, service.ErrMFANotEnrolled):
		writeNamedError(w, http.StatusNotFound, "MFANotEnrolled", "No SMS authenticator is enrolled")
	default:
		writeServiceError(w, r, err)
	}
}

func logFailure(r *http.Request, err error) {
	slogx.FromContext(r.Context()).Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
}
