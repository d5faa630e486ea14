package idm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConflict           = errors.New("idm: resource already exists")
	ErrTooManyRequests    = errors.New("idm: too many requests")
	ErrNotFound           = errors.New("idm: not found")
	ErrRoleNotFound       = errors.New("idm: role not found")
	ErrInvalidCredentials = errors.New("idm: invalid credentials")
	ErrBadTokenResponse   = errors.New("idm: access token missing or token type not Bearer")
)

// MFA failures the provider only reports through its error description.
var (
	ErrMFATokenExpired     = errors.New("idm: mfa token expired")
	ErrMFATokenMalformed   = errors.New("idm: mfa token malformed")
	ErrInvalidPhoneNumber  = errors.New("idm: invalid phone number")
	ErrInvalidBindingCode  = errors.New("idm: invalid binding code")
	ErrInvalidRecoveryCode = errors.New("idm: invalid recovery code")
)

var mfaDescriptions = map[string]error{
	"mfa_token is expired":         ErrMFATokenExpired,
	"Malformed mfa_token":          ErrMFATokenMalformed,
	"The phone number is invalid.": ErrInvalidPhoneNumber,
	"Invalid binding_code.":        ErrInvalidBindingCode,
	"MFA Authorization rejected.":  ErrInvalidRecoveryCode,
}

// Error is a non-2xx answer from the provider.
type Error struct {
	Op         string
	StatusCode int

	// Code is the short error ("invalid_grant", "Conflict"), ErrorCode the
	// provider's finer code when present ("auth0_idp_error").
	Code        string
	ErrorCode   string
	Description string

	// Body is the raw response, kept for diagnostics.
	Body []byte
}

func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("idm: %s: status %d: %s", e.Op, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("idm: %s: status %d", e.Op, e.StatusCode)
}

// Is maps status codes onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrTooManyRequests:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// MFARequiredError means the password was right but a second factor is due.
type MFARequiredError struct {
	MFAToken string
}

func (e *MFARequiredError) Error() string {
	return "idm: multifactor authentication required"
}

// parseError decodes either error shape the provider uses: the management
// API's {statusCode, error, message, errorCode} or the authentication API's
// {error, error_description}.
func parseError(op string, status int, body []byte) *Error {
	apiErr := &Error{Op: op, StatusCode: status, Body: body}

	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
		ErrorCode        string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		apiErr.Description = http.StatusText(status)
		return apiErr
	}

	apiErr.Code = payload.Error
	apiErr.ErrorCode = payload.ErrorCode
	apiErr.Description = payload.ErrorDescription
	if apiErr.Description == "" {
		apiErr.Description = payload.Message
	}
	return apiErr
}

// classifyMFA attaches the matching MFA sentinel to an MFA endpoint error.
func classifyMFA(err error) error {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if sentinel, ok := mfaDescriptions[apiErr.Description]; ok {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
