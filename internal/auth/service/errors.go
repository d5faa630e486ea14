package service

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrInvalidRole      = errors.New("invalid role")
	ErrMissingAttribute = errors.New("missing attributes")
	ErrMFANotEnrolled   = errors.New("no mfa authenticator enrolled")
	ErrInvalidToken     = errors.New("invalid registration token")
	ErrInvalidPhone     = errors.New("phone number is not E.164")
)

// Failure classes. Callers test with errors.Is to pick a response code;
// the wrapped cause stays available for logging.
var (
	ErrDatabase = errors.New("database error")
	ErrIDP      = errors.New("identity provider error")
	ErrSigning  = errors.New("signing error")
)
