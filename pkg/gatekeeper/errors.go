package gatekeeper

import (
	"errors"
	"fmt"
)

// Kind classifies why a request was denied.
type Kind int

const (
	KindUnknown Kind = iota
	MissingHeaders
	MissingCSRFHeader
	InvalidCSRFHeader
	MissingAuthorizationHeader
	MissingAccessTokenHeader
	MissingRequestBody
	MissingCredentials
	MissingCookies
	MissingAccessTokenCookie
	UserGetterFailure
	UserGetterNotFound
	AuthorizerFailure
	IDMFailure
	JSONWebKeySet
	JSONWebToken
)

// UnknownTag is reported for errors outside the registry.
const UnknownTag = "u/f"

var kindTags = map[Kind]string{
	MissingHeaders:             "h/m",
	MissingCSRFHeader:          "h/m.c",
	InvalidCSRFHeader:          "h/x.c",
	MissingAuthorizationHeader: "h/m.au",
	MissingAccessTokenHeader:   "h/m.at",
	MissingRequestBody:         "b/m",
	MissingCredentials:         "cr/m",
	MissingCookies:             "c/m",
	MissingAccessTokenCookie:   "c/m.at",
	UserGetterFailure:          "e/f.ug",
	UserGetterNotFound:         "e/m.ug",
	AuthorizerFailure:          "e/f.au",
	IDMFailure:                 "e/f.idm",
	JSONWebKeySet:              "j/wk",
	JSONWebToken:               "j/wt",
}

var kindNames = map[Kind]string{
	MissingHeaders:             "MissingHeaders",
	MissingCSRFHeader:          "MissingCSRFHeader",
	InvalidCSRFHeader:          "InvalidCSRFHeader",
	MissingAuthorizationHeader: "MissingAuthorizationHeader",
	MissingAccessTokenHeader:   "MissingAccessTokenHeader",
	MissingRequestBody:         "MissingRequestBody",
	MissingCredentials:         "MissingCredentials",
	MissingCookies:             "MissingCookies",
	MissingAccessTokenCookie:   "MissingAccessTokenCookie",
	UserGetterFailure:          "UserGetterFailure",
	UserGetterNotFound:         "UserGetterNotFound",
	AuthorizerFailure:          "AuthorizerFailure",
	IDMFailure:                 "IDMFailure",
	JSONWebKeySet:              "JSONWebKeySet",
	JSONWebToken:               "JSONWebToken",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Tag is the short code sent back to clients.
func (k Kind) Tag() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return UnknownTag
}

// Error is a denial with its classification and, when there is one, the
// underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("gatekeeper: %s: %v", msg, e.Err)
	}
	return "gatekeeper: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: K}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}

// Tag returns the client-facing tag for err, UnknownTag if it isn't ours.
func Tag(err error) string {
	return KindOf(err).Tag()
}
