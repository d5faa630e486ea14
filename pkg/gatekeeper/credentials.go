package gatekeeper

import (
	"net/http"
	"strings"
)

// CSRF header every guarded request must carry.
const (
	CSRFHeader = "X-Requested-With"
	CSRFValue  = "XMLHttpRequest"
)

// DefaultCookieNames are tried in order by FromCookie when given none.
var DefaultCookieNames = []string{"auth_token", "access_token"}

// CredentialSource pulls the raw token out of a request.
type CredentialSource interface {
	Extract(r *http.Request) (string, error)
}

type cookieSource struct {
	names []string
}

// FromCookie reads the token from the first present cookie among names.
func FromCookie(names ...string) CredentialSource {
	if len(names) == 0 {
		names = DefaultCookieNames
	}
	return cookieSource{names: names}
}

func (s cookieSource) Extract(r *http.Request) (string, error) {
	if len(r.Cookies()) == 0 {
		return "", newError(MissingCookies, "", nil)
	}
	for _, name := range s.names {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", newError(MissingAccessTokenCookie, "", nil)
}

type headerSource struct{}

// FromHeader reads the token from "Authorization: Bearer <token>".
func FromHeader() CredentialSource {
	return headerSource{}
}

func (headerSource) Extract(r *http.Request) (string, error) {
	if r.Header == nil {
		return "", newError(MissingHeaders, "", nil)
	}
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return "", newError(MissingAuthorizationHeader, "", nil)
	}
	scheme, token, ok := strings.Cut(authz, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", newError(MissingAccessTokenHeader, "", nil)
	}
	return token, nil
}

// BearerToken extracts a bearer token with the header source. Controllers
// use it for MFA and registration tokens, which never travel in cookies.
func BearerToken(r *http.Request) (string, error) {
	return headerSource{}.Extract(r)
}

func checkCSRF(r *http.Request) error {
	if r.Header == nil {
		return newError(MissingHeaders, "", nil)
	}
	values := r.Header.Values(CSRFHeader)
	if len(values) == 0 {
		return newError(MissingCSRFHeader, "", nil)
	}
	if values[0] != CSRFValue {
		return newError(InvalidCSRFHeader, "", nil)
	}
	return nil
}
