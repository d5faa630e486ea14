package idm_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Path-Check/safeplaces-auth/pkg/idm"
	"github.com/Path-Check/safeplaces-auth/pkg/slogx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
	Form   map[string]string
}

// fakeIDM is a just-enough provider tenant. Tests register extra routes on
// Mux before the first call.
type fakeIDM struct {
	t   *testing.T
	Mux *http.ServeMux
	srv *httptest.Server

	mu    sync.Mutex
	calls []recordedCall

	Roles     []idm.Role
	UserRoles map[string][]idm.Role

	// Grant answers end-user grants on /oauth/token.
	Grant func(call recordedCall) (int, any)
}

type callKey struct{}

const fakeManagementSecret = "fake-management-signing-secret"

func newFakeIDM(t *testing.T) *fakeIDM {
	t.Helper()

	f := &fakeIDM{
		t:   t,
		Mux: http.NewServeMux(),
		Roles: []idm.Role{
			{ID: "r1", Name: "admin"},
			{ID: "r2", Name: "contact_tracer"},
			{ID: "r3", Name: "super_admin"},
		},
		UserRoles: map[string][]idm.Role{},
	}

	f.Mux.HandleFunc("POST /oauth/token", f.handleToken)
	f.Mux.HandleFunc("GET /api/v2/roles", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, f.Roles)
	})
	f.Mux.HandleFunc("GET /api/v2/users/{id}/roles", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		roles := f.UserRoles[r.PathValue("id")]
		if roles == nil {
			roles = []idm.Role{}
		}
		writeJSON(w, http.StatusOK, roles)
	})
	f.Mux.HandleFunc("DELETE /api/v2/users/{id}/roles", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	f.Mux.HandleFunc("POST /api/v2/users/{id}/roles", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	f.srv = httptest.NewServer(http.HandlerFunc(f.record))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIDM) handleToken(w http.ResponseWriter, r *http.Request) {
	call := r.Context().Value(callKey{}).(recordedCall)
	if call.Body["grant_type"] != "client_credentials" {
		if f.Grant == nil {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "unauthorized_client"})
			return
		}
		status, body := f.Grant(call)
		writeJSON(w, status, body)
		return
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}).SignedString([]byte(fakeManagementSecret))
	require.NoError(f.t, err)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": tok,
		"token_type":   "Bearer",
		"expires_in":   86400,
	})
}

func (f *fakeIDM) record(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	call := recordedCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Auth:   r.Header.Get("Authorization"),
	}
	if len(raw) > 0 {
		if r.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
			if form, err := parseForm(raw); err == nil {
				call.Form = form
			}
		} else {
			_ = json.Unmarshal(raw, &call.Body)
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	f.Mux.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callKey{}, call)))
}

// Calls returns recorded calls, skipping token and role table traffic.
func (f *fakeIDM) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.Path == "/oauth/token" && c.Body["grant_type"] == "client_credentials" {
			continue
		}
		if c.Path == "/api/v2/roles" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (f *fakeIDM) Count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

func (f *fakeIDM) Connector(t *testing.T) *idm.Connector {
	t.Helper()
	conn, err := idm.New(idm.Config{
		BaseURL:      f.srv.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		APIAudience:  "https://api.safeplaces.test",
		Realm:        "Username-Password-Authentication",
		Logger:       slogx.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	return conn
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseForm(raw []byte) (map[string]string, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for k := range values {
		out[k] = values.Get(k)
	}
	return out, nil
}

func callFrom(r *http.Request) recordedCall {
	return r.Context().Value(callKey{}).(recordedCall)
}
