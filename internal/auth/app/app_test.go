package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Path-Check/safeplaces-auth/internal/auth/domain"
	"github.com/Path-Check/safeplaces-auth/internal/auth/store/drivers/sqlite"
	"github.com/Path-Check/safeplaces-auth/pkg/gatekeeper"
	"github.com/Path-Check/safeplaces-auth/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "app-test-jwt-secret"
	testAudience  = "https://api.safeplaces.test"
	testNamespace = "https://safeplaces.test"
	adminIDMID    = "auth0|admin"
	tracerIDMID   = "auth0|tracer"
)

// tenant is a minimal provider: client credentials, password logins for
// two known users, the role list and user reads.
type tenant struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	deleted []string
}

func newTenant(t *testing.T) *tenant {
	t.Helper()
	tn := &tenant{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", tn.handleToken)
	mux.HandleFunc("GET /api/v2/roles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]string{
			{"id": "r1", "name": domain.RoleAdmin},
			{"id": "r2", "name": domain.RoleContactTracer},
			{"id": "r3", "name": domain.RoleSuperAdmin},
		})
	})
	mux.HandleFunc("GET /api/v2/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"user_id": adminIDMID, "email": "admin@example.org", "email_verified": true},
			{"user_id": tracerIDMID, "email": "tracer@example.org", "email_verified": true},
			{"user_id": "auth0|orphan", "email": "orphan@example.org"},
		})
	})
	mux.HandleFunc("GET /api/v2/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		email := map[string]string{adminIDMID: "admin@example.org", tracerIDMID: "tracer@example.org"}[id]
		if email == "" {
			writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "error": "Not Found", "errorCode": "inexistent_user"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user_id": id, "email": email, "email_verified": true})
	})
	mux.HandleFunc("GET /api/v2/users/{id}/roles", func(w http.ResponseWriter, r *http.Request) {
		role := map[string]string{"id": "r2", "name": domain.RoleContactTracer}
		if r.PathValue("id") == adminIDMID {
			role = map[string]string{"id": "r1", "name": domain.RoleAdmin}
		}
		writeJSON(w, http.StatusOK, []map[string]string{role})
	})
	mux.HandleFunc("DELETE /api/v2/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		tn.mu.Lock()
		tn.deleted = append(tn.deleted, r.PathValue("id"))
		tn.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	tn.srv = httptest.NewServer(mux)
	t.Cleanup(tn.srv.Close)
	return tn
}

func (tn *tenant) handleToken(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		}).SignedString([]byte("management"))
		require.NoError(tn.t, err)
		writeJSON(w, http.StatusOK, map[string]any{"access_token": tok, "token_type": "Bearer", "expires_in": 86400})
		return
	}

	require.NoError(tn.t, r.ParseForm())
	switch r.PostForm.Get("username") {
	case "admin@example.org":
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": accessToken(tn.t, adminIDMID, testSecret, domain.RoleAdmin),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	case "mfa@example.org":
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":             "mfa_required",
			"error_description": "Multifactor authentication required",
			"mfa_token":         "mfa-token-1",
		})
	default:
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Wrong email or password.",
		})
	}
}

func (tn *tenant) Deleted() []string {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	return append([]string(nil), tn.deleted...)
}

func accessToken(t *testing.T, sub, secret string, roles ...string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                    sub,
		"aud":                    testAudience,
		"iat":                    time.Now().Add(-time.Minute).Unix(),
		"exp":                    time.Now().Add(time.Hour).Unix(),
		testNamespace + "/roles": roles,
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// seedDatabase writes the application users the tenant knows, plus one the
// tenant has never heard of.
func seedDatabase(t *testing.T, file string) map[string]string {
	t.Helper()
	st, err := sqlite.NewStore(file)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.ApplyMigrations())

	ids := map[string]string{}
	for idmID, email := range map[string]string{
		adminIDMID:    "admin@example.org",
		tracerIDMID:   "tracer@example.org",
		"auth0|ghost": "ghost@example.org",
	} {
		id := idx.New().String()
		require.NoError(t, st.Users().CreateUser(context.Background(), domain.User{
			ID: id, IDMID: idmID, Username: email, OrganizationID: "org-1",
		}))
		ids[idmID] = id
	}
	return ids
}

func newTestApp(t *testing.T, destructive bool) (*httptest.Server, *tenant, map[string]string) {
	t.Helper()

	tn := newTenant(t)
	dbFile := filepath.Join(t.TempDir(), "auth.db")
	ids := seedDatabase(t, dbFile)

	application, err := New(Config{
		Env:                     "test",
		LogLevel:                "error",
		LogFormat:               "text",
		Port:                    8080,
		ShutdownGracePeriod:     time.Second,
		DatabaseFile:            dbFile,
		IDMBaseURL:              tn.srv.URL,
		IDMClientID:             "client",
		IDMClientSecret:         "secret",
		IDMAPIAudience:          testAudience,
		IDMRealm:                "Username-Password-Authentication",
		Strategy:                StrategySymmetric,
		JWTSecret:               testSecret,
		JWTAlgorithms:           []string{"HS256"},
		ClaimNamespace:          testNamespace,
		RegistrationRedirectURL: "https://app.safeplaces.test/register",
		ReconcileOnStart:        true,
		ForceProblemResolution:  destructive,
		HTTPClientTimeout:       5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		application.connector.Close()
		_ = application.db.Close()
	})

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)
	return srv, tn, ids
}

func do(t *testing.T, method, url, body string, header http.Header) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, rd)
	require.NoError(t, err)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func browser(token string) http.Header {
	h := http.Header{}
	h.Set("X-Requested-With", "XMLHttpRequest")
	if token != "" {
		h.Set("Cookie", "access_token="+token)
	}
	return h
}

func TestLoginAndEnforcedRoutes(t *testing.T) {
	srv, _, ids := newTestApp(t, false)

	t.Run("login sets the cookie and returns the database identity", func(t *testing.T) {
		resp, body := do(t, http.MethodPost, srv.URL+"/v1/login", `{"username":"admin@example.org","password":"pw"}`, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var got struct{ ID, Role string }
		require.NoError(t, json.Unmarshal(body, &got))
		require.Equal(t, ids[adminIDMID], got.ID)
		require.Equal(t, domain.RoleAdmin, got.Role)
		require.Contains(t, resp.Header.Get("Set-Cookie"), "access_token=ey")
	})

	t.Run("login with mfa enrolled", func(t *testing.T) {
		resp, body := do(t, http.MethodPost, srv.URL+"/v1/login", `{"username":"mfa@example.org","password":"pw"}`, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, string(body), `"mfa_token":"mfa-token-1"`)
		require.Contains(t, string(body), `"MFARequired"`)
	})

	t.Run("login with wrong password", func(t *testing.T) {
		resp, body := do(t, http.MethodPost, srv.URL+"/v1/login", `{"username":"nobody@example.org","password":"pw"}`, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, string(body), "InvalidCredentials")
	})

	t.Run("login without credentials", func(t *testing.T) {
		resp, _ := do(t, http.MethodPost, srv.URL+"/v1/login", `{"username":"admin@example.org"}`, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "cr/m", resp.Header.Get(gatekeeper.DefaultTagHeader))
	})

	admin := accessToken(t, adminIDMID, testSecret, domain.RoleAdmin)
	tracer := accessToken(t, tracerIDMID, testSecret, domain.RoleContactTracer)

	denials := []struct {
		name   string
		path   string
		header http.Header
		tag    string
	}{
		{"no csrf header", "/v1/me", http.Header{"Cookie": {"access_token=" + admin}}, "h/m.c"},
		{"wrong csrf header", "/v1/me", http.Header{"X-Requested-With": {"fetch"}, "Cookie": {"access_token=" + admin}}, "h/x.c"},
		{"no cookies", "/v1/me", browser(""), "c/m"},
		{"forged token", "/v1/me", browser(accessToken(t, adminIDMID, "not-the-secret", domain.RoleAdmin)), "j/wt"},
		{"unknown principal", "/v1/me", browser(accessToken(t, "auth0|stranger", testSecret)), "e/m.ug"},
		{"tracer on admin route", "/v1/users", browser(tracer), "e/f.au"},
	}
	for _, tt := range denials {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodGet, srv.URL+tt.path, "", tt.header)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
			require.Equal(t, tt.tag, resp.Header.Get(gatekeeper.DefaultTagHeader))
			require.NotContains(t, string(body), "jwtx", "internal errors never reach the client")
		})
	}

	t.Run("me", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/v1/me", "", browser(tracer))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var me struct{ ID, Username, Role string }
		require.NoError(t, json.Unmarshal(body, &me))
		require.Equal(t, ids[tracerIDMID], me.ID)
		require.Equal(t, "tracer@example.org", me.Username)
		require.Equal(t, domain.RoleContactTracer, me.Role)
	})

	t.Run("admin reads a user", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/v1/users/"+ids[tracerIDMID], "", browser(admin))
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var view struct{ ID, Email, Role string }
		require.NoError(t, json.Unmarshal(body, &view))
		require.Equal(t, ids[tracerIDMID], view.ID)
		require.Equal(t, "tracer@example.org", view.Email)
		require.Equal(t, domain.RoleContactTracer, view.Role)

		resp, body = do(t, http.MethodGet, srv.URL+"/v1/users/not-an-id", "", browser(admin))
		require.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))
		require.Contains(t, string(body), "inexistent_user")
	})

	t.Run("logout", func(t *testing.T) {
		resp, _ := do(t, http.MethodPost, srv.URL+"/v1/logout", "", nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		require.Contains(t, resp.Header.Get("Set-Cookie"), "access_token=deleted")
	})

	t.Run("health and metrics", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/readyz", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		require.Contains(t, string(body), `"idm":"ok"`)

		resp, body = do(t, http.MethodGet, srv.URL+"/metrics", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, string(body), `safeplaces_auth_gatekeeper_decisions_total{result="deny",tag="h/m.c"} 1`)
		require.Contains(t, string(body), `safeplaces_auth_idm_requests_total`)
	})
}

func TestStartupReconciliation(t *testing.T) {
	t.Run("report only", func(t *testing.T) {
		_, tn, _ := newTestApp(t, false)
		require.Empty(t, tn.Deleted())
	})

	t.Run("destructive", func(t *testing.T) {
		srv, tn, ids := newTestApp(t, true)
		require.Equal(t, []string{"auth0|orphan"}, tn.Deleted())

		// The database-only user is gone: its token no longer resolves.
		resp, _ := do(t, http.MethodGet, srv.URL+"/v1/me", "", browser(accessToken(t, "auth0|ghost", testSecret)))
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Equal(t, "e/m.ug", resp.Header.Get(gatekeeper.DefaultTagHeader))

		resp, _ = do(t, http.MethodGet, srv.URL+"/v1/me", "", browser(accessToken(t, tracerIDMID, testSecret)))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, ids[tracerIDMID])
	})
}

func TestNewFailsWhenTenantUnreachable(t *testing.T) {
	tn := newTenant(t)
	base := tn.srv.URL
	tn.srv.Close()

	_, err := New(Config{
		LogLevel:          "error",
		Port:              8080,
		DatabaseFile:      filepath.Join(t.TempDir(), "auth.db"),
		IDMBaseURL:        base,
		IDMClientID:       "client",
		IDMClientSecret:   "secret",
		IDMAPIAudience:    testAudience,
		IDMRealm:          "realm",
		Strategy:          StrategySymmetric,
		JWTSecret:         testSecret,
		JWTAlgorithms:     []string{"HS256"},
		HTTPClientTimeout: time.Second,
	})
	require.Error(t, err)
}
