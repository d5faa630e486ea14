package auth_test

import (
	"crypto/rsa"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	tenantClientID     = "e2e-client"
	tenantClientSecret = "e2e-client-secret"

	mfaToken     = "e2e-mfa-token"
	oobCode      = "e2e-oob-code"
	bindingCode  = "123456"
	recoveryCode = "E2ERECOVERYCODE"
	signingKID   = "e2e-key-1"

	// testcontainers maps HostAccessPorts onto this name inside the container.
	hostInternal = "host.testcontainers.internal"
)

// tenantUser is an account the fake provider knows.
type tenantUser struct {
	ID       string
	Email    string
	Password string
	Role     string
	MFA      bool
}

var defaultTenantUsers = []tenantUser{
	{ID: "auth0|super", Email: "super@example.org", Password: "Super123!", Role: "super_admin"},
	{ID: "auth0|admin", Email: "admin@example.org", Password: "Admin123!", Role: "admin"},
	{ID: "auth0|tracer", Email: "tracer@example.org", Password: "Tracer123!", Role: "contact_tracer"},
	{ID: "auth0|mfa", Email: "mfa@example.org", Password: "Mfa123!", Role: "contact_tracer", MFA: true},
}

// fakeTenant is an in-process identity provider the container reaches
// through the testcontainers host tunnel. Access tokens are HS256 with
// jwtSecret, or RS256 with key when signRS256 is set.
type fakeTenant struct {
	t   *testing.T
	srv *httptest.Server

	key       *rsa.PrivateKey
	signRS256 bool

	mu       sync.Mutex
	users    map[string]*tenantUser
	order    []string
	created  int
	requests map[string]int
}

func newFakeTenant(t *testing.T, users ...tenantUser) *fakeTenant {
	t.Helper()
	if len(users) == 0 {
		users = defaultTenantUsers
	}

	tn := &fakeTenant{
		t:        t,
		key:      mustRSAKey(t),
		users:    map[string]*tenantUser{},
		requests: map[string]int{},
	}
	for _, u := range users {
		tn.users[u.ID] = &u
		tn.order = append(tn.order, u.ID)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", tn.handleToken)
	mux.HandleFunc("GET /.well-known/jwks.json", tn.handleJWKS)
	mux.HandleFunc("GET /mfa/authenticators", tn.handleAuthenticators)
	mux.HandleFunc("POST /mfa/challenge", tn.handleChallenge)
	mux.HandleFunc("GET /api/v2/roles", tn.management(tn.handleRoles))
	mux.HandleFunc("GET /api/v2/users", tn.management(tn.handleListUsers))
	mux.HandleFunc("POST /api/v2/users", tn.management(tn.handleCreateUser))
	mux.HandleFunc("GET /api/v2/users/{id}", tn.management(tn.handleGetUser))
	mux.HandleFunc("DELETE /api/v2/users/{id}", tn.management(tn.handleDeleteUser))
	mux.HandleFunc("GET /api/v2/users/{id}/roles", tn.management(tn.handleUserRoles))
	mux.HandleFunc("PATCH /api/v2/users/{id}", tn.management(tn.handleUpdateUser))
	mux.HandleFunc("POST /api/v2/users/{id}/roles", tn.management(tn.handleAssignRoles))
	mux.HandleFunc("DELETE /api/v2/users/{id}/roles", tn.management(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("POST /api/v2/tickets/email-verification", tn.management(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ResultURL string `json:"result_url"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, map[string]string{"ticket": "https://tenant.example/verify?next=" + url.QueryEscape(body.ResultURL)})
	}))

	tn.srv = httptest.NewUnstartedServer(tn.count(mux))
	// Listen on every interface; the host tunnel does not always dial loopback.
	l, err := net.Listen("tcp", "0.0.0.0:0")
	require.NoError(t, err)
	tn.srv.Listener = l
	tn.srv.Start()
	t.Cleanup(tn.srv.Close)
	return tn
}

// Port is the host port the container must be given access to.
func (tn *fakeTenant) Port() int {
	return tn.srv.Listener.Addr().(*net.TCPAddr).Port
}

// ContainerURL is the tenant's base URL as seen from inside the container.
func (tn *fakeTenant) ContainerURL() string {
	return "http://" + hostInternal + ":" + itoa(tn.Port())
}

// Users returns the accounts in creation order.
func (tn *fakeTenant) Users() []tenantUser {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	out := make([]tenantUser, 0, len(tn.order))
	for _, id := range tn.order {
		if u, ok := tn.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out
}

// Requests reports how often "METHOD /path" was hit.
func (tn *fakeTenant) Requests(key string) int {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	return tn.requests[key]
}

func (tn *fakeTenant) Has(id string) bool {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	_, ok := tn.users[id]
	return ok
}

// AccessToken signs a token for subject the way the tenant would.
func (tn *fakeTenant) AccessToken(subject string, roles ...string) string {
	if tn.signRS256 {
		return rsToken(tn.t, tn.key, signingKID, subject, roles...)
	}
	return hsToken(tn.t, jwtSecret, subject, roles...)
}

func (tn *fakeTenant) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tn.mu.Lock()
		tn.requests[r.Method+" "+r.URL.Path]++
		tn.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (tn *fakeTenant) management(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"statusCode": 401, "error": "Unauthorized", "message": "Missing authentication"})
			return
		}
		next(w, r)
	}
}

func (tn *fakeTenant) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	require.NoError(tn.t, json.NewDecoder(r.Body).Decode(&body))
	if body["mfa_token"] != mfaToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant", "error_description": "Malformed mfa_token"})
		return
	}
	if body["authenticator_id"] != "sms|dev_2" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request", "error_description": "Unknown authenticator."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"challenge_type": "oob", "oob_code": oobCode, "binding_method": "prompt"})
}

func (tn *fakeTenant) handleToken(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]string
		require.NoError(tn.t, json.NewDecoder(r.Body).Decode(&body))
		switch body["grant_type"] {
		case "client_credentials":
			tn.clientCredentials(w, body)
		case "http://auth0.com/oauth/grant-type/mfa-oob":
			tn.mfaGrant(w, body["mfa_token"], body["oob_code"] == oobCode && body["binding_code"] == bindingCode, "Invalid binding_code.", "")
		case "http://auth0.com/oauth/grant-type/mfa-recovery-code":
			tn.mfaGrant(w, body["mfa_token"], body["recovery_code"] == recoveryCode, "MFA Authorization rejected.", "E2ENEXTRECOVERYCODE")
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		}
		return
	}

	require.NoError(tn.t, r.ParseForm())
	if r.PostForm.Get("client_secret") != tenantClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "access_denied", "error_description": "Unauthorized"})
		return
	}
	u, ok := tn.byEmail(r.PostForm.Get("username"))
	if !ok || u.Password == "" || u.Password != r.PostForm.Get("password") {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid_grant", "error_description": "Wrong email or password."})
		return
	}
	if u.MFA {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":             "mfa_required",
			"error_description": "Multifactor authentication required",
			"mfa_token":         mfaToken,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": tn.AccessToken(u.ID, u.Role),
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (tn *fakeTenant) clientCredentials(w http.ResponseWriter, body map[string]string) {
	if body["client_id"] != tenantClientID || body["client_secret"] != tenantClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "access_denied", "error_description": "Unauthorized"})
		return
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{body["audience"]},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}).SignedString([]byte("management-signing-key"))
	require.NoError(tn.t, err)
	writeJSON(w, http.StatusOK, map[string]any{"access_token": tok, "token_type": "Bearer", "expires_in": 86400})
}

func (tn *fakeTenant) mfaGrant(w http.ResponseWriter, token string, ok bool, failure, nextRecovery string) {
	if token != mfaToken {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid_grant", "error_description": "Malformed mfa_token"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid_grant", "error_description": failure})
		return
	}
	u, _ := tn.byEmail("mfa@example.org")
	resp := map[string]any{
		"access_token": tn.AccessToken(u.ID, u.Role),
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if nextRecovery != "" {
		resp["recovery_code"] = nextRecovery
	}
	writeJSON(w, http.StatusOK, resp)
}

func (tn *fakeTenant) handleJWKS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &tn.key.PublicKey,
		KeyID:     signingKID,
		Algorithm: "RS256",
		Use:       "sig",
	}}})
}

func (tn *fakeTenant) handleAuthenticators(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+mfaToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant", "error_description": "Malformed mfa_token"})
		return
	}
	writeJSON(w, http.StatusOK, []map[string]any{
		{"id": "recovery-code|dev_1", "authenticator_type": "recovery-code", "active": true},
		{"id": "sms|dev_2", "authenticator_type": "oob", "oob_channel": "sms", "active": true},
	})
}

// roleIDs maps role names to the ids the tenant hands out.
var roleIDs = map[string]string{
	"super_admin":    "rol_super",
	"admin":          "rol_admin",
	"contact_tracer": "rol_tracer",
}

func (tn *fakeTenant) handleRoles(w http.ResponseWriter, r *http.Request) {
	out := []map[string]string{}
	for name, id := range roleIDs {
		out = append(out, map[string]string{"id": id, "name": name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (tn *fakeTenant) handleAssignRoles(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Roles []string `json:"roles"`
	}
	require.NoError(tn.t, json.NewDecoder(r.Body).Decode(&body))

	tn.mu.Lock()
	defer tn.mu.Unlock()
	u, ok := tn.users[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "error": "Not Found", "errorCode": "inexistent_user"})
		return
	}
	for name, id := range roleIDs {
		if len(body.Roles) == 1 && body.Roles[0] == id {
			u.Role = name
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (tn *fakeTenant) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	require.NoError(tn.t, json.NewDecoder(r.Body).Decode(&body))

	tn.mu.Lock()
	defer tn.mu.Unlock()
	u, ok := tn.users[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "error": "Not Found", "errorCode": "inexistent_user"})
		return
	}
	if body.Password != "" {
		u.Password = body.Password
	}
	writeJSON(w, http.StatusOK, userJSON(*u))
}

func (tn *fakeTenant) handleListUsers(w http.ResponseWriter, r *http.Request) {
	out := []map[string]any{}
	if r.URL.Query().Get("page") == "0" {
		for _, u := range tn.Users() {
			out = append(out, userJSON(u))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (tn *fakeTenant) handleGetUser(w http.ResponseWriter, r *http.Request) {
	tn.mu.Lock()
	u, ok := tn.users[r.PathValue("id")]
	var snapshot tenantUser
	if ok {
		snapshot = *u
	}
	tn.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "error": "Not Found", "errorCode": "inexistent_user"})
		return
	}
	writeJSON(w, http.StatusOK, userJSON(snapshot))
}

func (tn *fakeTenant) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email      string `json:"email"`
		Connection string `json:"connection"`
	}
	require.NoError(tn.t, json.NewDecoder(r.Body).Decode(&body))
	if _, exists := tn.byEmail(body.Email); exists {
		writeJSON(w, http.StatusConflict, map[string]any{"statusCode": 409, "error": "Conflict", "message": "The user already exists."})
		return
	}

	tn.mu.Lock()
	tn.created++
	u := &tenantUser{ID: "auth0|created" + itoa(tn.created), Email: body.Email}
	tn.users[u.ID] = u
	tn.order = append(tn.order, u.ID)
	tn.mu.Unlock()

	writeJSON(w, http.StatusCreated, userJSON(*u))
}

func (tn *fakeTenant) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	tn.mu.Lock()
	delete(tn.users, r.PathValue("id"))
	tn.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (tn *fakeTenant) handleUserRoles(w http.ResponseWriter, r *http.Request) {
	var role string
	tn.mu.Lock()
	if u, ok := tn.users[r.PathValue("id")]; ok {
		role = u.Role
	}
	tn.mu.Unlock()
	if role == "" {
		writeJSON(w, http.StatusOK, []map[string]string{})
		return
	}
	writeJSON(w, http.StatusOK, []map[string]string{{"id": roleIDs[role], "name": role}})
}

func (tn *fakeTenant) byEmail(email string) (tenantUser, bool) {
	tn.mu.Lock()
	defer tn.mu.Unlock()
	for _, u := range tn.users {
		if strings.EqualFold(u.Email, email) {
			return *u, true
		}
	}
	return tenantUser{}, false
}

func userJSON(u tenantUser) map[string]any {
	return map[string]any{
		"user_id":        u.ID,
		"email":          u.Email,
		"email_verified": u.Password != "",
		"created_at":     "2024-01-01T00:00:00.000Z",
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
