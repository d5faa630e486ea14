package auth_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Checks  *struct {
		Database string `json:"database"`
		IDM      string `json:"idm"`
	} `json:"checks"`
}

// TestLivezEndpoint verifies the liveness check endpoint.
func TestLivezEndpoint(t *testing.T) {
	tn := newFakeTenant(t)
	baseURL, _ := setupAuthContainer(t, tn, containerOptions{})

	resp := newClient(t, baseURL).do(http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health healthResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &health))
	require.Equal(t, "ok", health.Status)
	require.NotEmpty(t, health.Version)
}

// TestReadyzEndpoint verifies the service reports the database and the
// primed connector as healthy.
func TestReadyzEndpoint(t *testing.T) {
	tn := newFakeTenant(t)
	baseURL, _ := setupAuthContainer(t, tn, containerOptions{})

	resp := newClient(t, baseURL).do(http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)

	var health healthResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &health))
	require.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.IDM)

	// Startup fetched the management token and the role list once each.
	require.Equal(t, 1, tn.Requests("GET /api/v2/roles"))
	require.GreaterOrEqual(t, tn.Requests("POST /oauth/token"), 1)
}

// TestMetricsEndpoint verifies enforcement decisions and IDM calls show up
// in the Prometheus exposition.
func TestMetricsEndpoint(t *testing.T) {
	tn := newFakeTenant(t)
	baseURL, _ := setupAuthContainer(t, tn, containerOptions{})
	c := newClient(t, baseURL)

	// One denial without the CSRF header.
	resp := c.do(http.MethodGet, "/v1/me", "", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = c.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Body, `safeplaces_auth_gatekeeper_decisions_total{result="deny",tag="h/m.c"} 1`)
	require.Contains(t, resp.Body, `safeplaces_auth_idm_requests_total{`)
	require.Contains(t, resp.Body, `safeplaces_auth_http_request_duration_seconds`)
}

// TestSwaggerDocs verifies the generated API documentation is served.
func TestSwaggerDocs(t *testing.T) {
	tn := newFakeTenant(t)
	baseURL, _ := setupAuthContainer(t, tn, containerOptions{})

	resp := newClient(t, baseURL).do(http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Body, "/v1/login")
}
