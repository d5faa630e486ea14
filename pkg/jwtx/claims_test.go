package jwtx_test

import (
	"encoding/json"
	"testing"

	"github.com/Path-Check/safeplaces-auth/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestClaimsUnmarshalKeepsExtra(t *testing.T) {
	t.Parallel()

	payload := `{
		"sub": "auth0|u1",
		"aud": ["https://api", "https://idm/userinfo"],
		"scope": "openid profile",
		"https://sp.x/roles": ["contact_tracer", "admin"],
		"https://sp.x/org": "org-1"
	}`

	var c jwtx.Claims
	require.NoError(t, json.Unmarshal([]byte(payload), &c))

	require.Equal(t, "auth0|u1", c.Subject)
	require.Equal(t, "openid profile", c.Scope)
	require.ElementsMatch(t, []string{"https://api", "https://idm/userinfo"}, c.Audience)
	require.Equal(t, []string{"contact_tracer", "admin"}, c.Roles("https://sp.x"))
	require.Equal(t, []string{"org-1"}, c.Strings("https://sp.x/org"))
	require.Nil(t, c.Strings("missing"))
}

func TestClaimsRolesFallsBackToRole(t *testing.T) {
	t.Parallel()

	c := jwtx.Claims{Role: "admin"}
	require.Equal(t, []string{"admin"}, c.Roles("https://sp.x"))
	require.Nil(t, jwtx.Claims{}.Roles(""))
}
