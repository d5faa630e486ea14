package idm

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(3 * time.Hour).Truncate(time.Second)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	got, err := tokenExpiry(signed, 60, now)
	require.NoError(t, err)
	require.True(t, got.Equal(exp), "exp claim wins over expires_in")

	got, err = tokenExpiry("opaque-token", 60, now)
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Minute), got)

	_, err = tokenExpiry("opaque-token", 0, now)
	require.Error(t, err)
}

func TestParseErrorShapes(t *testing.T) {
	t.Parallel()

	mgmt := parseError("create_user", 409, []byte(`{"statusCode":409,"error":"Conflict","message":"The user already exists.","errorCode":"auth0_idp_error"}`))
	require.Equal(t, "Conflict", mgmt.Code)
	require.Equal(t, "auth0_idp_error", mgmt.ErrorCode)
	require.Equal(t, "The user already exists.", mgmt.Description)
	require.ErrorIs(t, mgmt, ErrConflict)

	authn := parseError("password_realm_grant", 403, []byte(`{"error":"invalid_grant","error_description":"Wrong email or password."}`))
	require.Equal(t, "invalid_grant", authn.Code)
	require.Equal(t, "Wrong email or password.", authn.Description)

	opaque := parseError("get_user", 503, []byte("<html>"))
	require.Equal(t, "Service Unavailable", opaque.Description)
	require.Equal(t, "idm: get_user: status 503: Service Unavailable", opaque.Error())
}
