package idm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// fetchManagementToken is the cache refresher for the management token.
func (c *Connector) fetchManagementToken(ctx context.Context) (string, time.Time, error) {
	var resp tokenResponse
	err := c.do(ctx, request{
		op:     "management_token",
		method: http.MethodPost,
		path:   "/oauth/token",
		json: map[string]string{
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
			"audience":      c.audience,
			"grant_type":    "client_credentials",
		},
	}, &resp)
	if err != nil {
		return "", time.Time{}, err
	}

	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		return "", time.Time{}, ErrBadTokenResponse
	}

	expiresAt, err := tokenExpiry(resp.AccessToken, resp.ExpiresIn, c.now())
	if err != nil {
		return "", time.Time{}, err
	}
	return resp.AccessToken, expiresAt, nil
}

// tokenExpiry reads exp from the token itself, falling back to expires_in.
// The token is not verified: we just received it from the provider over TLS.
func tokenExpiry(token string, expiresIn int, now time.Time) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time, nil
	}
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second), nil
	}
	return time.Time{}, fmt.Errorf("idm: management token carries no expiry")
}
