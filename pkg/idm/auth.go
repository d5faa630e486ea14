package idm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Grant types of the provider's extension grants.
const (
	GrantPasswordRealm = "http://auth0.com/oauth/grant-type/password-realm"
	GrantMFAOOB        = "http://auth0.com/oauth/grant-type/mfa-oob"
	GrantMFARecovery   = "http://auth0.com/oauth/grant-type/mfa-recovery-code"
)

// TokenSet is what a successful end-user grant returns.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	RecoveryCode string `json:"recovery_code,omitempty"`
}

// Lifetime is ExpiresIn as a duration.
func (t TokenSet) Lifetime() time.Duration {
	return time.Duration(t.ExpiresIn) * time.Second
}

// PasswordRealmGrant logs a user in with username and password.
//
// Users with MFA get *MFARequiredError; a wrong password is
// ErrInvalidCredentials.
func (c *Connector) PasswordRealmGrant(ctx context.Context, username, password string) (TokenSet, error) {
	form := url.Values{
		"grant_type":    {GrantPasswordRealm},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"realm":         {c.realm},
		"scope":         {"openid"},
		"username":      {username},
		"password":      {password},
	}
	if c.apiAudience != "" {
		form.Set("audience", c.apiAudience)
	}

	tokens, err := c.grant(ctx, "password_realm_grant", request{form: form})
	if err == nil {
		return tokens, nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "mfa_required":
			return TokenSet{}, &MFARequiredError{MFAToken: mfaTokenFrom(apiErr.Body)}
		case "invalid_grant":
			return TokenSet{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
	}
	return TokenSet{}, err
}

// MFAOOBGrant completes a login with the code the user received out of band.
func (c *Connector) MFAOOBGrant(ctx context.Context, mfaToken, oobCode, bindingCode string) (TokenSet, error) {
	tokens, err := c.grant(ctx, "mfa_oob_grant", request{
		bearer: mfaToken,
		json: map[string]string{
			"grant_type":    GrantMFAOOB,
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
			"mfa_token":     mfaToken,
			"oob_code":      oobCode,
			"binding_code":  bindingCode,
		},
	})
	return tokens, classifyMFA(err)
}

// MFARecoveryGrant completes a login with a recovery code. The response
// carries the replacement recovery code.
func (c *Connector) MFARecoveryGrant(ctx context.Context, mfaToken, recoveryCode string) (TokenSet, error) {
	tokens, err := c.grant(ctx, "mfa_recovery_grant", request{
		bearer: mfaToken,
		json: map[string]string{
			"grant_type":    GrantMFARecovery,
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
			"mfa_token":     mfaToken,
			"recovery_code": recoveryCode,
		},
	})
	return tokens, classifyMFA(err)
}

func (c *Connector) grant(ctx context.Context, op string, r request) (TokenSet, error) {
	r.op = op
	r.method = http.MethodPost
	r.path = "/oauth/token"

	var tokens TokenSet
	if err := c.do(ctx, r, &tokens); err != nil {
		return TokenSet{}, err
	}
	if tokens.AccessToken == "" {
		return TokenSet{}, errors.New("idm: " + op + ": response carries no access_token")
	}
	return tokens, nil
}

func mfaTokenFrom(body []byte) string {
	var payload struct {
		MFAToken string `json:"mfa_token"`
	}
	_ = json.Unmarshal(body, &payload)
	return payload.MFAToken
}
