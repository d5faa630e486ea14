package idm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pquerna/otp"
)

// Authenticator is an MFA factor the user has enrolled.
type Authenticator struct {
	ID                string `json:"id"`
	AuthenticatorType string `json:"authenticator_type"`
	OOBChannel        string `json:"oob_channel,omitempty"`
	Name              string `json:"name,omitempty"`
	Active            bool   `json:"active"`
}

// IsSMS reports whether the factor is an SMS out-of-band one.
func (a Authenticator) IsSMS() bool {
	return a.AuthenticatorType == "oob" && a.OOBChannel == "sms"
}

// Challenge is the provider's answer to a challenge request.
type Challenge struct {
	ChallengeType string `json:"challenge_type"`
	OOBCode       string `json:"oob_code,omitempty"`
	BindingMethod string `json:"binding_method,omitempty"`
}

// Association is the result of enrolling a new factor.
type Association struct {
	AuthenticatorType string   `json:"authenticator_type"`
	OOBChannel        string   `json:"oob_channel,omitempty"`
	OOBCode           string   `json:"oob_code,omitempty"`
	BindingMethod     string   `json:"binding_method,omitempty"`
	RecoveryCodes     []string `json:"recovery_codes,omitempty"`
	Secret            string   `json:"secret,omitempty"`
	BarcodeURI        string   `json:"barcode_uri,omitempty"`

	// OTPKey is the parsed BarcodeURI for OTP associations.
	OTPKey *otp.Key `json:"-"`
}

// ListAuthenticators lists the factors behind an MFA token.
func (c *Connector) ListAuthenticators(ctx context.Context, mfaToken string) ([]Authenticator, error) {
	var out []Authenticator
	err := c.do(ctx, request{
		op:     "list_authenticators",
		method: http.MethodGet,
		path:   "/mfa/authenticators",
		bearer: mfaToken,
	}, &out)
	return out, classifyMFA(err)
}

// Challenge triggers an out-of-band code for the given authenticator.
func (c *Connector) Challenge(ctx context.Context, mfaToken, authenticatorID string) (Challenge, error) {
	var out Challenge
	err := c.do(ctx, request{
		op:     "mfa_challenge",
		method: http.MethodPost,
		path:   "/mfa/challenge",
		json: map[string]string{
			"client_id":        c.clientID,
			"client_secret":    c.clientSecret,
			"challenge_type":   "oob",
			"mfa_token":        mfaToken,
			"authenticator_id": authenticatorID,
		},
	}, &out)
	return out, classifyMFA(err)
}

// AssociateSMS enrolls an SMS factor for an E.164 phone number.
func (c *Connector) AssociateSMS(ctx context.Context, mfaToken, phoneNumber string) (Association, error) {
	return c.associate(ctx, mfaToken, map[string]any{
		"authenticator_types": []string{"oob"},
		"oob_channels":        []string{"sms"},
		"phone_number":        phoneNumber,
	})
}

// AssociateOTP enrolls an authenticator app. The barcode URI is parsed so
// callers get the issuer and account without another round of parsing.
func (c *Connector) AssociateOTP(ctx context.Context, mfaToken string) (Association, error) {
	a, err := c.associate(ctx, mfaToken, map[string]any{
		"authenticator_types": []string{"otp"},
	})
	if err != nil {
		return Association{}, err
	}
	if a.BarcodeURI == "" {
		return Association{}, errors.New("idm: otp association carries no barcode_uri")
	}

	key, err := otp.NewKeyFromURL(a.BarcodeURI)
	if err != nil {
		return Association{}, fmt.Errorf("idm: parse barcode_uri: %w", err)
	}
	a.OTPKey = key
	return a, nil
}

func (c *Connector) associate(ctx context.Context, mfaToken string, body map[string]any) (Association, error) {
	var out Association
	err := c.do(ctx, request{
		op:     "mfa_associate",
		method: http.MethodPost,
		path:   "/mfa/associate",
		bearer: mfaToken,
		json:   body,
	}, &out)
	return out, classifyMFA(err)
}
