package http

import (
	"net/http"
	"time"

	"github.com/Path-Check/safeplaces-auth/internal/auth/service"
	"github.com/Path-Check/safeplaces-auth/pkg/gatekeeper"
	"github.com/Path-Check/safeplaces-auth/pkg/httpx"
	"github.com/Path-Check/safeplaces-auth/pkg/idm"
)

// MFAHandler serves the second-factor endpoints. Every request carries the
// mfa_token from the login response as a bearer token.
type MFAHandler struct {
	MFAService *service.MFAService
	Cookies    httpx.CookieConfig

	now func() time.Time
}

// ChallengeResponse carries the oob_code a verification must quote.
type ChallengeResponse struct {
	OOBCode string `json:"oob_code"`
}

// EnrollRequest is the body of an SMS enrollment.
type EnrollRequest struct {
	PhoneNumber string `json:"phone_number" example:"+15555550100"`
}

// VerifyRequest is the body of an SMS code verification.
type VerifyRequest struct {
	OOBCode     string `json:"oob_code"`
	BindingCode string `json:"binding_code" example:"123456"`
}

// RecoverRequest is the body of a recovery-code login.
type RecoverRequest struct {
	RecoveryCode string `json:"recovery_code"`
}

// RecoverResponse carries the replacement recovery code.
type RecoverResponse struct {
	RecoveryCode string `json:"recovery_code,omitempty"`
}

func mfaToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, err := gatekeeper.BearerToken(r)
	if err != nil {
		w.Header().Set(gatekeeper.DefaultTagHeader, gatekeeper.Tag(err))
		writeNamedError(w, http.StatusUnauthorized, "MFATokenMissing", "An MFA token is required")
		return "", false
	}
	return token, true
}

// HandleChallenge godoc
//
//	@Summary		Send an SMS code
//	@Description	Challenges the first active SMS authenticator of the user behind the MFA token.
//	@Tags			MFA
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	ChallengeResponse
//	@Failure		400	{object}	httpx.APIError	"Malformed MFA token"
//	@Failure		401	{object}	httpx.APIError	"MFA token missing or expired"
//	@Failure		404	{object}	httpx.APIError	"No SMS authenticator enrolled"
//	@Router			/v1/mfa/challenge [post].
func (h *MFAHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	token, ok := mfaToken(w, r)
	if !ok {
		return
	}
	oob, err := h.MFAService.Challenge(r.Context(), token)
	if err != nil {
		writeMFAError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ChallengeResponse{OOBCode: oob})
}

// HandleEnroll godoc
//
//	@Summary		Enroll an SMS authenticator
//	@Description	Associates a phone number with the user behind the MFA token and sends the first code.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		EnrollRequest	true	"E.164 phone number"
//	@Success		200		{object}	idm.Association
//	@Failure		400		{object}	httpx.APIError	"Invalid phone number"
//	@Failure		401		{object}	httpx.APIError	"MFA token missing or expired"
//	@Router			/v1/mfa/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	token, ok := mfaToken(w, r)
	if !ok {
		return
	}
	var req EnrollRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeMissingBody(w, gatekeeper.MissingRequestBody, "Request body must be JSON")
		return
	}
	assoc, err := h.MFAService.Enroll(r.Context(), token, req.PhoneNumber)
	if err != nil {
		writeMFAError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, assoc)
}

// HandleVerify godoc
//
//	@Summary		Verify an SMS code
//	@Description	Completes the login with the received code and sets the access_token cookie.
//	@Tags			MFA
//	@Accept			json
//	@Security		BearerAuth
//	@Param			request	body	VerifyRequest	true	"oob_code and binding_code"
//	@Success		204		"Logged in"
//	@Failure		401		{object}	httpx.APIError	"MFA token missing or expired"
//	@Failure		403		{object}	httpx.APIError	"Invalid binding code"
//	@Failure		422		{object}	httpx.APIError	"Missing attributes"
//	@Router			/v1/mfa/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	token, ok := mfaToken(w, r)
	if !ok {
		return
	}
	var req VerifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeMissingBody(w, gatekeeper.MissingRequestBody, "Request body must be JSON")
		return
	}
	tokens, err := h.MFAService.Verify(r.Context(), token, req.OOBCode, req.BindingCode)
	if err != nil {
		writeMFAError(w, r, err)
		return
	}
	h.setSession(w, tokens)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRecover godoc
//
//	@Summary		Log in with a recovery code
//	@Description	Completes the login with a recovery code, sets the access_token cookie and returns the replacement code.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		RecoverRequest	true	"Recovery code"
//	@Success		200		{object}	RecoverResponse
//	@Failure		401		{object}	httpx.APIError	"MFA token missing or invalid recovery code"
//	@Router			/v1/mfa/recover [post].
func (h *MFAHandler) HandleRecover(w http.ResponseWriter, r *http.Request) {
	token, ok := mfaToken(w, r)
	if !ok {
		return
	}
	var req RecoverRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeMissingBody(w, gatekeeper.MissingRequestBody, "Request body must be JSON")
		return
	}
	tokens, err := h.MFAService.Recover(r.Context(), token, req.RecoveryCode)
	if err != nil {
		writeMFAError(w, r, err)
		return
	}
	h.setSession(w, tokens)
	httpx.WriteJSON(w, http.StatusOK, RecoverResponse{RecoveryCode: tokens.RecoveryCode})
}

func (h *MFAHandler) setSession(w http.ResponseWriter, tokens idm.TokenSet) {
	httpx.NoCache(w)
	httpx.SetCookie(w, httpx.TokenCookie(httpx.AccessTokenCookie, tokens.AccessToken, tokens.Lifetime(), h.Cookies, h.now()))
}
