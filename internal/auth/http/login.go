package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/Path-Check/safeplaces-auth/internal/auth/service"
	"github.com/Path-Check/safeplaces-auth/pkg/gatekeeper"
	"github.com/Path-Check/safeplaces-auth/pkg/httpx"
	"github.com/Path-Check/safeplaces-auth/pkg/idm"
)

// LoginHandler serves the password login and logout endpoints.
type LoginHandler struct {
	LoginService *service.LoginService
	Cookies      httpx.CookieConfig

	now func() time.Time
}

// LoginRequest is the body of a password login.
type LoginRequest struct {
	Username string `json:"username" example:"tracer@example.org"`
	Password string `json:"password" example:"correct horse battery staple"`
}

// MFARequiredResponse is returned when the password was right but a second
// factor is due.
type MFARequiredResponse struct {
	httpx.APIError
	MFAToken string `json:"mfa_token"`
}

// HandleLogin godoc
//
//	@Summary		Log in with username and password
//	@Description	Exchanges credentials for an access token, set as the access_token cookie.
//	@Description	Users with MFA enrolled receive 401 MFARequired and an mfa_token to continue with /v1/mfa/*.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		LoginRequest		true	"Credentials"
//	@Success		200		{object}	service.LoginResult	"Database id and highest role"
//	@Failure		400		{object}	httpx.APIError		"Missing credentials"
//	@Failure		401		{object}	MFARequiredResponse	"Wrong credentials or MFA required"
//	@Failure		429		{object}	httpx.APIError		"Rate limited"
//	@Failure		500		{object}	httpx.APIError		"Identity provider or database error"
//	@Router			/v1/login [post].
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeMissingBody(w, gatekeeper.MissingRequestBody, "Request body must be JSON")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeMissingBody(w, gatekeeper.MissingCredentials, "Username and password are required")
		return
	}

	res, err := h.LoginService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var mfa *idm.MFARequiredError
		switch {
		case errors.As(err, &mfa):
			httpx.WriteJSON(w, http.StatusUnauthorized, MFARequiredResponse{
				APIError: httpx.APIError{
					StatusCode: http.StatusUnauthorized,
					Error:      "MFARequired",
					Message:    "Multifactor authentication required",
				},
				MFAToken: mfa.MFAToken,
			})
		case errors.Is(err, idm.ErrInvalidCredentials):
			writeNamedError(w, http.StatusUnauthorized, "InvalidCredentials", "Wrong username or password")
		default:
			writeServiceError(w, r, err)
		}
		return
	}

	httpx.SetCookie(w, httpx.TokenCookie(httpx.AccessTokenCookie, res.Tokens.AccessToken, res.Tokens.Lifetime(), h.Cookies, h.now()))
	httpx.WriteJSON(w, http.StatusOK, res)
}

// HandleLogout godoc
//
//	@Summary		Log out
//	@Description	Expires the access_token cookie. Always succeeds.
//	@Tags			Login
//	@Success		204	"Cookie cleared"
//	@Router			/v1/logout [post].
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	httpx.SetCookie(w, httpx.ExpiredCookie(httpx.AccessTokenCookie, h.Cookies))
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
