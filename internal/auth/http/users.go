package http

import (
	"net/http"
	"time"

	"github.com/Path-Check/safeplaces-auth/internal/auth/domain"
	"github.com/Path-Check/safeplaces-auth/internal/auth/service"
	"github.com/Path-Check/safeplaces-auth/pkg/gatekeeper"
	"github.com/Path-Check/safeplaces-auth/pkg/httpx"
)

// UsersHandler serves user management, self-service registration and the
// caller's own profile.
type UsersHandler struct {
	UserService    *service.UserService
	ClaimNamespace string
}

// UpdateUserRequest is the body of a profile update.
type UpdateUserRequest struct {
	Name string `json:"name" example:"Jane Tracer"`
}

// AssignRoleRequest is the body of a role change.
type AssignRoleRequest struct {
	Role string `json:"role" example:"contact_tracer"`
}

// ResetPasswordRequest is the body of a password reset.
type ResetPasswordRequest struct {
	Email string `json:"email" example:"tracer@example.org"`
}

// RegisterRequest completes an account created by an administrator.
type RegisterRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// MeResponse is the authenticated caller.
type MeResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Role           string    `json:"role,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HandleList godoc
//
//	@Summary		List users
//	@Description	Lists every IDM user with its database id and highest role.
//	@Tags			Users
//	@Produce		json
//	@Security		CookieAuth
//	@Success		200	{array}		service.UserView
//	@Failure		403	"Denied, see the PCF-Request-Tag header"
//	@Failure		500	{object}	httpx.APIError	"Database or identity provider error"
//	@Router			/v1/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []service.UserView{}
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}

// HandleGet godoc
//
//	@Summary		Get a user
//	@Tags			Users
//	@Produce		json
//	@Security		CookieAuth
//	@Param			id	path		string	true	"Database user id"
//	@Success		200	{object}	service.UserView
//	@Failure		404	{object}	httpx.APIError	"inexistent_user"
//	@Router			/v1/users/{id} [get].
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.UserService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

// HandleCreate godoc
//
//	@Summary		Create a user
//	@Description	Creates the IDM user, assigns the role, stores the mapping and returns a registration link.
//	@Description	Any failure after the IDM user exists rolls the creation back.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Security		CookieAuth
//	@Param			request	body		service.CreateUserInput	true	"New user"
//	@Success		201		{object}	service.CreatedUser
//	@Failure		400		{object}	httpx.APIError	"Unknown role"
//	@Failure		409		{object}	httpx.APIError	"user_exists"
//	@Failure		422		{object}	httpx.APIError	"missing_attributes"
//	@Failure		500		{object}	httpx.APIError	"Database or identity provider error"
//	@Router			/v1/users [post].
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "Request body must be JSON")
		return
	}
	created, err := h.UserService.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

// HandleUpdate godoc
//
//	@Summary		Update a user's name
//	@Tags			Users
//	@Accept			json
//	@Security		CookieAuth
//	@Param			id		path	string				true	"Database user id"
//	@Param			request	body	UpdateUserRequest	true	"New name"
//	@Success		204		"Updated"
//	@Failure		404		{object}	httpx.APIError	"inexistent_user"
//	@Failure		422		{object}	httpx.APIError	"missing_attributes"
//	@Router			/v1/users/{id} [patch].
func (h *UsersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "Request body must be JSON")
		return
	}
	if err := h.UserService.UpdateName(r.Context(), r.PathValue("id"), req.Name); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAssignRole godoc
//
//	@Summary		Change a user's role
//	@Description	Replaces every role the user holds with the given one.
//	@Tags			Users
//	@Accept			json
//	@Security		CookieAuth
//	@Param			id		path	string				true	"Database user id"
//	@Param			request	body	AssignRoleRequest	true	"Role"
//	@Success		204		"Updated"
//	@Failure		400		{object}	httpx.APIError	"Unknown role"
//	@Failure		404		{object}	httpx.APIError	"inexistent_user"
//	@Router			/v1/users/{id}/role [put].
func (h *UsersHandler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "Request body must be JSON")
		return
	}
	if err := h.UserService.AssignRole(r.Context(), r.PathValue("id"), req.Role); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete godoc
//
//	@Summary		Delete a user
//	@Description	Deletes the IDM user, then the database mapping.
//	@Tags			Users
//	@Security		CookieAuth
//	@Param			id	path	string	true	"Database user id"
//	@Success		204	"Deleted"
//	@Failure		404	{object}	httpx.APIError	"inexistent_user"
//	@Router			/v1/users/{id} [delete].
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.UserService.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResetMFA godoc
//
//	@Summary		Reset a user's MFA
//	@Description	Deletes every MFA enrollment so the user enrolls again on the next login.
//	@Tags			Users
//	@Security		CookieAuth
//	@Param			id	path	string	true	"Database user id"
//	@Success		204	"Reset"
//	@Failure		404	{object}	httpx.APIError	"inexistent_user"
//	@Router			/v1/users/{id}/reset-mfa [post].
func (h *UsersHandler) HandleResetMFA(w http.ResponseWriter, r *http.Request) {
	if err := h.UserService.ResetMFA(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResetPassword godoc
//
//	@Summary		Request a password reset email
//	@Tags			Users
//	@Accept			json
//	@Param			request	body	ResetPasswordRequest	true	"Account email"
//	@Success		202		"Email queued"
//	@Failure		422		{object}	httpx.APIError	"missing_attributes"
//	@Failure		429		{object}	httpx.APIError	"too_many_requests"
//	@Router			/v1/users/reset-password [post].
func (h *UsersHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "Request body must be JSON")
		return
	}
	if err := h.UserService.ResetPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleRegister godoc
//
//	@Summary		Complete a registration
//	@Description	Sets the name and password of the account behind the registration token.
//	@Tags			Users
//	@Accept			json
//	@Security		BearerAuth
//	@Param			request	body	RegisterRequest	true	"Name and password"
//	@Success		204		"Registered"
//	@Failure		401		{object}	httpx.APIError	"Missing or invalid registration token"
//	@Failure		422		{object}	httpx.APIError	"missing_attributes"
//	@Router			/v1/users/register [post].
func (h *UsersHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	token, err := gatekeeper.BearerToken(r)
	if err != nil {
		w.Header().Set(gatekeeper.DefaultTagHeader, gatekeeper.Tag(err))
		writeNamedError(w, http.StatusUnauthorized, "RegistrationTokenMissing", "A registration token is required")
		return
	}
	var req RegisterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, "Request body must be JSON")
		return
	}
	if err := h.UserService.Register(r.Context(), token, req.Name, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe godoc
//
//	@Summary		Current user
//	@Description	Returns the application user the access token resolves to.
//	@Tags			Users
//	@Produce		json
//	@Security		CookieAuth
//	@Success		200	{object}	MeResponse
//	@Failure		403	"Denied, see the PCF-Request-Tag header"
//	@Router			/v1/me [get].
func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := gatekeeper.UserAs[domain.User](r.Context())
	if !ok {
		gatekeeper.WriteForbidden(w, gatekeeper.DefaultTagHeader, gatekeeper.UserGetterNotFound.Tag())
		return
	}
	resp := MeResponse{
		ID:             u.ID,
		Username:       u.Username,
		OrganizationID: u.OrganizationID,
		CreatedAt:      u.CreatedAt,
	}
	if claims, ok := gatekeeper.ClaimsFrom(r.Context()); ok {
		resp.Role = domain.HighestRole(claims.Roles(h.ClaimNamespace))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
