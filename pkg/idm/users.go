package idm

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Path-Check/safeplaces-auth/pkg/cryptox"
)

const (
	generatedPasswordLength = 16
	listUsersPageSize       = 100

	// The provider stops paginating at 1000 results.
	listUsersMaxPages = 10
)

// User is the provider's view of an account.
type User struct {
	ID            string         `json:"user_id"`
	Email         string         `json:"email"`
	EmailVerified bool           `json:"email_verified"`
	Name          string         `json:"name,omitempty"`
	Nickname      string         `json:"nickname,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	LastLogin     *time.Time     `json:"last_login,omitempty"`
	AppMetadata   map[string]any `json:"app_metadata,omitempty"`
}

// GetUser fetches one user.
func (c *Connector) GetUser(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, errors.New("idm: user ID is required")
	}
	var u User
	err := c.management(ctx, request{op: "get_user", method: http.MethodGet, path: userPath(id)}, &u)
	return u, err
}

// ListUsers returns every user of the configured realm.
func (c *Connector) ListUsers(ctx context.Context) ([]User, error) {
	var all []User
	for page := 0; page < listUsersMaxPages; page++ {
		q := url.Values{
			"search_engine": {"v3"},
			"q":             {`identities.connection:"` + c.realm + `"`},
			"per_page":      {strconv.Itoa(listUsersPageSize)},
			"page":          {strconv.Itoa(page)},
		}

		var batch []User
		err := c.management(ctx, request{op: "list_users", method: http.MethodGet, path: "/users?" + q.Encode()}, &batch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < listUsersPageSize {
			break
		}
	}
	return all, nil
}

// GetRoles lists the roles assigned to a user.
func (c *Connector) GetRoles(ctx context.Context, id string) ([]Role, error) {
	if id == "" {
		return nil, errors.New("idm: user ID is required")
	}
	var roles []Role
	err := c.management(ctx, request{op: "get_user_roles", method: http.MethodGet, path: userPath(id, "roles")}, &roles)
	return roles, err
}

// ListRoles lists every role of the tenant. It backs the RoleTable.
func (c *Connector) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	err := c.management(ctx, request{op: "list_roles", method: http.MethodGet, path: "/roles"}, &roles)
	return roles, err
}

// CreateUser creates an unverified account with a random password nobody
// ever sees; the user picks their own through the registration flow.
func (c *Connector) CreateUser(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", errors.New("idm: email is required")
	}

	password, err := cryptox.GeneratePassword(generatedPasswordLength)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"email":          email,
		"password":       password,
		"connection":     c.realm,
		"verify_email":   false,
		"email_verified": false,
	}
	if name, _, _ := strings.Cut(email, "@"); name != "" {
		payload["name"] = name
	}

	var created User
	err = c.management(ctx, request{op: "create_user", method: http.MethodPost, path: "/users", json: payload}, &created)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", errors.New("idm: create_user: response carries no user_id")
	}
	return created.ID, nil
}

// DeleteUser removes a user.
func (c *Connector) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("idm: user ID is required")
	}
	return c.management(ctx, request{op: "delete_user", method: http.MethodDelete, path: userPath(id)}, nil)
}

// updatableFields are the only attributes UpdateUser forwards.
var updatableFields = []string{"name", "password"}

// UpdateUser patches a user. Keys outside name and password are dropped.
func (c *Connector) UpdateUser(ctx context.Context, id string, update map[string]any) error {
	if id == "" {
		return errors.New("idm: user ID is required")
	}

	payload := map[string]any{"connection": c.realm}
	for _, key := range updatableFields {
		if v, ok := update[key]; ok {
			payload[key] = v
		}
	}
	return c.management(ctx, request{op: "update_user", method: http.MethodPatch, path: userPath(id), json: payload}, nil)
}

// AssignRole gives the user exactly one role. For existing users every
// current role is removed first.
func (c *Connector) AssignRole(ctx context.Context, userID, roleName string, isNewUser bool) error {
	if userID == "" || roleName == "" {
		return errors.New("idm: user ID and role name are required")
	}

	roleID, err := c.roles.RoleID(ctx, roleName)
	if err != nil {
		return err
	}

	if !isNewUser {
		current, err := c.GetRoles(ctx, userID)
		if err != nil {
			return err
		}
		if len(current) > 0 {
			ids := make([]string, 0, len(current))
			for _, r := range current {
				ids = append(ids, r.ID)
			}
			err := c.management(ctx, request{
				op:     "remove_user_roles",
				method: http.MethodDelete,
				path:   userPath(userID, "roles"),
				json:   map[string][]string{"roles": ids},
			}, nil)
			if err != nil {
				return err
			}
		}
	}

	return c.management(ctx, request{
		op:     "assign_user_roles",
		method: http.MethodPost,
		path:   userPath(userID, "roles"),
		json:   map[string][]string{"roles": {roleID}},
	}, nil)
}

// RemoveRole takes one role away from a user.
func (c *Connector) RemoveRole(ctx context.Context, userID, roleName string) error {
	if userID == "" || roleName == "" {
		return errors.New("idm: user ID and role name are required")
	}

	roleID, err := c.roles.RoleID(ctx, roleName)
	if err != nil {
		return err
	}
	return c.management(ctx, request{
		op:     "remove_user_roles",
		method: http.MethodDelete,
		path:   userPath(userID, "roles"),
		json:   map[string][]string{"roles": {roleID}},
	}, nil)
}
