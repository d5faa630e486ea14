package gatekeeper

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/Path-Check/safeplaces-auth/pkg/jwtx"
)

// UserGetter maps a verified subject to an application user. Returning a
// nil user with a nil error means the subject is unknown; a typed nil such
// as (*User)(nil) counts as nil.
type UserGetter func(ctx context.Context, subject string) (any, error)

// Authorizer applies policy after the user is resolved. Any error denies.
type Authorizer func(claims jwtx.Claims, r *http.Request) error

// RequireRole allows the request when the namespaced roles claim holds at
// least one of roles.
func RequireRole(namespace string, roles ...string) Authorizer {
	return func(claims jwtx.Claims, _ *http.Request) error {
		have := claims.Roles(namespace)
		for _, role := range roles {
			if slices.Contains(have, role) {
				return nil
			}
		}
		return fmt.Errorf("requires one of %v, have %v", roles, have)
	}
}
