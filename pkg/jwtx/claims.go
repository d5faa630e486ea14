package jwtx

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the decoded payload of a verified token. Registered claims are
// typed; everything else (namespaced IDM claims in particular) is reachable
// through Extra.
type Claims struct {
	jwt.RegisteredClaims

	// Role is set on tokens we issue ourselves.
	Role string `json:"role,omitempty"`

	// Scope is the space-delimited scope string IDM access tokens carry.
	Scope string `json:"scope,omitempty"`

	// Extra is the full payload as decoded JSON, registered claims included.
	Extra map[string]any `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps the raw payload in Extra.
func (c *Claims) UnmarshalJSON(data []byte) error {
	type plain Claims

	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var extra map[string]any
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}

	*c = Claims(p)
	c.Extra = extra
	return nil
}

// Strings returns a custom claim as a string slice. A lone string is
// treated as a one-element list; anything else yields nil.
func (c Claims) Strings(key string) []string {
	switch v := c.Extra[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Roles reads the role list the IDM places under "<namespace>/roles". An
// empty namespace reads a bare "roles" claim, falling back to Role.
func (c Claims) Roles(namespace string) []string {
	key := "roles"
	if namespace != "" {
		key = namespace + "/roles"
	}
	if roles := c.Strings(key); len(roles) > 0 {
		return roles
	}
	if c.Role != "" {
		return []string{c.Role}
	}
	return nil
}
