package gatekeeper

import (
	"context"

	"github.com/Path-Check/safeplaces-auth/pkg/jwtx"
)

type ctxKey int

const (
	userKey ctxKey = iota
	claimsKey
)

func withPrincipal(ctx context.Context, user any, claims jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, claimsKey, claims)
}

// UserFrom returns the user the enforcer attached, if any.
func UserFrom(ctx context.Context) (any, bool) {
	u := ctx.Value(userKey)
	return u, u != nil
}

// ClaimsFrom returns the verified claims the enforcer attached.
func ClaimsFrom(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(jwtx.Claims)
	return c, ok
}

// UserAs is UserFrom with a type assertion.
func UserAs[T any](ctx context.Context) (T, bool) {
	u, ok := ctx.Value(userKey).(T)
	return u, ok
}
