package httpx

import "context"

type ctxKey string

// CtxKeySubject carries the authenticated principal's subject so
// request-scoped helpers (rate limiting, logging) can key on it without
// depending on the enforcer.
const CtxKeySubject ctxKey = "subject"

// ContextWithSubject returns ctx carrying sub.
func ContextWithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, CtxKeySubject, sub)
}

// SubjectFromContext returns the subject stored by ContextWithSubject.
func SubjectFromContext(ctx context.Context) string {
	sub, _ := ctx.Value(CtxKeySubject).(string)
	return sub
}
