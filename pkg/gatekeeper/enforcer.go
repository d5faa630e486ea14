package gatekeeper

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"

	"github.com/Path-Check/safeplaces-auth/pkg/httpx"
	"github.com/Path-Check/safeplaces-auth/pkg/jwtx"
	"github.com/Path-Check/safeplaces-auth/pkg/metricsx"
	"github.com/Path-Check/safeplaces-auth/pkg/slogx"
)

// DefaultTagHeader carries the denial tag on 403 responses.
const DefaultTagHeader = "PCF-Request-Tag"

// Config wires an Enforcer. Strategy and UserGetter are required.
type Config struct {
	Strategy   Strategy
	UserGetter UserGetter
	Authorizer Authorizer       // optional
	Source     CredentialSource // default FromCookie()
	TagHeader  string           // default DefaultTagHeader

	// Verbose logs denials at warn instead of debug.
	Verbose bool
	Logger  *slog.Logger
	Metrics *metricsx.Metrics
}

// Enforcer runs the request pipeline. It holds no per-request state and is
// safe for concurrent use.
type Enforcer struct {
	strategy  Strategy
	getUser   UserGetter
	authorize Authorizer
	source    CredentialSource
	tagHeader string
	verbose   bool
	logger    *slog.Logger
	metrics   *metricsx.Metrics
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Enforcer, error) {
	if cfg.Strategy == nil {
		return nil, errors.New("gatekeeper: strategy is required")
	}
	if cfg.UserGetter == nil {
		return nil, errors.New("gatekeeper: user getter is required")
	}
	if cfg.Source == nil {
		cfg.Source = FromCookie()
	}
	if cfg.TagHeader == "" {
		cfg.TagHeader = DefaultTagHeader
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Enforcer{
		strategy:  cfg.Strategy,
		getUser:   cfg.UserGetter,
		authorize: cfg.Authorizer,
		source:    cfg.Source,
		tagHeader: cfg.TagHeader,
		verbose:   cfg.Verbose,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}, nil
}

// With returns a copy of e using a different authorizer, so one enforcer
// can guard routes with different policies.
func (e *Enforcer) With(a Authorizer) *Enforcer {
	cp := *e
	cp.authorize = a
	return &cp
}

// Enforce runs the pipeline and, on success, returns r with the user and
// claims attached. Errors are always *Error.
func (e *Enforcer) Enforce(r *http.Request) (*http.Request, error) {
	if err := checkCSRF(r); err != nil {
		return nil, err
	}

	token, err := e.source.Extract(r)
	if err != nil {
		return nil, err
	}

	verifier, err := e.strategy.Resolve(r)
	if err != nil {
		return nil, newError(JSONWebKeySet, "resolve verifier", err)
	}

	ctx := r.Context()
	claims, err := verifier.Verify(ctx, token)
	if err != nil {
		if jwtx.IsKeyLookup(err) {
			return nil, newError(JSONWebKeySet, "", err)
		}
		return nil, newError(JSONWebToken, "", err)
	}

	user, err := e.getUser(ctx, claims.Subject)
	if err != nil {
		return nil, newError(UserGetterFailure, "", err)
	}
	if isNil(user) {
		return nil, newError(UserGetterNotFound, "no user for subject "+claims.Subject, nil)
	}

	if e.authorize != nil {
		if err := e.runAuthorizer(claims, r); err != nil {
			return nil, newError(AuthorizerFailure, "", err)
		}
	}

	ctx = withPrincipal(ctx, user, claims)
	ctx = httpx.ContextWithSubject(ctx, claims.Subject)
	return r.WithContext(ctx), nil
}

// isNil also catches typed nils such as (*User)(nil) boxed in the any.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func (e *Enforcer) runAuthorizer(claims jwtx.Claims, r *http.Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("authorizer panic: %v", p)
		}
	}()
	return e.authorize(claims, r)
}

// Middleware denies failing requests and passes the rest, enriched, to next.
func (e *Enforcer) Middleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			enriched, err := e.Enforce(r)
			if err != nil {
				e.Deny(w, r, err)
				return
			}
			e.metrics.ObserveDecision(metricsx.ResultAllow, "")
			next.ServeHTTP(w, enriched)
		})
	}
}

// Deny writes the 403 for err and logs the cause.
func (e *Enforcer) Deny(w http.ResponseWriter, r *http.Request, err error) {
	tag := Tag(err)
	e.metrics.ObserveDecision(metricsx.ResultDeny, tag)

	log := slogx.FromContextOr(r.Context(), e.logger)
	level := slog.LevelDebug
	if e.verbose {
		level = slog.LevelWarn
	}
	log.Log(r.Context(), level, "request denied",
		"tag", tag,
		"kind", KindOf(err).String(),
		"path", r.URL.Path,
		"err", err,
	)

	WriteForbidden(w, e.tagHeader, tag)
}

// WriteForbidden writes the bare 403 every denial uses.
func WriteForbidden(w http.ResponseWriter, header, tag string) {
	if header == "" {
		header = DefaultTagHeader
	}
	w.Header().Set(header, tag)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte("Forbidden"))
}
