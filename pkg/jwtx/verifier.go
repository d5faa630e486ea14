package jwtx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
// Implementations may block on the network (key lookup), hence the context.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// VerifierFunc adapts a plain function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (Claims, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Claims, error) {
	return f(ctx, token)
}

// Failures come in two classes. ErrKeyLookup means trust material could not
// be obtained (our key distribution is broken); ErrInvalidToken means the
// presented token itself is bad. Every error returned by a verifier wraps
// exactly one of the two.
var (
	ErrKeyLookup    = errors.New("jwtx: signing key lookup failed")
	ErrInvalidToken = errors.New("jwtx: invalid token")
)

// Specific reasons, wrapped alongside one of the classes above.
var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrMissingKID  = errors.New("jwtx: missing kid")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// IsKeyLookup reports whether err came from fetching trust material rather
// than from the token.
func IsKeyLookup(err error) bool {
	return errors.Is(err, ErrKeyLookup)
}

// Option tweaks claim validation shared by both verifier variants.
type Option func(*options)

type options struct {
	issuer   string
	audience string
	leeway   time.Duration
}

// WithIssuer requires the iss claim to match.
func WithIssuer(issuer string) Option {
	return func(o *options) { o.issuer = issuer }
}

// WithAudience requires the aud claim to contain audience.
func WithAudience(audience string) Option {
	return func(o *options) { o.audience = audience }
}

// WithLeeway allows small clock skew when validating exp/nbf/iat.
func WithLeeway(d time.Duration) Option {
	return func(o *options) { o.leeway = d }
}

func (o options) parserOptions(methods []string) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithIssuedAt(),
	}
	if o.issuer != "" {
		opts = append(opts, jwt.WithIssuer(o.issuer))
	}
	if o.audience != "" {
		opts = append(opts, jwt.WithAudience(o.audience))
	}
	if o.leeway > 0 {
		opts = append(opts, jwt.WithLeeway(o.leeway))
	}
	return opts
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// classify turns a jwt/v5 parse error into one of our two classes. The raw
// token is only inspected to tell an algorithm rejection apart from a bad
// signature, since the parser reports both as ErrTokenSignatureInvalid.
func classify(err error, raw string, allowed []string) error {
	if errors.Is(err, ErrKeyLookup) {
		return err
	}

	var reason error
	switch {
	case errors.Is(err, ErrMissingKID):
		reason = ErrMissingKID
	case errors.Is(err, ErrAlgMismatch):
		reason = ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenMalformed):
		reason = ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		reason = ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		reason = ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		reason = ErrAudience
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		reason = ErrIssuer
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		if !slices.Contains(allowed, headerAlg(raw)) {
			reason = ErrAlgMismatch
		} else {
			reason = ErrInvalidSig
		}
	default:
		reason = ErrInvalidClaim
	}

	return fmt.Errorf("%w: %w: %w", ErrInvalidToken, reason, err)
}

// headerAlg extracts the alg header without verifying anything.
func headerAlg(raw string) string {
	head, _, ok := strings.Cut(raw, ".")
	if !ok {
		return ""
	}
	b, err := base64.RawURLEncoding.DecodeString(head)
	if err != nil {
		return ""
	}
	var h struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(b, &h); err != nil {
		return ""
	}
	return h.Alg
}
