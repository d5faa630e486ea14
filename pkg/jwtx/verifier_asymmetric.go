package jwtx

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var rs256Methods = []string{jwt.SigningMethodRS256.Alg()}

// AsymmetricVerifier validates IDM-issued access tokens: RS256 only, key picked
// by kid from a KeySource, audience required.
type AsymmetricVerifier struct {
	keys     KeySource
	audience string
	opts     options
}

// NewAsymmetricVerifier builds a verifier that accepts tokens for audience.
func NewAsymmetricVerifier(keys KeySource, audience string, opts ...Option) (*AsymmetricVerifier, error) {
	if keys == nil {
		return nil, errors.New("jwtx: asymmetric verifier needs a key source")
	}
	if audience == "" {
		return nil, errors.New("jwtx: asymmetric verifier needs an audience")
	}
	return &AsymmetricVerifier{keys: keys, audience: audience, opts: buildOptions(opts)}, nil
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *AsymmetricVerifier) Verify(ctx context.Context, tokenStr string) (Claims, error) {
	parserOpts := append(v.opts.parserOptions(rs256Methods), jwt.WithAudience(v.audience))
	parser := jwt.NewParser(parserOpts...)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMissingKID
		}

		pub, err := v.keys.SigningKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("%w: kid %q: %w", ErrKeyLookup, kid, err)
		}

		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: kid %q is not an RSA key", ErrKeyLookup, kid)
		}
		return rsaPub, nil
	})
	if err != nil {
		return Claims{}, classify(err, tokenStr, rs256Methods)
	}
	return claims, nil
}
