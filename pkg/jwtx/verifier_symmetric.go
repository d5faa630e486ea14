package jwtx

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// HMACAlgorithms are the algorithms a SymmetricVerifier may be configured with.
var HMACAlgorithms = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// SymmetricVerifier validates tokens signed with a shared secret. Only the
// configured algorithms are accepted, whatever the token header claims.
type SymmetricVerifier struct {
	secret  []byte
	methods []string
	opts    options
}

// NewSymmetricVerifier builds a shared-secret verifier for the given
// algorithms. At least one is required.
func NewSymmetricVerifier(secret []byte, algs ...string) (*SymmetricVerifier, error) {
	return NewSymmetricVerifierWith(secret, algs, nil)
}

// NewSymmetricVerifierWith is NewSymmetricVerifier with issuer, audience or
// leeway checks on top of the signature.
func NewSymmetricVerifierWith(secret []byte, algs []string, opts []Option) (*SymmetricVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwtx: symmetric verifier needs a secret")
	}
	if len(algs) == 0 {
		return nil, errors.New("jwtx: symmetric verifier needs at least one algorithm")
	}
	for _, alg := range algs {
		if !slices.Contains(HMACAlgorithms, alg) {
			return nil, fmt.Errorf("jwtx: %q is not an HMAC algorithm", alg)
		}
	}
	return &SymmetricVerifier{
		secret:  slices.Clone(secret),
		methods: slices.Clone(algs),
		opts:    buildOptions(opts),
	}, nil
}

// Algorithms returns the allow-list.
func (v *SymmetricVerifier) Algorithms() []string {
	return slices.Clone(v.methods)
}

// Verify validates the JWT string and returns its parsed Claims. The secret
// is local, so failures are always ErrInvalidToken.
func (v *SymmetricVerifier) Verify(_ context.Context, tokenStr string) (Claims, error) {
	parser := jwt.NewParser(v.opts.parserOptions(v.methods)...)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrAlgMismatch
		}
		return v.secret, nil
	})
	if err != nil {
		return Claims{}, classify(err, tokenStr, v.methods)
	}
	return claims, nil
}
