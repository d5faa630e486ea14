package jwtx

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// HSIssuer mints shared-secret tokens: the registration links we email
// out, and access tokens when running without an IDM.
type HSIssuer struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	issuer string
	now    func() time.Time
}

// NewHSIssuer returns an issuer for alg (HS256 when empty).
func NewHSIssuer(secret []byte, alg, issuer string) (*HSIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwtx: hmac issuer needs a secret")
	}
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok || !slices.Contains(HMACAlgorithms, alg) {
		return nil, fmt.Errorf("jwtx: %q is not an HMAC algorithm", alg)
	}
	return &HSIssuer{
		secret: slices.Clone(secret),
		method: method,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue signs a token for subject, optionally carrying a role, valid for ttl.
func (i *HSIssuer) Issue(subject, role string, audience []string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("jwtx: subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("jwtx: ttl must be positive")
	}

	now := i.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    i.issuer,
			Subject:   subject,
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return i.Sign(claims)
}

// Sign signs arbitrary claims as-is.
func (i *HSIssuer) Sign(claims Claims) (string, error) {
	s, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return s, nil
}
