package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Path-Check/safeplaces-auth/internal/auth/domain"
	"github.com/Path-Check/safeplaces-auth/internal/auth/store"
	"github.com/Path-Check/safeplaces-auth/pkg/idm"
	"github.com/Path-Check/safeplaces-auth/pkg/jwtx"
	"github.com/Path-Check/safeplaces-auth/pkg/slogx"
	"github.com/golang-jwt/jwt/v5"
)

// PasswordGranter performs the end-user password login.
type PasswordGranter interface {
	PasswordRealmGrant(ctx context.Context, username, password string) (idm.TokenSet, error)
}

// LoginResult is a successful login: the tokens for the cookie and the
// application identity for the body.
type LoginResult struct {
	Tokens idm.TokenSet `json:"-"`
	ID     string       `json:"id"`
	Role   string       `json:"role"`
}

type LoginService struct {
	IDM   PasswordGranter
	Store store.Store

	// ClaimNamespace prefixes the roles claim, as in "<ns>/roles".
	ClaimNamespace string
}

// Login exchanges credentials for tokens. *idm.MFARequiredError and
// idm.ErrInvalidCredentials pass through for the caller to answer.
func (s *LoginService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if username == "" || password == "" {
		return LoginResult{}, ErrMissingAttribute
	}

	tokens, err := s.IDM.PasswordRealmGrant(ctx, username, password)
	if err != nil {
		var mfa *idm.MFARequiredError
		if errors.As(err, &mfa) || errors.Is(err, idm.ErrInvalidCredentials) {
			return LoginResult{}, err
		}
		return LoginResult{}, fmt.Errorf("%w: password grant: %w", ErrIDP, err)
	}

	// The token comes straight from the IDM; it is decoded here only to
	// learn who logged in. Every later request verifies it.
	var claims jwtx.Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokens.AccessToken, &claims); err != nil {
		return LoginResult{}, fmt.Errorf("unable to decode access token: %w", err)
	}
	if claims.Subject == "" {
		return LoginResult{}, errors.New("unable to decode access token: no subject")
	}

	dbID, err := s.Store.Users().IDMToDB(ctx, claims.Subject)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: unable to find user in database: %w", ErrDatabase, err)
	}

	role := domain.HighestRole(claims.Roles(s.ClaimNamespace))
	slogx.FromContext(ctx).Info("user logged in", slog.String("id", dbID), slog.String("role", role))
	return LoginResult{Tokens: tokens, ID: dbID, Role: role}, nil
}
