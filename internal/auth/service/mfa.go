package service

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Path-Check/safeplaces-auth/pkg/idm"
)

// e164 matches international phone numbers.
var e164 = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// MFAProvider is the IDM's MFA API behind an mfa_token.
type MFAProvider interface {
	ListAuthenticators(ctx context.Context, mfaToken string) ([]idm.Authenticator, error)
	Challenge(ctx context.Context, mfaToken, authenticatorID string) (idm.Challenge, error)
	AssociateSMS(ctx context.Context, mfaToken, phoneNumber string) (idm.Association, error)
	MFAOOBGrant(ctx context.Context, mfaToken, oobCode, bindingCode string) (idm.TokenSet, error)
	MFARecoveryGrant(ctx context.Context, mfaToken, recoveryCode string) (idm.TokenSet, error)
}

// MFAService drives the second login step. The idm MFA sentinels
// (ErrMFATokenExpired, ErrInvalidBindingCode, ...) pass through unchanged.
type MFAService struct {
	IDM MFAProvider
}

// Challenge sends a code to the user's first active SMS authenticator and
// returns the oob_code to verify it against.
func (s *MFAService) Challenge(ctx context.Context, mfaToken string) (string, error) {
	auths, err := s.IDM.ListAuthenticators(ctx, mfaToken)
	if err != nil {
		return "", err
	}

	var authID string
	for _, a := range auths {
		if a.IsSMS() && a.Active {
			authID = a.ID
			break
		}
	}
	if authID == "" {
		return "", ErrMFANotEnrolled
	}

	ch, err := s.IDM.Challenge(ctx, mfaToken, authID)
	if err != nil {
		return "", err
	}
	if ch.OOBCode == "" {
		return "", fmt.Errorf("%w: challenge response carries no oob_code", ErrIDP)
	}
	return ch.OOBCode, nil
}

// Enroll associates an SMS factor.
func (s *MFAService) Enroll(ctx context.Context, mfaToken, phoneNumber string) (idm.Association, error) {
	if !e164.MatchString(phoneNumber) {
		return idm.Association{}, ErrInvalidPhone
	}
	return s.IDM.AssociateSMS(ctx, mfaToken, phoneNumber)
}

// Verify completes the login with the code the user received.
func (s *MFAService) Verify(ctx context.Context, mfaToken, oobCode, bindingCode string) (idm.TokenSet, error) {
	if oobCode == "" || bindingCode == "" {
		return idm.TokenSet{}, ErrMissingAttribute
	}
	return s.IDM.MFAOOBGrant(ctx, mfaToken, oobCode, bindingCode)
}

// Recover completes the login with a recovery code. The result carries the
// replacement code the user must store.
func (s *MFAService) Recover(ctx context.Context, mfaToken, recoveryCode string) (idm.TokenSet, error) {
	if recoveryCode == "" {
		return idm.TokenSet{}, ErrMissingAttribute
	}
	return s.IDM.MFARecoveryGrant(ctx, mfaToken, recoveryCode)
}
