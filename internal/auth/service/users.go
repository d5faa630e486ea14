package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Path-Check/safeplaces-auth/internal/auth/domain"
	"github.com/Path-Check/safeplaces-auth/internal/auth/store"
	"github.com/Path-Check/safeplaces-auth/pkg/idm"
	"github.com/Path-Check/safeplaces-auth/pkg/idx"
	"github.com/Path-Check/safeplaces-auth/pkg/jwtx"
	"github.com/Path-Check/safeplaces-auth/pkg/slogx"
)

// DefaultRegistrationTTL is how long an emailed registration link works.
const DefaultRegistrationTTL = 5 * 24 * time.Hour

// UserDirectory is the part of the IDM connector user management needs.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (idm.User, error)
	ListUsers(ctx context.Context) ([]idm.User, error)
	GetRoles(ctx context.Context, id string) ([]idm.Role, error)
	CreateUser(ctx context.Context, email string) (string, error)
	DeleteUser(ctx context.Context, id string) error
	UpdateUser(ctx context.Context, id string, update map[string]any) error
	AssignRole(ctx context.Context, userID, roleName string, isNewUser bool) error
	ListEnrollments(ctx context.Context, userID string) ([]idm.Enrollment, error)
	DeleteEnrollment(ctx context.Context, enrollmentID string) error
	CreateEmailVerificationTicket(ctx context.Context, userID, resultURL string) (string, error)
	SendPasswordResetEmail(ctx context.Context, email string) error
}

// TokenIssuer mints registration tokens.
type TokenIssuer interface {
	Issue(subject, role string, audience []string, ttl time.Duration) (string, error)
}

// UserView is a user as the management API returns it: database id,
// IDM profile and highest role.
type UserView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	Name          string     `json:"name,omitempty"`
	Role          string     `json:"role,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// CreateUserInput is the body of a user creation request.
type CreateUserInput struct {
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id"`

	// RedirectURL overrides the configured registration page.
	RedirectURL string `json:"redirect_url,omitempty"`
}

// CreatedUser is returned after a successful creation.
type CreatedUser struct {
	ID              string `json:"id"`
	RegistrationURL string `json:"registration_url"`
}

// UserService manages users across the IDM and the application database.
type UserService struct {
	IDM   UserDirectory
	Store store.Store

	Issuer   TokenIssuer
	Verifier jwtx.Verifier // checks registration tokens

	// RedirectURL is the registration page the verification ticket lands on.
	RedirectURL     string
	RegistrationTTL time.Duration
}

// List returns every IDM user with its database id and role. A user the
// database does not know is an error: reconciliation should have fixed it.
func (s *UserService) List(ctx context.Context) ([]UserView, error) {
	users, err := s.IDM.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %w", ErrIDP, err)
	}

	out := make([]UserView, 0, len(users))
	for _, u := range users {
		dbID, err := s.Store.Users().IDMToDB(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to find user in database: %s: %w", ErrDatabase, u.Email, err)
		}
		view, err := s.view(ctx, dbID, u)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// Get returns one user by database id.
func (s *UserService) Get(ctx context.Context, id string) (UserView, error) {
	idmID, err := s.idmID(ctx, id)
	if err != nil {
		return UserView{}, err
	}

	u, err := s.IDM.GetUser(ctx, idmID)
	if err != nil {
		if errors.Is(err, idm.ErrNotFound) {
			return UserView{}, ErrUserNotFound
		}
		return UserView{}, fmt.Errorf("%w: get user: %w", ErrIDP, err)
	}
	return s.view(ctx, id, u)
}

func (s *UserService) view(ctx context.Context, dbID string, u idm.User) (UserView, error) {
	roles, err := s.IDM.GetRoles(ctx, u.ID)
	if err != nil {
		return UserView{}, fmt.Errorf("%w: unable to get role of user: %s: %w", ErrIDP, u.Email, err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return UserView{
		ID:            dbID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Name:          u.Name,
		Role:          domain.HighestRole(names),
		CreatedAt:     u.CreatedAt,
		LastLogin:     u.LastLogin,
	}, nil
}

// Create provisions a user in the IDM and the database, then returns the
// verification link that leads to registration. Any failure after the IDM
// account exists deletes what was created so far.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (CreatedUser, error) {
	log := slogx.FromContext(ctx)

	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.OrganizationID == "" {
		return CreatedUser{}, ErrMissingAttribute
	}
	if !domain.ValidRole(in.Role) {
		return CreatedUser{}, ErrInvalidRole
	}
	redirect := in.RedirectURL
	if redirect == "" {
		redirect = s.RedirectURL
	}

	// 1. Create the IDM account.
	idmID, err := s.IDM.CreateUser(ctx, in.Email)
	if err != nil {
		if errors.Is(err, idm.ErrConflict) {
			return CreatedUser{}, ErrUserExists
		}
		return CreatedUser{}, fmt.Errorf("%w: create user: %w", ErrIDP, err)
	}

	rollback := func(dbID string) {
		if err := s.IDM.DeleteUser(ctx, idmID); err != nil {
			log.Error("rollback: failed to delete idm user", slog.String("idm_id", idmID), slog.Any("error", err))
		}
		if dbID == "" {
			return
		}
		if err := s.Store.Users().DeleteUser(ctx, dbID); err != nil {
			log.Error("rollback: failed to delete database user", slog.String("id", dbID), slog.Any("error", err))
		}
	}

	// 2. Give it its role. New users have none to remove.
	if err := s.IDM.AssignRole(ctx, idmID, in.Role, true); err != nil {
		rollback("")
		return CreatedUser{}, fmt.Errorf("%w: unable to assign role to user: %w", ErrIDP, err)
	}

	// 3. Record it in the database.
	dbID := idx.New().String()
	err = s.Store.Users().CreateUser(ctx, domain.User{
		ID:             dbID,
		IDMID:          idmID,
		Username:       in.Email,
		OrganizationID: in.OrganizationID,
	})
	if err != nil {
		rollback("")
		if errors.Is(err, store.ErrAlreadyExists) {
			return CreatedUser{}, ErrUserExists
		}
		return CreatedUser{}, fmt.Errorf("%w: unable to create user in database: %w", ErrDatabase, err)
	}

	// 4. Issue the registration token and embed it in the redirect.
	ttl := s.RegistrationTTL
	if ttl <= 0 {
		ttl = DefaultRegistrationTTL
	}
	token, err := s.Issuer.Issue(idmID, "", nil, ttl)
	if err != nil {
		rollback(dbID)
		return CreatedUser{}, fmt.Errorf("%w: unable to issue registration token: %w", ErrSigning, err)
	}
	resultURL, err := withQuery(redirect, "t", token)
	if err != nil {
		rollback(dbID)
		return CreatedUser{}, fmt.Errorf("%w: registration redirect: %w", ErrSigning, err)
	}

	// 5. Ask the IDM for the verification ticket the user gets emailed.
	ticket, err := s.IDM.CreateEmailVerificationTicket(ctx, idmID, resultURL)
	if err != nil {
		rollback(dbID)
		return CreatedUser{}, fmt.Errorf("%w: unable to create email verification ticket: %w", ErrIDP, err)
	}

	log.Info("user created",
		slog.String("id", dbID),
		slog.String("idm_id", idmID),
		slog.String("role", in.Role),
	)
	return CreatedUser{ID: dbID, RegistrationURL: ticket}, nil
}

// UpdateName changes the display name.
func (s *UserService) UpdateName(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrMissingAttribute
	}
	idmID, err := s.idmID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.IDM.UpdateUser(ctx, idmID, map[string]any{"name": name}); err != nil {
		return s.idpErr("update user", err)
	}
	return nil
}

// AssignRole replaces the user's role.
func (s *UserService) AssignRole(ctx context.Context, id, role string) error {
	if !domain.ValidRole(role) {
		return ErrInvalidRole
	}
	idmID, err := s.idmID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.IDM.AssignRole(ctx, idmID, role, false); err != nil {
		return s.idpErr("assign role", err)
	}
	return nil
}

// Delete removes the user from the IDM, then from the database. An IDM
// account that is already gone does not block the database delete.
func (s *UserService) Delete(ctx context.Context, id string) error {
	idmID, err := s.idmID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.IDM.DeleteUser(ctx, idmID); err != nil && !errors.Is(err, idm.ErrNotFound) {
		return fmt.Errorf("%w: unable to delete user from idp: %w", ErrIDP, err)
	}
	if err := s.Store.Users().DeleteUser(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: unable to delete user from database: %w", ErrDatabase, err)
	}
	slogx.FromContext(ctx).Info("user deleted", slog.String("id", id), slog.String("idm_id", idmID))
	return nil
}

// ResetMFA deletes every MFA enrollment so the user enrolls again on the
// next login.
func (s *UserService) ResetMFA(ctx context.Context, id string) error {
	idmID, err := s.idmID(ctx, id)
	if err != nil {
		return err
	}
	enrollments, err := s.IDM.ListEnrollments(ctx, idmID)
	if err != nil {
		return s.idpErr("list enrollments", err)
	}
	var errs []error
	for _, e := range enrollments {
		if err := s.IDM.DeleteEnrollment(ctx, e.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: delete enrollments: %w", ErrIDP, errors.Join(errs...))
	}
	return nil
}

// ResetPassword mails a reset link. idm.ErrTooManyRequests passes through.
func (s *UserService) ResetPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrMissingAttribute
	}
	if err := s.IDM.SendPasswordResetEmail(ctx, email); err != nil {
		if errors.Is(err, idm.ErrTooManyRequests) {
			return err
		}
		return fmt.Errorf("%w: send password reset: %w", ErrIDP, err)
	}
	return nil
}

// Register completes the account behind a registration token by setting
// the chosen name and password.
func (s *UserService) Register(ctx context.Context, token, name, password string) error {
	if token == "" {
		return ErrInvalidToken
	}
	if name == "" || password == "" {
		return ErrMissingAttribute
	}
	claims, err := s.Verifier.Verify(ctx, token)
	if err != nil || claims.Subject == "" {
		slogx.FromContext(ctx).Debug("registration token rejected", slog.Any("error", err))
		return ErrInvalidToken
	}
	if err := s.IDM.UpdateUser(ctx, claims.Subject, map[string]any{"name": name, "password": password}); err != nil {
		return s.idpErr("unable to update user registration", err)
	}
	return nil
}

// Principal resolves the enforcer's subject to the application user. An
// unknown subject yields (nil, nil), which the enforcer denies.
func (s *UserService) Principal(ctx context.Context, subject string) (any, error) {
	u, err := s.Store.Users().GetUserByIDMID(ctx, subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) idmID(ctx context.Context, id string) (string, error) {
	if !idx.Valid(id) {
		return "", ErrUserNotFound
	}
	idmID, err := s.Store.Users().DBToIDM(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDatabase, err)
	}
	return idmID, nil
}

func (s *UserService) idpErr(action string, err error) error {
	if errors.Is(err, idm.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%w: %s: %w", ErrIDP, action, err)
}

func withQuery(raw, key, value string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
