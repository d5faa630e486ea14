package service

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Path-Check/safeplaces-auth/internal/auth/domain"
	"github.com/Path-Check/safeplaces-auth/internal/auth/store"
	"github.com/Path-Check/safeplaces-auth/internal/auth/store/drivers/sqlite"
	"github.com/Path-Check/safeplaces-auth/pkg/idm"
	"github.com/Path-Check/safeplaces-auth/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedUser(t *testing.T, st store.Store, idmID, email string) domain.User {
	t.Helper()
	u := domain.User{ID: idx.New().String(), IDMID: idmID, Username: email, OrganizationID: "org-1"}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

// fakeDirectory is an in-memory IDM. Fail* hooks inject errors per method.
type fakeDirectory struct {
	mu          sync.Mutex
	users       map[string]idm.User
	roles       map[string][]idm.Role
	enrollments map[string][]idm.Enrollment
	updates     map[string]map[string]any
	tickets     map[string]string
	deleted     []string
	resets      []string
	next        int

	FailAssign error
	FailTicket error
	FailReset  error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:       map[string]idm.User{},
		roles:       map[string][]idm.Role{},
		enrollments: map[string][]idm.Enrollment{},
		updates:     map[string]map[string]any{},
		tickets:     map[string]string{},
	}
}

func (f *fakeDirectory) add(id, email, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = idm.User{ID: id, Email: email, CreatedAt: time.Unix(1700000000, 0).UTC()}
	if role != "" {
		f.roles[id] = []idm.Role{{ID: "id-" + role, Name: role}}
	}
}

func (f *fakeDirectory) GetUser(_ context.Context, id string) (idm.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return idm.User{}, &idm.Error{Op: "get_user", StatusCode: 404}
	}
	return u, nil
}

func (f *fakeDirectory) ListUsers(context.Context) ([]idm.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]idm.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeDirectory) GetRoles(_ context.Context, id string) ([]idm.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[id], nil
}

func (f *fakeDirectory) CreateUser(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return "", &idm.Error{Op: "create_user", StatusCode: 409}
		}
	}
	f.next++
	id := "auth0|new" + string(rune('0'+f.next))
	f.users[id] = idm.User{ID: id, Email: email}
	return id, nil
}

func (f *fakeDirectory) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return &idm.Error{Op: "delete_user", StatusCode: 404}
	}
	delete(f.users, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDirectory) UpdateUser(_ context.Context, id string, update map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return &idm.Error{Op: "update_user", StatusCode: 404}
	}
	f.updates[id] = update
	return nil
}

func (f *fakeDirectory) AssignRole(_ context.Context, userID, roleName string, _ bool) error {
	if f.FailAssign != nil {
		return f.FailAssign
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID] = []idm.Role{{ID: "id-" + roleName, Name: roleName}}
	return nil
}

func (f *fakeDirectory) ListEnrollments(_ context.Context, userID string) ([]idm.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.enrollments[userID]), nil
}

func (f *fakeDirectory) DeleteEnrollment(_ context.Context, enrollmentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for user, list := range f.enrollments {
		for i, e := range list {
			if e.ID == enrollmentID {
				f.enrollments[user] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return errors.New("no such enrollment")
}

func (f *fakeDirectory) CreateEmailVerificationTicket(_ context.Context, userID, resultURL string) (string, error) {
	if f.FailTicket != nil {
		return "", f.FailTicket
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[userID] = resultURL
	return "https://idm.test/tickets/" + userID, nil
}

func (f *fakeDirectory) SendPasswordResetEmail(_ context.Context, email string) error {
	if f.FailReset != nil {
		return f.FailReset
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, email)
	return nil
}
