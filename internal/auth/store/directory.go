package store

import (
	"context"

	"github.com/Path-Check/safeplaces-auth/pkg/idm"
)

// Directory adapts a Store to idm.Directory for reconciliation, keeping the
// idm package free of the application schema.
type Directory struct {
	store Store
}

// NewDirectory wraps st.
func NewDirectory(st Store) *Directory {
	return &Directory{store: st}
}

// ListDirectoryUsers lists every application user with its IDM id.
func (d *Directory) ListDirectoryUsers(ctx context.Context) ([]idm.DirectoryUser, error) {
	users, err := d.store.Users().ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]idm.DirectoryUser, 0, len(users))
	for _, u := range users {
		out = append(out, idm.DirectoryUser{ID: u.ID, IDMID: u.IDMID, Email: u.Username})
	}
	return out, nil
}

// DeleteDirectoryUser removes an application user by database id.
func (d *Directory) DeleteDirectoryUser(ctx context.Context, id string) error {
	return d.store.Users().DeleteUser(ctx, id)
}
