package store

import (
	"context"
	"errors"

	"github.com/Path-Check/safeplaces-auth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it.
// Repositories are reached through methods so a Tx cannot open another Tx.
type Store interface {
	Users() Users

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Users maps application accounts to IDM identities.
type Users interface {
	// CreateUser inserts u. ID must be set by the caller (ULID).
	// Duplicate idm_id or username yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByIDMID(ctx context.Context, idmID string) (domain.User, error)

	// ListUsers returns every user, oldest first.
	ListUsers(ctx context.Context) ([]domain.User, error)

	DeleteUser(ctx context.Context, id string) error
	DeleteUserByIDMID(ctx context.Context, idmID string) error

	// IDMToDB and DBToIDM translate between the two id spaces.
	IDMToDB(ctx context.Context, idmID string) (string, error)
	DBToIDM(ctx context.Context, id string) (string, error)
}
