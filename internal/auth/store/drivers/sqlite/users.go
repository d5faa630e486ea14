package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Path-Check/safeplaces-auth/internal/auth/domain"
	"github.com/Path-Check/safeplaces-auth/internal/auth/store"
)

type usersRepo struct {
	db  dbtx
	now func() time.Time
}

const userColumns = `id, idm_id, username, organization_id, created_at, updated_at`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	if u.ID == "" || u.IDMID == "" || u.Username == "" {
		return fmt.Errorf("store: create user: id, idm_id and username are required")
	}
	now := formatTime(r.now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.IDMID, u.Username, u.OrganizationID, now, now,
	)
	return mapConstraint(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByIDMID(ctx context.Context, idmID string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE idm_id = ?`, idmID)
	return scanUser(row)
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	return r.deleteWhere(ctx, "id", id)
}

func (r *usersRepo) DeleteUserByIDMID(ctx context.Context, idmID string) error {
	return r.deleteWhere(ctx, "idm_id", idmID)
}

func (r *usersRepo) deleteWhere(ctx context.Context, column, value string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE `+column+` = ?`, value)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) IDMToDB(ctx context.Context, idmID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE idm_id = ?`, idmID).Scan(&id)
	return id, mapNotFound(err)
}

func (r *usersRepo) DBToIDM(ctx context.Context, id string) (string, error) {
	var idmID string
	err := r.db.QueryRowContext(ctx, `SELECT idm_id FROM users WHERE id = ?`, id).Scan(&idmID)
	return idmID, mapNotFound(err)
}

type scanner interface {
	Scan(dest ...any) error
}

var (
	_ scanner = (*sql.Row)(nil)
	_ scanner = (*sql.Rows)(nil)
)

func scanUser(s scanner) (domain.User, error) {
	var (
		u                domain.User
		created, updated string
	)
	if err := s.Scan(&u.ID, &u.IDMID, &u.Username, &u.OrganizationID, &created, &updated); err != nil {
		return domain.User{}, mapNotFound(err)
	}

	var err error
	if u.CreatedAt, err = parseTime(created); err != nil {
		return domain.User{}, fmt.Errorf("store: users.created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.User{}, fmt.Errorf("store: users.updated_at: %w", err)
	}
	return u, nil
}
