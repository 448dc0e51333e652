package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type UsersStore interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetPassword(ctx context.Context, id int64, hash, salt string) error
	SetTwoFactor(ctx context.Context, id int64, enabled bool, secretEnc string) error
	Count(ctx context.Context) (int64, error)
}

type usersStore struct {
	db *sql.DB
}

func NewUsersStore(db *sql.DB) UsersStore {
	return &usersStore{db: db}
}

const userColumns = `id, username, password_hash, password_salt, role_id, active, two_factor_enabled, totp_secret_enc, created_at, updated_at`

func (s *usersStore) GetByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row)
}

func (s *usersStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=?`, strings.TrimSpace(username))
	return scanUser(row)
}

func (s *usersStore) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	res, err := s.db.ExecContext(ctx, `INSERT INTO users(username, password_hash, password_salt, role_id, active, two_factor_enabled, totp_secret_enc, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?,?)`,
		strings.TrimSpace(u.Username), u.PasswordHash, u.PasswordSalt, u.RoleID, boolToInt(u.Active), boolToInt(u.TwoFactorEnabled), u.TOTPSecretEnc, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

func (s *usersStore) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET active=?, updated_at=? WHERE id=?`, boolToInt(active), time.Now().UTC(), id)
	return err
}

func (s *usersStore) SetPassword(ctx context.Context, id int64, hash, salt string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=?, password_salt=?, updated_at=? WHERE id=?`, hash, salt, time.Now().UTC(), id)
	return err
}

func (s *usersStore) SetTwoFactor(ctx context.Context, id int64, enabled bool, secretEnc string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET two_factor_enabled=?, totp_secret_enc=?, updated_at=? WHERE id=?`, boolToInt(enabled), secretEnc, time.Now().UTC(), id)
	return err
}

func (s *usersStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var active, twoFactor int
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.PasswordSalt, &u.RoleID, &active, &twoFactor, &u.TOTPSecretEnc, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.Active = active == 1
	u.TwoFactorEnabled = twoFactor == 1
	return &u, nil
}
