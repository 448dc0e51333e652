package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

type RolesStore interface {
	GetByID(ctx context.Context, id int64) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Ensure(ctx context.Context, name string, permissions []string) (*Role, error)
	ListAll(ctx context.Context) ([]Role, error)
}

type rolesStore struct {
	db *sql.DB
}

func NewRolesStore(db *sql.DB) RolesStore {
	return &rolesStore{db: db}
}

func (s *rolesStore) GetByID(ctx context.Context, id int64) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, permissions, created_at, updated_at FROM roles WHERE id=?`, id)
	return scanRole(row)
}

func (s *rolesStore) GetByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, permissions, created_at, updated_at FROM roles WHERE name=?`, strings.TrimSpace(name))
	return scanRole(row)
}

// Ensure creates the role if missing; an existing role keeps its
// stored permissions.
func (s *rolesStore) Ensure(ctx context.Context, name string, permissions []string) (*Role, error) {
	existing, err := s.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	permsJSON, _ := json.Marshal(permissions)
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO roles(name, permissions, created_at, updated_at) VALUES(?,?,?,?)`,
		strings.TrimSpace(name), string(permsJSON), now, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Role{ID: id, Name: name, Permissions: permissions, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *rolesStore) ListAll(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, permissions, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Role
	for rows.Next() {
		var r Role
		var permsStr string
		if err := rows.Scan(&r.ID, &r.Name, &permsStr, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(permsStr), &r.Permissions)
		res = append(res, r)
	}
	return res, rows.Err()
}

func scanRole(row rowScanner) (*Role, error) {
	var r Role
	var permsStr string
	if err := row.Scan(&r.ID, &r.Name, &permsStr, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	_ = json.Unmarshal([]byte(permsStr), &r.Permissions)
	return &r, nil
}
