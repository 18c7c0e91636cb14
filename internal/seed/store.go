package seed

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store using PostgreSQL upserts.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// UpsertPermission inserts the permission if absent and returns its id.
func (s *PGStore) UpsertPermission(ctx context.Context, name string) (int64, error) {
	return s.upsertNamed(ctx, "permissions", name)
}

// UpsertRole inserts the role if absent and returns its id.
func (s *PGStore) UpsertRole(ctx context.Context, name string) (int64, error) {
	return s.upsertNamed(ctx, "roles", name)
}

func (s *PGStore) upsertNamed(ctx context.Context, table, name string) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+table+` (name, created_at, updated_at) VALUES ($1, $2, $2)
		 ON CONFLICT (name) DO NOTHING RETURNING id`, name, now).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	// Row already existed; the conflict suppressed RETURNING.
	err = s.pool.QueryRow(ctx, `SELECT id FROM `+table+` WHERE name = $1`, name).Scan(&id)
	return id, err
}

// GrantPermission links a permission to a role if not already linked.
func (s *PGStore) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roleID, permissionID)
	return err
}

// EnsureUser inserts the account if absent and returns its id. An
// existing account keeps its current credential.
func (s *PGStore) EnsureUser(ctx context.Context, name, email, passwordHash string) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (email) DO NOTHING RETURNING id`, name, email, passwordHash, now).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = s.pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	return id, err
}

// AssignRole links a role to a user if not already linked.
func (s *PGStore) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, roleID)
	return err
}

var _ Store = (*PGStore)(nil)
