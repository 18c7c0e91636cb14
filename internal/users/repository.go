package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-app/gatehouse/internal/platform/db"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Repository defines data access for users and their role sets.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, search string, limit, offset int) ([]User, int, error)
	Get(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, name, email, passwordHash string) (User, error)
	Update(ctx context.Context, id int64, name, email string) (User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error
	AllRoles(ctx context.Context) ([]Role, error)
	ExistingRoleIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool, pool: pool}
}

// WithTx runs fn against a transactional copy of the repository.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGRepository{db: tx, pool: r.pool})
	})
}

// List returns a page of users, newest first, role sets loaded. Search
// matches name or email.
func (r *PGRepository) List(ctx context.Context, search string, limit, offset int) ([]User, int, error) {
	args := []interface{}{}
	where := ""
	argPos := 1
	if search != "" {
		where = fmt.Sprintf("WHERE (name ILIKE $%d OR email ILIKE $%d)", argPos, argPos)
		args = append(args, "%"+search+"%")
		argPos++
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT id, name, email, password_hash, created_at, updated_at FROM users %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", where, argPos, argPos+1)
	args = append(args, limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range users {
		roles, err := r.userRoles(ctx, users[i].ID)
		if err != nil {
			return nil, 0, err
		}
		users[i].Roles = roles
	}
	return users, total, nil
}

// Get fetches a user with their role set.
func (r *PGRepository) Get(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.db.QueryRow(ctx, `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	roles, err := r.userRoles(ctx, u.ID)
	if err != nil {
		return User{}, err
	}
	u.Roles = roles
	return u, nil
}

// FindByEmail fetches a user by exact email; nil when absent.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.QueryRow(ctx, `SELECT id, name, email, password_hash, created_at, updated_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user.
func (r *PGRepository) Create(ctx context.Context, name, email, passwordHash string) (User, error) {
	now := time.Now().UTC()
	var u User
	err := r.db.QueryRow(ctx, `INSERT INTO users (name, email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $4) RETURNING id, name, email, password_hash, created_at, updated_at`, name, email, passwordHash, now).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, translateConflict(err)
	}
	return u, nil
}

// Update changes name and email, leaving the credential untouched.
func (r *PGRepository) Update(ctx context.Context, id int64, name, email string) (User, error) {
	var u User
	err := r.db.QueryRow(ctx, `UPDATE users SET name = $1, email = $2, updated_at = $3 WHERE id = $4 RETURNING id, name, email, password_hash, created_at, updated_at`, name, email, time.Now().UTC(), id).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, translateConflict(err)
	}
	return u, nil
}

// UpdatePassword replaces the stored credential.
func (r *PGRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a user; role memberships cascade through the join table.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReplaceRoles makes the user's role set exactly the given set.
func (r *PGRepository) ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	existing, err := r.userRoles(ctx, userID)
	if err != nil {
		return err
	}
	current := make(map[int64]struct{}, len(existing))
	for _, role := range existing {
		current[role.ID] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		keep[id] = struct{}{}
		if _, ok := current[id]; !ok {
			if _, err := r.db.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, id); err != nil {
				return err
			}
		}
	}
	for id := range current {
		if _, ok := keep[id]; !ok {
			if _, err := r.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// AllRoles returns every role, for the user edit selection UI.
func (r *PGRepository) AllRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

// ExistingRoleIDs reports which of the given ids resolve to stored roles.
func (r *PGRepository) ExistingRoleIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	existing := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id FROM roles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

var _ Repository = (*PGRepository)(nil)

func (r *PGRepository) userRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.db.Query(ctx, `
		SELECT ro.id, ro.name
		FROM roles ro
		JOIN user_roles ur ON ur.role_id = ro.id
		WHERE ur.user_id = $1
		ORDER BY ro.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

func scanRoles(rows pgx.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrConflict
	}
	return err
}
