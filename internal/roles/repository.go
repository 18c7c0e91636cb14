package roles

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

// Repository defines data access for roles and their permission sets.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, search string, limit, offset int) ([]Role, int, error)
	Get(ctx context.Context, id int64) (Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, name string) (Role, error)
	Update(ctx context.Context, id int64, name string) (Role, error)
	Delete(ctx context.Context, id int64) error
	ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	AllPermissions(ctx context.Context) ([]Permission, error)
	ExistingPermissionIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
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

// List returns a page of roles, newest first, permission sets loaded.
func (r *PGRepository) List(ctx context.Context, search string, limit, offset int) ([]Role, int, error) {
	args := []interface{}{}
	where := ""
	argPos := 1
	if search != "" {
		where = fmt.Sprintf("WHERE name ILIKE $%d", argPos)
		args = append(args, "%"+search+"%")
		argPos++
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT count(*) FROM roles "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT id, name, created_at, updated_at FROM roles %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", where, argPos, argPos+1)
	args = append(args, limit, offset)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, 0, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range roles {
		perms, err := r.rolePermissions(ctx, roles[i].ID)
		if err != nil {
			return nil, 0, err
		}
		roles[i].Permissions = perms
	}
	return roles, total, nil
}

// Get fetches a role with its permission set.
func (r *PGRepository) Get(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	perms, err := r.rolePermissions(ctx, role.ID)
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}

// FindByName fetches a role by exact name; nil when absent.
func (r *PGRepository) FindByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM roles WHERE name = $1`, name).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

// Create inserts a new role.
func (r *PGRepository) Create(ctx context.Context, name string) (Role, error) {
	now := time.Now().UTC()
	var role Role
	err := r.db.QueryRow(ctx, `INSERT INTO roles (name, created_at, updated_at) VALUES ($1, $2, $2) RETURNING id, name, created_at, updated_at`, name, now).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, translateConflict(err)
	}
	return role, nil
}

// Update renames a role.
func (r *PGRepository) Update(ctx context.Context, id int64, name string) (Role, error) {
	var role Role
	err := r.db.QueryRow(ctx, `UPDATE roles SET name = $1, updated_at = $2 WHERE id = $3 RETURNING id, name, created_at, updated_at`, name, time.Now().UTC(), id).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, translateConflict(err)
	}
	return role, nil
}

// Delete removes a role; permission assignments and user memberships
// cascade through the join tables.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ReplacePermissions makes the role's permission set exactly the given
// set: members not listed are detached, new members attached.
func (r *PGRepository) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	existing, err := r.rolePermissions(ctx, roleID)
	if err != nil {
		return err
	}
	current := make(map[int64]struct{}, len(existing))
	for _, p := range existing {
		current[p.ID] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		keep[id] = struct{}{}
		if _, ok := current[id]; !ok {
			if _, err := r.db.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, id); err != nil {
				return err
			}
		}
	}
	for id := range current {
		if _, ok := keep[id]; !ok {
			if _, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// AllPermissions returns every permission, for the role edit selection UI.
func (r *PGRepository) AllPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// ExistingPermissionIDs reports which of the given ids resolve to stored
// permissions.
func (r *PGRepository) ExistingPermissionIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	existing := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id FROM permissions WHERE id = ANY($1)`, ids)
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

func (r *PGRepository) rolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrConflict
	}
	return err
}
