package permissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Repository defines data access for permissions.
type Repository interface {
	List(ctx context.Context, search string, limit, offset int) ([]Permission, int, error)
	ListAll(ctx context.Context) ([]Permission, error)
	Get(ctx context.Context, id int64) (Permission, error)
	FindByName(ctx context.Context, name string) (*Permission, error)
	Create(ctx context.Context, name string) (Permission, error)
	Update(ctx context.Context, id int64, name string) (Permission, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns a page of permissions, newest first, with the total count.
func (r *PGRepository) List(ctx context.Context, search string, limit, offset int) ([]Permission, int, error) {
	args := []interface{}{}
	where := ""
	argPos := 1
	if search != "" {
		where = fmt.Sprintf("WHERE name ILIKE $%d", argPos)
		args = append(args, "%"+search+"%")
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM permissions "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf("SELECT id, name, created_at, updated_at FROM permissions %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", where, argPos, argPos+1)
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	perms, err := scanPermissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return perms, total, nil
}

// ListAll returns every permission ordered by name, for selection UIs.
func (r *PGRepository) ListAll(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at, updated_at FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// Get fetches a permission by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// FindByName fetches a permission by exact name; nil when absent.
func (r *PGRepository) FindByName(ctx context.Context, name string) (*Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM permissions WHERE name = $1`, name).
		Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new permission.
func (r *PGRepository) Create(ctx context.Context, name string) (Permission, error) {
	now := time.Now().UTC()
	var p Permission
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (name, created_at, updated_at) VALUES ($1, $2, $2) RETURNING id, name, created_at, updated_at`, name, now).
		Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Permission{}, translateConflict(err)
	}
	return p, nil
}

// Update renames a permission, preserving identity.
func (r *PGRepository) Update(ctx context.Context, id int64, name string) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `UPDATE permissions SET name = $1, updated_at = $2 WHERE id = $3 RETURNING id, name, created_at, updated_at`, name, time.Now().UTC(), id).
		Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, translateConflict(err)
	}
	return p, nil
}

// Delete removes a permission; role assignments cascade through the join
// table's foreign key.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
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
