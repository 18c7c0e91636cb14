package profile

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-app/gatehouse/internal/platform/db"
	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// Repository defines persistence operations for the profile module.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, userID int64) (Profile, error)
	FindIDByEmail(ctx context.Context, email string) (int64, error)
	Update(ctx context.Context, userID int64, name, email string) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool, pool: pool}
}

// WithTx runs fn against a transactional copy of the repository.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGRepository{db: tx, pool: r.pool})
	})
}

// Get fetches the account and its role names.
func (r *PGRepository) Get(ctx context.Context, userID int64) (Profile, error) {
	var p Profile
	err := r.db.QueryRow(ctx,
		`SELECT id, name, email, created_at, updated_at FROM users WHERE id = $1`, userID).
		Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrNotFound
		}
		return Profile{}, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT ro.name
		FROM roles ro
		JOIN user_roles ur ON ur.role_id = ro.id
		WHERE ur.user_id = $1
		ORDER BY ro.name`, userID)
	if err != nil {
		return Profile{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Profile{}, err
		}
		p.Roles = append(p.Roles, name)
	}
	return p, rows.Err()
}

// FindIDByEmail returns the id of the account holding the email, or 0.
func (r *PGRepository) FindIDByEmail(ctx context.Context, email string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return id, nil
}

// Update rewrites the account's name and email.
func (r *PGRepository) Update(ctx context.Context, userID int64, name, email string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET name = $1, email = $2, updated_at = $3 WHERE id = $4`,
		name, email, time.Now().UTC(), userID)
	if err != nil {
		return translateConflict(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the account credential.
func (r *PGRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		passwordHash, time.Now().UTC(), userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrConflict
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
