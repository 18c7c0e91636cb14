// Package seed provisions the baseline RBAC data: the permission
// catalog, the admin and user roles, and the initial admin account.
// Running it repeatedly is safe; existing rows are left untouched.
package seed

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

// DefaultAdmin is the bootstrap account created on first seed. The
// password must be rotated after the first login.
var DefaultAdmin = Account{
	Name:     "Admin",
	Email:    "admin@example.com",
	Password: "password",
}

// Account describes a seeded user account.
type Account struct {
	Name     string
	Email    string
	Password string
}

// Store defines the persistence operations seeding needs. Every method
// is an upsert: repeat calls with the same arguments change nothing.
type Store interface {
	UpsertPermission(ctx context.Context, name string) (int64, error)
	UpsertRole(ctx context.Context, name string) (int64, error)
	GrantPermission(ctx context.Context, roleID, permissionID int64) error
	EnsureUser(ctx context.Context, name, email, passwordHash string) (int64, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
}

// Seeder provisions baseline data through a Store.
type Seeder struct {
	logger *slog.Logger
	store  Store
}

// New builds Seeder instance.
func New(logger *slog.Logger, store Store) *Seeder {
	return &Seeder{logger: logger, store: store}
}

// Run seeds the catalog, the two baseline roles and the admin account.
func (s *Seeder) Run(ctx context.Context) error {
	permIDs := make(map[string]int64)
	for _, name := range shared.PermissionCatalog() {
		id, err := s.store.UpsertPermission(ctx, name)
		if err != nil {
			return err
		}
		permIDs[name] = id
	}
	s.logger.Info("seeded permissions", slog.Int("count", len(permIDs)))

	adminRole, err := s.store.UpsertRole(ctx, "admin")
	if err != nil {
		return err
	}
	for _, id := range permIDs {
		if err := s.store.GrantPermission(ctx, adminRole, id); err != nil {
			return err
		}
	}

	userRole, err := s.store.UpsertRole(ctx, "user")
	if err != nil {
		return err
	}
	for _, name := range shared.DefaultUserPermissions() {
		if err := s.store.GrantPermission(ctx, userRole, permIDs[name]); err != nil {
			return err
		}
	}
	s.logger.Info("seeded roles")

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	adminID, err := s.store.EnsureUser(ctx, DefaultAdmin.Name, DefaultAdmin.Email, string(hash))
	if err != nil {
		return err
	}
	if err := s.store.AssignRole(ctx, adminID, adminRole); err != nil {
		return err
	}
	s.logger.Info("seeded admin account", slog.String("email", DefaultAdmin.Email))
	return nil
}
