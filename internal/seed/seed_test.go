package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

type memStore struct {
	perms      map[string]int64
	roles      map[string]int64
	grants     map[[2]int64]struct{}
	users      map[string]int64
	userHashes map[string]string
	userRoles  map[[2]int64]struct{}
	nextID     int64
}

func newMemStore() *memStore {
	return &memStore{
		perms:      map[string]int64{},
		roles:      map[string]int64{},
		grants:     map[[2]int64]struct{}{},
		users:      map[string]int64{},
		userHashes: map[string]string{},
		userRoles:  map[[2]int64]struct{}{},
		nextID:     1,
	}
}

func (s *memStore) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *memStore) UpsertPermission(ctx context.Context, name string) (int64, error) {
	if id, ok := s.perms[name]; ok {
		return id, nil
	}
	id := s.id()
	s.perms[name] = id
	return id, nil
}

func (s *memStore) UpsertRole(ctx context.Context, name string) (int64, error) {
	if id, ok := s.roles[name]; ok {
		return id, nil
	}
	id := s.id()
	s.roles[name] = id
	return id, nil
}

func (s *memStore) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	s.grants[[2]int64{roleID, permissionID}] = struct{}{}
	return nil
}

func (s *memStore) EnsureUser(ctx context.Context, name, email, passwordHash string) (int64, error) {
	if id, ok := s.users[email]; ok {
		return id, nil
	}
	id := s.id()
	s.users[email] = id
	s.userHashes[email] = passwordHash
	return id, nil
}

func (s *memStore) AssignRole(ctx context.Context, userID, roleID int64) error {
	s.userRoles[[2]int64{userID, roleID}] = struct{}{}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunProvisionsCatalogRolesAndAdmin(t *testing.T) {
	store := newMemStore()
	seeder := New(testLogger(), store)

	require.NoError(t, seeder.Run(context.Background()))

	assert.Len(t, store.perms, len(shared.PermissionCatalog()))

	adminRole := store.roles["admin"]
	require.NotZero(t, adminRole)
	adminGrants := 0
	for key := range store.grants {
		if key[0] == adminRole {
			adminGrants++
		}
	}
	assert.Equal(t, len(shared.PermissionCatalog()), adminGrants)

	userRole := store.roles["user"]
	require.NotZero(t, userRole)
	userGrants := 0
	for key := range store.grants {
		if key[0] == userRole {
			userGrants++
		}
	}
	assert.Equal(t, len(shared.DefaultUserPermissions()), userGrants)

	adminID := store.users[DefaultAdmin.Email]
	require.NotZero(t, adminID)
	_, assigned := store.userRoles[[2]int64{adminID, adminRole}]
	assert.True(t, assigned)
	assert.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(store.userHashes[DefaultAdmin.Email]), []byte(DefaultAdmin.Password)))
}

func TestRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	seeder := New(testLogger(), store)

	require.NoError(t, seeder.Run(context.Background()))
	permCount := len(store.perms)
	roleCount := len(store.roles)
	grantCount := len(store.grants)
	hash := store.userHashes[DefaultAdmin.Email]

	require.NoError(t, seeder.Run(context.Background()))

	assert.Equal(t, permCount, len(store.perms))
	assert.Equal(t, roleCount, len(store.roles))
	assert.Equal(t, grantCount, len(store.grants))
	assert.Len(t, store.users, 1)
	// Existing accounts keep their credential across reseeds.
	assert.Equal(t, hash, store.userHashes[DefaultAdmin.Email])
}
