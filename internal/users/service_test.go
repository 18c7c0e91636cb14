package users

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-app/gatehouse/internal/shared"
)

type stubGuard struct {
	granted map[string]bool
}

func (g *stubGuard) Has(ctx context.Context, actor shared.Actor, permission string) (bool, error) {
	if actor.Anonymous() {
		return false, nil
	}
	return g.granted[permission], nil
}

func (g *stubGuard) EffectivePermissions(ctx context.Context, actor shared.Actor) ([]string, error) {
	names := make([]string, 0, len(g.granted))
	for name, ok := range g.granted {
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func allowAll() *stubGuard {
	g := &stubGuard{granted: map[string]bool{}}
	for _, name := range shared.PermissionCatalog() {
		g.granted[name] = true
	}
	return g
}

type mockRepository struct {
	users      map[int64]*User
	userRoles  map[int64][]int64
	roles      map[int64]Role
	nextUserID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users:      map[int64]*User{},
		userRoles:  map[int64][]int64{},
		roles:      map[int64]Role{},
		nextUserID: 1,
	}
}

func (m *mockRepository) addRole(id int64, name string) {
	m.roles[id] = Role{ID: id, Name: name}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) List(ctx context.Context, search string, limit, offset int) ([]User, int, error) {
	matched := make([]User, 0, len(m.users))
	for _, user := range m.users {
		haystack := strings.ToLower(user.Name + " " + user.Email)
		if search == "" || strings.Contains(haystack, strings.ToLower(search)) {
			loaded, _ := m.Get(ctx, user.ID)
			matched = append(matched, loaded)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (User, error) {
	user, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	loaded := *user
	loaded.Roles = nil
	ids := append([]int64(nil), m.userRoles[id]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, rid := range ids {
		loaded.Roles = append(loaded.Roles, m.roles[rid])
	}
	return loaded, nil
}

func (m *mockRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, user := range m.users {
		if user.Email == email {
			found := *user
			return &found, nil
		}
	}
	return nil, nil
}

func (m *mockRepository) Create(ctx context.Context, name, email, passwordHash string) (User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return User{}, shared.ErrConflict
		}
	}
	now := time.Now()
	user := &User{ID: m.nextUserID, Name: name, Email: email, PasswordHash: passwordHash, CreatedAt: now, UpdatedAt: now}
	m.users[user.ID] = user
	m.nextUserID++
	return *user, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, name, email string) (User, error) {
	user, ok := m.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	for _, other := range m.users {
		if other.ID != id && other.Email == email {
			return User{}, shared.ErrConflict
		}
	}
	user.Name = name
	user.Email = email
	user.UpdatedAt = time.Now()
	return *user, nil
}

func (m *mockRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	user, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.users, id)
	delete(m.userRoles, id)
	return nil
}

func (m *mockRepository) ReplaceRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	m.userRoles[userID] = append([]int64(nil), roleIDs...)
	return nil
}

func (m *mockRepository) AllRoles(ctx context.Context) ([]Role, error) {
	all := make([]Role, 0, len(m.roles))
	for _, role := range m.roles {
		all = append(all, role)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (m *mockRepository) ExistingRoleIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	known := make(map[int64]struct{})
	for _, id := range ids {
		if _, ok := m.roles[id]; ok {
			known[id] = struct{}{}
		}
	}
	return known, nil
}

var actor = shared.Actor{UserID: 1}

func ids(v ...int64) *[]int64 { return &v }

func validCreate() CreateInput {
	return CreateInput{
		Name:            "John Doe",
		Email:           "john@example.com",
		Password:        "secret-pass",
		PasswordConfirm: "secret-pass",
	}
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(allowAll(), repo)

	user, err := svc.Create(context.Background(), actor, validCreate())
	require.NoError(t, err)

	stored := repo.users[user.ID]
	assert.NotEqual(t, "secret-pass", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret-pass")))
}

func TestCreateUserWithRoles(t *testing.T) {
	repo := newMockRepository()
	repo.addRole(1, "admin")
	repo.addRole(2, "user")
	svc := NewService(allowAll(), repo)

	input := validCreate()
	input.Roles = ids(1, 2)
	user, err := svc.Create(context.Background(), actor, input)
	require.NoError(t, err)
	require.Len(t, user.Roles, 2)
	assert.Equal(t, "admin", user.Roles[0].Name)
}

func TestCreateUserCollectsAllFieldErrors(t *testing.T) {
	svc := NewService(allowAll(), newMockRepository())

	_, err := svc.Create(context.Background(), actor, CreateInput{
		Email:           "not-an-email",
		Password:        "short",
		PasswordConfirm: "different",
	})
	ve, ok := shared.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "The user name is required.", ve.Fields["name"])
	assert.Equal(t, "The email must be a valid email address.", ve.Fields["email"])
	assert.Equal(t, "The password must be at least 8 characters.", ve.Fields["password"])
}

func TestCreateUserRejectsMismatchedConfirmation(t *testing.T) {
	svc := NewService(allowAll(), newMockRepository())

	input := validCreate()
	input.PasswordConfirm = "something-else"
	_, err := svc.Create(context.Background(), actor, input)
	ve, ok := shared.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "The password confirmation does not match.", ve.Fields["password"])
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(allowAll(), repo)

	_, err := svc.Create(context.Background(), actor, validCreate())
	require.NoError(t, err)

	dup := validCreate()
	dup.Name = "Other Person"
	_, err = svc.Create(context.Background(), actor, dup)
	ve, ok := shared.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "A user with this email already exists.", ve.Fields["email"])
}

func TestCreateUserRejectsUnknownRoleID(t *testing.T) {
	repo := newMockRepository()
	repo.addRole(1, "admin")
	svc := NewService(allowAll(), repo)

	input := validCreate()
	input.Roles = ids(1, 42)
	_, err := svc.Create(context.Background(), actor, input)
	ve, ok := shared.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "One or more selected roles do not exist.", ve.Fields["roles"])
	assert.Empty(t, repo.users)
}

func TestUpdateUserEmptyPasswordKeepsCredential(t *testing.T) {
	repo := newMockRepository()
	repo.addRole(1, "admin")
	svc := NewService(allowAll(), repo)

	input := validCreate()
	input.Roles = ids(1)
	user, err := svc.Create(context.Background(), actor, input)
	require.NoError(t, err)
	originalHash := repo.users[user.ID].PasswordHash

	updated, err := svc.Update(context.Background(), actor, user.ID, UpdateInput{
		Name:  "John Q. Doe",
		Email: "john@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "John Q. Doe", updated.Name)
	assert.Equal(t, originalHash, repo.users[user.ID].PasswordHash)
	// Role set untouched when the roles field is absent.
	assert.Len(t, updated.Roles, 1)
}

func TestUpdateUserNewPasswordReplacesCredential(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(allowAll(), repo)

	user, err := svc.Create(context.Background(), actor, validCreate())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), actor, user.ID, UpdateInput{
		Name:            "John Doe",
		Email:           "john@example.com",
		Password:        "new-secret-pass",
		PasswordConfirm: "new-secret-pass",
	})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[user.ID].PasswordHash), []byte("new-secret-pass")))
}

func TestUpdateUserEmptyRoleSetClearsAll(t *testing.T) {
	repo := newMockRepository()
	repo.addRole(1, "admin")
	svc := NewService(allowAll(), repo)

	input := validCreate()
	input.Roles = ids(1)
	user, err := svc.Create(context.Background(), actor, input)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), actor, user.ID, UpdateInput{
		Name:  "John Doe",
		Email: "john@example.com",
		Roles: ids(),
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Roles)
}

func TestUpdateUserKeepingOwnEmailIsNotDuplicate(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(allowAll(), repo)

	user, err := svc.Create(context.Background(), actor, validCreate())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), actor, user.ID, UpdateInput{
		Name:  "Renamed",
		Email: "john@example.com",
	})
	assert.NoError(t, err)
}

func TestListSearchesNameAndEmail(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(allowAll(), repo)

	first := validCreate()
	_, err := svc.Create(context.Background(), actor, first)
	require.NoError(t, err)

	second := CreateInput{Name: "Jane Smith", Email: "jane@corp.test", Password: "secret-pass", PasswordConfirm: "secret-pass"}
	_, err = svc.Create(context.Background(), actor, second)
	require.NoError(t, err)

	byName, _, err := svc.List(context.Background(), actor, shared.ListQuery{Search: "John"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "John Doe", byName[0].Name)

	byEmail, _, err := svc.List(context.Background(), actor, shared.ListQuery{Search: "corp.test"})
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "Jane Smith", byEmail[0].Name)
}

func TestForbiddenDeleteLeavesRecord(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(allowAll(), repo)
	user, err := svc.Create(context.Background(), actor, validCreate())
	require.NoError(t, err)

	denied := NewService(&stubGuard{granted: map[string]bool{}}, repo)
	err = denied.Delete(context.Background(), actor, user.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Contains(t, repo.users, user.ID)
}

func TestUpdateMissingUser(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(allowAll(), repo)
	user, err := svc.Create(context.Background(), actor, validCreate())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), actor, 99, UpdateInput{
		Name:  "Ghost",
		Email: "ghost@example.com",
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Len(t, repo.users, 1)
	assert.Equal(t, "John Doe", repo.users[user.ID].Name)
}
