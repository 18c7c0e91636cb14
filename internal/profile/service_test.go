package profile

import (
	"context"
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
	return names, nil
}

func selfServiceGuard() *stubGuard {
	return &stubGuard{granted: map[string]bool{
		shared.PermViewProfile: true,
		shared.PermEditProfile: true,
	}}
}

type mockRepository struct {
	profiles map[int64]Profile
	hashes   map[int64]string
	emails   map[string]int64
	inTx     bool
	txWrites int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		profiles: map[int64]Profile{},
		hashes:   map[int64]string{},
		emails:   map[string]int64{},
	}
}

func (m *mockRepository) add(p Profile, passwordHash string) {
	m.profiles[p.ID] = p
	m.hashes[p.ID] = passwordHash
	m.emails[p.Email] = p.ID
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.inTx = true
	defer func() { m.inTx = false }()
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, userID int64) (Profile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return Profile{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) FindIDByEmail(ctx context.Context, email string) (int64, error) {
	return m.emails[email], nil
}

func (m *mockRepository) Update(ctx context.Context, userID int64, name, email string) error {
	p, ok := m.profiles[userID]
	if !ok {
		return shared.ErrNotFound
	}
	if ownerID, taken := m.emails[email]; taken && ownerID != userID {
		return shared.ErrConflict
	}
	if m.inTx {
		m.txWrites++
	}
	delete(m.emails, p.Email)
	p.Name = name
	p.Email = email
	p.UpdatedAt = time.Now()
	m.profiles[userID] = p
	m.emails[email] = userID
	return nil
}

func (m *mockRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	if _, ok := m.profiles[userID]; !ok {
		return shared.ErrNotFound
	}
	if m.inTx {
		m.txWrites++
	}
	m.hashes[userID] = passwordHash
	return nil
}

func seededRepo(t *testing.T) *mockRepository {
	t.Helper()
	repo := newMockRepository()
	hash, err := bcrypt.GenerateFromPassword([]byte("original-pass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo.add(Profile{ID: 1, Name: "Admin", Email: "admin@example.com", Roles: []string{"admin"}}, string(hash))
	repo.add(Profile{ID: 2, Name: "Blake", Email: "blake@example.com"}, "other-hash")
	return repo
}

func TestGetReturnsOwnProfile(t *testing.T) {
	svc := NewService(selfServiceGuard(), seededRepo(t))

	p, err := svc.Get(context.Background(), shared.Actor{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, "Admin", p.Name)
	assert.Equal(t, []string{"admin"}, p.Roles)
}

func TestGetDeniedWithoutPermission(t *testing.T) {
	svc := NewService(&stubGuard{granted: map[string]bool{}}, seededRepo(t))

	_, err := svc.Get(context.Background(), shared.Actor{UserID: 1})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUpdateNameAndEmail(t *testing.T) {
	repo := seededRepo(t)
	svc := NewService(selfServiceGuard(), repo)

	p, err := svc.Update(context.Background(), shared.Actor{UserID: 1}, UpdateInput{
		Name:  "Administrator",
		Email: "root@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Administrator", p.Name)
	assert.Equal(t, "root@example.com", p.Email)
	// Empty password leaves the credential alone.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[1]), []byte("original-pass")))
}

func TestUpdateReplacesPassword(t *testing.T) {
	repo := seededRepo(t)
	svc := NewService(selfServiceGuard(), repo)

	_, err := svc.Update(context.Background(), shared.Actor{UserID: 1}, UpdateInput{
		Name:            "Admin",
		Email:           "admin@example.com",
		Password:        "fresh-secret",
		PasswordConfirm: "fresh-secret",
	})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[1]), []byte("fresh-secret")))
}

func TestUpdateCommitsNameAndPasswordTogether(t *testing.T) {
	repo := seededRepo(t)
	svc := NewService(selfServiceGuard(), repo)

	_, err := svc.Update(context.Background(), shared.Actor{UserID: 1}, UpdateInput{
		Name:            "Renamed",
		Email:           "admin@example.com",
		Password:        "fresh-secret",
		PasswordConfirm: "fresh-secret",
	})
	require.NoError(t, err)
	// Both the account row and the credential change inside one transaction.
	assert.Equal(t, 2, repo.txWrites)
}

func TestUpdateCollectsValidationErrors(t *testing.T) {
	svc := NewService(selfServiceGuard(), seededRepo(t))

	_, err := svc.Update(context.Background(), shared.Actor{UserID: 1}, UpdateInput{
		Name:            "",
		Email:           "not-an-email",
		Password:        "short",
		PasswordConfirm: "short",
	})
	ve, ok := shared.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "The user name is required.", ve.Fields["name"])
	assert.Equal(t, "The email must be a valid email address.", ve.Fields["email"])
	assert.Equal(t, "The password must be at least 8 characters.", ve.Fields["password"])
}

func TestUpdateRejectsMismatchedConfirmation(t *testing.T) {
	svc := NewService(selfServiceGuard(), seededRepo(t))

	_, err := svc.Update(context.Background(), shared.Actor{UserID: 1}, UpdateInput{
		Name:            "Admin",
		Email:           "admin@example.com",
		Password:        "fresh-secret",
		PasswordConfirm: "different-secret",
	})
	ve, ok := shared.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "The password confirmation does not match.", ve.Fields["password"])
}

func TestUpdateRejectsTakenEmail(t *testing.T) {
	repo := seededRepo(t)
	svc := NewService(selfServiceGuard(), repo)

	_, err := svc.Update(context.Background(), shared.Actor{UserID: 1}, UpdateInput{
		Name:  "Admin",
		Email: "blake@example.com",
	})
	ve, ok := shared.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "A user with this email already exists.", ve.Fields["email"])
	assert.Equal(t, "admin@example.com", repo.profiles[1].Email)
}

func TestUpdateKeepingOwnEmailIsNotDuplicate(t *testing.T) {
	svc := NewService(selfServiceGuard(), seededRepo(t))

	p, err := svc.Update(context.Background(), shared.Actor{UserID: 1}, UpdateInput{
		Name:  "Renamed",
		Email: "admin@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
}
