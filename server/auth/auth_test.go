package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedrill/codedrill/internal/clock"
	errs "github.com/codedrill/codedrill/server/internal/errors"
	"github.com/codedrill/codedrill/store"
)

type mockStorage struct {
	users  map[string]*store.User
	nextID int32
}

func newMockStorage() *mockStorage {
	return &mockStorage{users: map[string]*store.User{}, nextID: 1}
}

func (m *mockStorage) CreateUser(_ context.Context, create *store.User) (*store.User, error) {
	if _, ok := m.users[create.Email]; ok {
		return nil, store.ErrUniqueViolation
	}
	create.ID = m.nextID
	m.nextID++
	m.users[create.Email] = create
	return create, nil
}

func (m *mockStorage) GetUser(_ context.Context, find *store.FindUser) (*store.User, error) {
	if find.Email != nil {
		return m.users[*find.Email], nil
	}
	return nil, nil
}

func newManager() (*Manager, *clock.Fixed) {
	fixed := clock.NewFixed(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	return NewManager(newMockStorage(), fixed), fixed
}

func TestRegisterAndLogin(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	user, err := m.Register(ctx, "Alice@Example.com ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	session, logged, err := m.Login(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.False(t, session.IsAnonymous())

	resolved, ok := m.Authenticate(session.Token)
	require.True(t, ok)
	assert.Equal(t, user.ID, resolved.UserID)
}

func TestRegisterValidation(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	_, err := m.Register(ctx, "not-an-email", "hunter22")
	assert.True(t, errs.IsCode(err, errs.ErrCodeInvalidArgument))

	_, err = m.Register(ctx, "a@b.c", "short")
	assert.True(t, errs.IsCode(err, errs.ErrCodeInvalidArgument))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	_, err := m.Register(ctx, "a@b.c", "hunter22")
	require.NoError(t, err)
	_, err = m.Register(ctx, "a@b.c", "different")
	assert.True(t, errs.IsCode(err, errs.ErrCodeConflict))
}

func TestLoginWrongCredentials(t *testing.T) {
	m, _ := newManager()
	ctx := context.Background()

	_, err := m.Register(ctx, "a@b.c", "hunter22")
	require.NoError(t, err)

	_, _, err = m.Login(ctx, "a@b.c", "wrong")
	assert.True(t, errs.IsCode(err, errs.ErrCodeUnauthenticated))

	_, _, err = m.Login(ctx, "ghost@b.c", "hunter22")
	assert.True(t, errs.IsCode(err, errs.ErrCodeUnauthenticated))
}

func TestSessionExpiry(t *testing.T) {
	m, fixed := newManager()
	ctx := context.Background()

	_, err := m.Register(ctx, "a@b.c", "hunter22")
	require.NoError(t, err)
	session, _, err := m.Login(ctx, "a@b.c", "hunter22")
	require.NoError(t, err)

	fixed.Advance(8 * 24 * time.Hour)
	_, ok := m.Authenticate(session.Token)
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	m, _ := newManager()

	session := m.OpenAnonymous()
	assert.True(t, session.IsAnonymous())
	_, ok := m.Authenticate(session.Token)
	require.True(t, ok)

	m.Logout(session.Token)
	_, ok = m.Authenticate(session.Token)
	assert.False(t, ok)
}
