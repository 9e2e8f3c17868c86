// Package auth provides boundary-level identity: password accounts and
// cookie sessions. The review core never sees any of this; it only receives
// a resolved owner id.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/codedrill/codedrill/internal/clock"
	errs "github.com/codedrill/codedrill/server/internal/errors"
	"github.com/codedrill/codedrill/store"
)

// SessionCookieName carries the session token between requests.
const SessionCookieName = "codedrill_session"

const (
	sessionTTL        = 7 * 24 * time.Hour
	minPasswordLength = 6
)

// Session is one signed-in (or anonymous) browser session.
type Session struct {
	Token string
	// UserID is 0 for anonymous sessions.
	UserID    int32
	ExpiresAt time.Time
}

// IsAnonymous reports whether the session has no account behind it.
func (s *Session) IsAnonymous() bool {
	return s.UserID == 0
}

// Storage is the slice of the store the manager depends on.
type Storage interface {
	CreateUser(ctx context.Context, create *store.User) (*store.User, error)
	GetUser(ctx context.Context, find *store.FindUser) (*store.User, error)
}

// Manager owns accounts and the in-memory session table. Sessions are not
// persisted; a restart signs everyone out.
type Manager struct {
	store Storage
	clock clock.Clock

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(storage Storage, c clock.Clock) *Manager {
	return &Manager{store: storage, clock: c, sessions: map[string]*Session{}}
}

// Register creates an account. A duplicate email is a conflict.
func (m *Manager) Register(ctx context.Context, email, password string) (*store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errs.InvalidArgument("a valid email is required")
	}
	if len(password) < minPasswordLength {
		return nil, errs.InvalidArgument("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Internal("failed to hash password", err)
	}

	user, err := m.store.CreateUser(ctx, &store.User{
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return nil, errs.Conflict("email already registered")
		}
		return nil, errs.Internal("failed to create user", err)
	}
	return user, nil
}

// Login verifies credentials and opens a session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, *store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := m.store.GetUser(ctx, &store.FindUser{Email: &email})
	if err != nil {
		return nil, nil, errs.Internal("failed to look up user", err)
	}
	if user == nil {
		return nil, nil, errs.Unauthenticated("unknown email or wrong password")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, errs.Unauthenticated("unknown email or wrong password")
	}

	session := m.open(user.ID)
	return session, user, nil
}

// OpenAnonymous opens a session with no account behind it, for the
// in-memory engine variant.
func (m *Manager) OpenAnonymous() *Session {
	return m.open(0)
}

func (m *Manager) open(userID int32) *Session {
	session := &Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: m.clock.Now().Add(sessionTTL),
	}
	m.mu.Lock()
	m.sessions[session.Token] = session
	m.mu.Unlock()
	return session
}

// Authenticate resolves a token to its live session, dropping it when
// expired.
func (m *Manager) Authenticate(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[token]
	if !ok {
		return nil, false
	}
	if m.clock.Now().After(session.ExpiresAt) {
		delete(m.sessions, token)
		return nil, false
	}
	return session, true
}

// Logout closes a session. Unknown tokens are ignored.
func (m *Manager) Logout(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}
