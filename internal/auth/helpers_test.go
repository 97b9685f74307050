package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/asistlabs/asist-service/internal/domain"
)

var baseTime = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: baseTime} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSecret(t *testing.T, key string) Secret {
	t.Helper()
	secret, err := NewSecret([]byte(key))
	require.NoError(t, err)
	return secret
}

func newTestCodec(t *testing.T, clock *testClock) *TokenCodec {
	t.Helper()
	return NewTokenCodec(newTestSecret(t, "test-secret-0123456789abcdef-0123456789"), WithClock(clock.Now))
}

type fakeStore struct {
	mu    sync.Mutex
	users map[string]*domain.User
	err   error
}

func newFakeStore(users ...*domain.User) *fakeStore {
	s := &fakeStore{users: map[string]*domain.User{}}
	for _, u := range users {
		s.users[u.Email] = u
	}
	return s
}

func (s *fakeStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[email]
	return ok, s.err
}

func (s *fakeStore) Save(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return domain.ErrDuplicateEmail
	}
	cp := *user
	s.users[user.Email] = &cp
	return nil
}

type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func newFakeRevocations() *fakeRevocations {
	return &fakeRevocations{revoked: map[string]time.Duration{}}
}

func (r *fakeRevocations) Revoke(_ context.Context, id string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.revoked[id] = ttl
	return nil
}

func (r *fakeRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[id]
	return ok, nil
}

var errStoreDown = errors.New("store unavailable")

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	hash, err := HashPassword(plain, bcrypt.MinCost)
	require.NoError(t, err)
	return hash
}

func testUser(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	return &domain.User{
		ID:           "id-" + email,
		Username:     "user",
		Email:        email,
		PasswordHash: mustHash(t, "password123"),
		Role:         role,
	}
}
