package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/asistlabs/asist-service/internal/auth"
	"github.com/asistlabs/asist-service/internal/domain"
	"github.com/asistlabs/asist-service/internal/events"
	"github.com/asistlabs/asist-service/internal/observability"
	"github.com/asistlabs/asist-service/internal/repository"
)

var errDBDown = errors.New("db down")

type memoryUsers struct {
	mu      sync.Mutex
	byEmail map[string]*domain.User
	seq     int
	err     error
	// saveErr is returned by Save only, to simulate the unique index firing.
	saveErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byEmail: map[string]*domain.User{}}
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memoryUsers) Save(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.byEmail[user.Email]; ok {
		return domain.ErrDuplicateEmail
	}
	m.seq++
	user.ID = "u-" + strconv.Itoa(m.seq)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.byEmail[user.Email] = &cp
	return nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, email, hash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byEmail[email]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.PasswordChangedAt = changedAt
	return nil
}

type fixture struct {
	now     time.Time
	users   *memoryUsers
	tokens  *auth.TokenService
	service *AuthService
	events  []events.Event
	logs    *observer.ObservedLogs
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:   time.Date(2026, time.April, 1, 8, 0, 0, 0, time.UTC),
		users: newMemoryUsers(),
	}

	secret, err := auth.NewSecret([]byte("service-test-secret-0123456789abcdef"))
	require.NoError(t, err)
	codec := auth.NewTokenCodec(secret, auth.WithClock(f.clock))

	revocations := repository.NewMemoryRevocationStore()
	f.tokens = auth.NewTokenService(codec, auth.TokenServiceConfig{
		Issuer:     "asist-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}, auth.NewPrincipalResolver(f.users), revocations)

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range events.AllEventTypes {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.events = append(f.events, e)
			return nil
		})
	}

	core, logs := observer.New(zap.DebugLevel)
	f.logs = logs
	NewAuditService(dispatcher, zap.New(core)).RegisterHandlers()

	f.service, err = NewAuthService(AuthDependencies{
		Users:      f.users,
		Hasher:     auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:     f.tokens,
		Dispatcher: dispatcher,
		Metrics:    observability.NewMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	f.service.now = f.clock
	return f
}

func (f *fixture) eventTypes() []events.EventType {
	out := make([]events.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func (f *fixture) register(t *testing.T, email string) *Session {
	t.Helper()
	session, err := f.service.Register(context.Background(), "alice", email, "password123")
	require.NoError(t, err)
	return session
}
