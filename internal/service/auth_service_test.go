package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/asistlabs/asist-service/internal/auth"
	"github.com/asistlabs/asist-service/internal/domain"
	"github.com/asistlabs/asist-service/internal/events"
)

func TestAuthService_Register(t *testing.T) {
	f := newFixture(t)

	session := f.register(t, "alice@x.com")

	assert.Equal(t, "alice@x.com", session.User.Email)
	assert.Equal(t, domain.RoleUser, session.User.Role)
	assert.NotEqual(t, "password123", session.User.PasswordHash)
	assert.NotEmpty(t, session.User.ID)

	subject, err := f.tokens.ExtractSubject(session.Tokens.Access.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", subject)

	_, err = f.tokens.ExtractSubject(session.Tokens.Refresh.Value)
	require.ErrorIs(t, err, auth.ErrWrongKind)

	assert.Equal(t, []events.EventType{events.EventUserRegistered}, f.eventTypes())
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@x.com")

	_, err := f.service.Register(context.Background(), "alice2", "alice@x.com", "password456")
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestAuthService_RegisterRaceCaughtByStore(t *testing.T) {
	f := newFixture(t)
	f.users.saveErr = domain.ErrDuplicateEmail

	_, err := f.service.Register(context.Background(), "alice", "alice@x.com", "password123")
	require.ErrorIs(t, err, domain.ErrDuplicateEmail)
	assert.Empty(t, f.events)
}

func TestAuthService_RegisterStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.users.err = errDBDown

	_, err := f.service.Register(context.Background(), "alice", "alice@x.com", "password123")
	require.ErrorIs(t, err, errDBDown)
}

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@x.com")
	ctx := context.Background()

	session, err := f.service.Login(ctx, "alice@x.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", session.User.Email)
	assert.True(t, f.tokens.IsValidFor(session.Tokens.Access.Value, "alice@x.com"))

	_, wrongPwd := f.service.Login(ctx, "alice@x.com", "password124")
	_, unknown := f.service.Login(ctx, "nobody@x.com", "password123")
	require.ErrorIs(t, wrongPwd, auth.ErrInvalidCredentials)
	require.ErrorIs(t, unknown, auth.ErrInvalidCredentials)
	assert.Equal(t, wrongPwd.Error(), unknown.Error())

	assert.Equal(t, []events.EventType{
		events.EventUserRegistered,
		events.EventLoginSucceeded,
		events.EventLoginFailed,
		events.EventLoginFailed,
	}, f.eventTypes())
	assert.Equal(t, 2, f.logs.FilterMessage("auth event").FilterField(
		zap.String("event_type", string(events.EventLoginFailed))).Len())
}

func TestAuthService_RefreshAccessToken(t *testing.T) {
	f := newFixture(t)
	session := f.register(t, "alice@x.com")
	ctx := context.Background()

	f.advance(2 * time.Hour)
	assert.False(t, f.tokens.IsValidFor(session.Tokens.Access.Value, "alice@x.com"))

	access, err := f.service.RefreshAccessToken(ctx, session.Tokens.Refresh.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", access.Subject)
	assert.True(t, f.tokens.IsValidFor(access.Value, "alice@x.com"))

	// not rotated: the same refresh token works again
	_, err = f.service.RefreshAccessToken(ctx, session.Tokens.Refresh.Value)
	require.NoError(t, err)

	_, err = f.service.RefreshAccessToken(ctx, access.Value)
	require.ErrorIs(t, err, auth.ErrWrongKind)

	f.advance(22 * time.Hour)
	_, err = f.service.RefreshAccessToken(ctx, session.Tokens.Refresh.Value)
	require.ErrorIs(t, err, auth.ErrExpired)
}

func TestAuthService_Logout(t *testing.T) {
	f := newFixture(t)
	session := f.register(t, "alice@x.com")
	ctx := context.Background()

	require.NoError(t, f.service.Logout(ctx, session.Tokens.Refresh.Value))

	_, err := f.service.RefreshAccessToken(ctx, session.Tokens.Refresh.Value)
	require.ErrorIs(t, err, auth.ErrRevoked)

	// access tokens are not revocation-checked and live out their TTL
	assert.True(t, f.tokens.IsValidFor(session.Tokens.Access.Value, "alice@x.com"))

	err = f.service.Logout(ctx, session.Tokens.Access.Value)
	require.ErrorIs(t, err, auth.ErrWrongKind)

	assert.Contains(t, f.eventTypes(), events.EventRefreshTokenRevoked)
}

func TestAuthService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@x.com")
	ctx := context.Background()

	err := f.service.ChangePassword(ctx, "alice@x.com", "wrong-password", "newpassword1")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	require.NoError(t, f.service.ChangePassword(ctx, "alice@x.com", "password123", "newpassword1"))

	_, err = f.service.Login(ctx, "alice@x.com", "password123")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.service.Login(ctx, "alice@x.com", "newpassword1")
	require.NoError(t, err)

	err = f.service.ChangePassword(ctx, "ghost@x.com", "password123", "newpassword1")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAuthService_ChangePasswordEndsRefreshSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before := f.register(t, "alice@x.com")

	f.advance(time.Minute)
	require.NoError(t, f.service.ChangePassword(ctx, "alice@x.com", "password123", "newpassword1"))

	_, err := f.service.RefreshAccessToken(ctx, before.Tokens.Refresh.Value)
	require.ErrorIs(t, err, auth.ErrRevoked)

	// the access token is not revoked and lives out its TTL
	subject, err := f.tokens.ExtractSubject(before.Tokens.Access.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", subject)

	after, err := f.service.Login(ctx, "alice@x.com", "newpassword1")
	require.NoError(t, err)
	_, err = f.service.RefreshAccessToken(ctx, after.Tokens.Refresh.Value)
	require.NoError(t, err)
}

func TestAuthService_Profile(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@x.com")

	user, err := f.service.Profile(context.Background(), "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = f.service.Profile(context.Background(), "bob@x.com")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestNewAuthService_RequiresCollaborators(t *testing.T) {
	_, err := NewAuthService(AuthDependencies{})
	require.Error(t, err)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "success", outcomeOf(nil))
	assert.Equal(t, "invalid_credentials", outcomeOf(auth.ErrInvalidCredentials))
	assert.Equal(t, "duplicate", outcomeOf(domain.ErrDuplicateEmail))
	assert.Equal(t, "expired", outcomeOf(auth.ErrExpired))
	assert.Equal(t, "revoked", outcomeOf(auth.ErrRevoked))
	assert.Equal(t, "rejected", outcomeOf(auth.ErrMalformed))
	assert.Equal(t, "error", outcomeOf(errDBDown))
}
