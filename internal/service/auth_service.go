package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/asistlabs/asist-service/internal/auth"
	"github.com/asistlabs/asist-service/internal/domain"
	"github.com/asistlabs/asist-service/internal/events"
	"github.com/asistlabs/asist-service/internal/observability"
)

// UserStore is the account storage the session flows need.
type UserStore interface {
	auth.CredentialStore
	UpdatePassword(ctx context.Context, email, passwordHash string, changedAt time.Time) error
}

// Session is the outcome of a successful register or login.
type Session struct {
	User   *domain.User
	Tokens domain.TokenPair
}

// AuthService coordinates registration, login, refresh, logout and password changes.
type AuthService struct {
	users      UserStore
	verifier   *auth.CredentialVerifier
	hasher     auth.PasswordHasher
	tokens     *auth.TokenService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users      UserStore
	Hasher     auth.PasswordHasher
	Tokens     *auth.TokenService
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) (*AuthService, error) {
	if deps.Users == nil || deps.Hasher == nil || deps.Tokens == nil {
		return nil, errors.New("auth service requires users, hasher and tokens")
	}
	verifier, err := auth.NewCredentialVerifier(deps.Users, deps.Hasher)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.Users,
		verifier:   verifier,
		hasher:     deps.Hasher,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Register creates a USER account and signs it in.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*Session, error) {
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		s.metrics.RecordAuthOutcome("register", "error")
		return nil, err
	}
	if exists {
		s.metrics.RecordAuthOutcome("register", "duplicate")
		return nil, domain.ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.metrics.RecordAuthOutcome("register", "error")
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	// The unique index still catches a concurrent registration of the same email.
	if err := s.users.Save(ctx, user); err != nil {
		s.metrics.RecordAuthOutcome("register", outcomeOf(err))
		return nil, err
	}

	pair, err := s.tokens.IssuePair(auth.PrincipalFromUser(user))
	if err != nil {
		s.metrics.RecordAuthOutcome("register", "error")
		return nil, err
	}

	s.metrics.RecordAuthOutcome("register", "success")
	s.publish(ctx, events.EventUserRegistered, user.Email, nil)
	return &Session{User: user, Tokens: pair}, nil
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.verifier.Authenticate(ctx, email, password)
	if err != nil {
		outcome := outcomeOf(err)
		s.metrics.RecordAuthOutcome("login", outcome)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.publish(ctx, events.EventLoginFailed, email, events.LoginFailedPayload{Reason: outcome})
		}
		return nil, err
	}

	pair, err := s.tokens.IssuePair(auth.PrincipalFromUser(user))
	if err != nil {
		s.metrics.RecordAuthOutcome("login", "error")
		return nil, err
	}

	s.metrics.RecordAuthOutcome("login", "success")
	s.publish(ctx, events.EventLoginSucceeded, user.Email, tokenPayload(pair.Refresh))
	return &Session{User: user, Tokens: pair}, nil
}

// RefreshAccessToken exchanges a refresh token for a new access token.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (domain.IssuedToken, error) {
	access, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		s.metrics.RecordAuthOutcome("refresh", outcomeOf(err))
		return domain.IssuedToken{}, err
	}
	s.metrics.RecordAuthOutcome("refresh", "success")
	s.publish(ctx, events.EventAccessTokenRefreshed, access.Subject, tokenPayload(access))
	return access, nil
}

// Logout revokes the refresh token so it can no longer mint access tokens.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	subject, err := s.tokens.RevokeRefreshToken(ctx, refreshToken)
	if err != nil {
		s.metrics.RecordAuthOutcome("logout", outcomeOf(err))
		return err
	}
	s.metrics.RecordAuthOutcome("logout", "success")
	s.publish(ctx, events.EventRefreshTokenRevoked, subject, nil)
	return nil
}

// ChangePassword verifies the current password before storing the new hash.
// Refresh tokens issued before the change stop working; access tokens run
// out their TTL.
func (s *AuthService) ChangePassword(ctx context.Context, subject, currentPassword, newPassword string) error {
	user, err := s.Profile(ctx, subject)
	if err != nil {
		s.metrics.RecordAuthOutcome("password_change", outcomeOf(err))
		return err
	}
	if err := s.hasher.Verify(user.PasswordHash, currentPassword); err != nil {
		s.metrics.RecordAuthOutcome("password_change", "invalid_credentials")
		return auth.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.metrics.RecordAuthOutcome("password_change", "error")
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.Email, hash, s.now()); err != nil {
		s.metrics.RecordAuthOutcome("password_change", outcomeOf(err))
		return err
	}

	s.metrics.RecordAuthOutcome("password_change", "success")
	s.publish(ctx, events.EventPasswordChanged, user.Email, nil)
	return nil
}

// Profile returns the stored account for an email.
func (s *AuthService) Profile(ctx context.Context, email string) (*domain.User, error) {
	return s.users.FindByEmail(ctx, email)
}

func (s *AuthService) publish(ctx context.Context, t events.EventType, subject string, payload any) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, events.NewEvent(t, subject, s.now(), payload)); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(t)), zap.Error(err))
	}
}

func tokenPayload(t domain.IssuedToken) events.TokenPayload {
	return events.TokenPayload{TokenID: t.ID, ExpiresAt: t.ExpiresAt}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "duplicate"
	case errors.Is(err, domain.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, auth.ErrExpired):
		return "expired"
	case errors.Is(err, auth.ErrRevoked):
		return "revoked"
	case auth.IsTokenError(err):
		return "rejected"
	default:
		return "error"
	}
}
