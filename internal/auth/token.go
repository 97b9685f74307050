package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/asistlabs/asist-service/internal/domain"
)

const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// PrincipalResolver maps a token subject to the still-current principal.
// It returns ErrUnknownSubject when the subject no longer exists.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, subject string) (Principal, error)
}

// RevocationStore remembers token identifiers that must no longer be honoured.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenServiceConfig carries issuer and lifetimes. Zero TTLs fall back to defaults.
type TokenServiceConfig struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenService issues, validates, refreshes and revokes bearer tokens.
type TokenService struct {
	codec       *TokenCodec
	cfg         TokenServiceConfig
	principals  PrincipalResolver
	revocations RevocationStore
}

// NewTokenService builds the service.
func NewTokenService(codec *TokenCodec, cfg TokenServiceConfig, principals PrincipalResolver, revocations RevocationStore) *TokenService {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &TokenService{codec: codec, cfg: cfg, principals: principals, revocations: revocations}
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// IssueAccessToken signs a short-lived token for p. Authorities are not
// embedded; the interceptor resolves them from the store on every request.
func (s *TokenService) IssueAccessToken(p Principal) (domain.IssuedToken, error) {
	return s.issue(p, domain.TokenKindAccess, s.cfg.AccessTTL, nil)
}

// IssueRefreshToken signs a long-lived token for p.
func (s *TokenService) IssueRefreshToken(p Principal) (domain.IssuedToken, error) {
	return s.issue(p, domain.TokenKindRefresh, s.cfg.RefreshTTL, nil)
}

// IssuePair issues an access and a refresh token for p.
func (s *TokenService) IssuePair(p Principal) (domain.TokenPair, error) {
	access, err := s.IssueAccessToken(p)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(p)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *TokenService) issue(p Principal, kind domain.TokenKind, ttl time.Duration, extra map[string]any) (domain.IssuedToken, error) {
	if p.Subject() == "" {
		return domain.IssuedToken{}, errors.New("cannot issue token for empty subject")
	}
	now := s.codec.Now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))
	id := uuid.NewString()

	value, err := s.codec.Sign(Claims{
		Kind:  kind,
		Extra: extra,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    s.cfg.Issuer,
			Subject:   p.Subject(),
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	})
	if err != nil {
		return domain.IssuedToken{}, err
	}
	return domain.IssuedToken{Value: value, ID: id, Subject: p.Subject(), ExpiresAt: expiresAt.Time}, nil
}

// ExtractSubject verifies an access token and returns its subject.
func (s *TokenService) ExtractSubject(token string) (string, error) {
	claims, err := s.verifyKind(token, domain.TokenKindAccess)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// IsValidFor reports whether token is a live access token for expectedSubject.
func (s *TokenService) IsValidFor(token, expectedSubject string) bool {
	subject, err := s.ExtractSubject(token)
	return err == nil && subject == expectedSubject
}

// Refresh exchanges a refresh token for a new access token. The refresh token
// is not rotated: it stays usable until it expires or is revoked.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (domain.IssuedToken, error) {
	claims, err := s.verifyKind(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return domain.IssuedToken{}, err
	}
	if err := s.ensureNotRevoked(ctx, claims); err != nil {
		return domain.IssuedToken{}, err
	}

	principal, err := s.principals.ResolvePrincipal(ctx, claims.Subject)
	if err != nil {
		return domain.IssuedToken{}, err
	}
	if issuedBeforePasswordChange(claims, principal) {
		return domain.IssuedToken{}, fmt.Errorf("%w: issued before password change", ErrRevoked)
	}
	return s.IssueAccessToken(principal)
}

// iat has second precision, so the change instant is truncated to match.
func issuedBeforePasswordChange(claims *Claims, p Principal) bool {
	since := p.SessionsValidSince()
	if since.IsZero() || claims.IssuedAt == nil {
		return false
	}
	return claims.IssuedAt.Time.Before(since.Truncate(time.Second))
}

// RevokeRefreshToken records the refresh token's id for its remaining lifetime.
// It returns the revoked token's subject.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshToken string) (string, error) {
	if s.revocations == nil {
		return "", errors.New("token revocation is not configured")
	}
	claims, err := s.verifyKind(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing jti", ErrMalformed)
	}
	if err := s.revocations.Revoke(ctx, claims.ID, s.RemainingTTL(claims)); err != nil {
		return "", fmt.Errorf("revoke token: %w", err)
	}
	return claims.Subject, nil
}

// RemainingTTL returns how long the token behind claims stays valid.
func (s *TokenService) RemainingTTL(claims *Claims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Sub(s.codec.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *TokenService) verifyKind(token string, kind domain.TokenKind) (*Claims, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: want %s, got %q", ErrWrongKind, kind, claims.Kind)
	}
	return claims, nil
}

func (s *TokenService) ensureNotRevoked(ctx context.Context, claims *Claims) error {
	if s.revocations == nil {
		return nil
	}
	if claims.ID == "" {
		return fmt.Errorf("%w: missing jti", ErrMalformed)
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return ErrRevoked
	}
	return nil
}
