package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/asistlabs/asist-service/internal/observability"
	apperrors "github.com/asistlabs/asist-service/pkg/util/errorutil"
)

const (
	authenticationKey = "auth_authentication"
	bearerPrefix      = "Bearer "
)

// AuthMiddleware turns the Authorization header into an Authentication.
// It never rejects a request on token grounds; route guards decide access.
type AuthMiddleware struct {
	tokens     *TokenService
	principals PrincipalResolver
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenService, principals PrincipalResolver, logger *zap.Logger, metrics *observability.Metrics) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, principals: principals, logger: logger, metrics: metrics}
}

// Handle attaches the request's Authentication to its locals.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	result, err := m.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Locals(authenticationKey, result)
	return c.Next()
}

// Authenticate evaluates one Authorization header value. Only store failures
// are returned as errors; every token problem yields an anonymous result.
func (m *AuthMiddleware) Authenticate(ctx context.Context, header string) (Authentication, error) {
	raw, ok := bearerToken(header)
	if !ok {
		m.metrics.RecordInterception("anonymous")
		return AnonymousAuthentication(), nil
	}

	subject, err := m.tokens.ExtractSubject(raw)
	if err != nil {
		m.logger.Debug("bearer token rejected", zap.Error(err))
		m.metrics.RecordInterception("rejected")
		return AnonymousAuthentication(), nil
	}

	principal, err := m.principals.ResolvePrincipal(ctx, subject)
	if errors.Is(err, ErrUnknownSubject) {
		m.logger.Debug("bearer token subject unknown", zap.String("subject", subject))
		m.metrics.RecordInterception("unknown_subject")
		return AnonymousAuthentication(), nil
	}
	if err != nil {
		m.metrics.RecordInterception("error")
		return AnonymousAuthentication(), err
	}

	m.metrics.RecordInterception("authenticated")
	return AuthenticatedAs(principal), nil
}

func bearerToken(header string) (string, bool) {
	raw, found := strings.CutPrefix(header, bearerPrefix)
	if !found {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// AuthenticationFromContext returns the request's Authentication,
// anonymous when the interceptor did not run.
func AuthenticationFromContext(c *fiber.Ctx) Authentication {
	if result, ok := c.Locals(authenticationKey).(Authentication); ok {
		return result
	}
	return AnonymousAuthentication()
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (Principal, bool) {
	result := AuthenticationFromContext(c)
	if !result.IsAuthenticated() {
		return Principal{}, false
	}
	return result.Principal, true
}
