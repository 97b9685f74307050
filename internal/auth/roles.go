package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/asistlabs/asist-service/pkg/util/errorutil"
)

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !AuthenticationFromContext(c).IsAuthenticated() {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireAuthority rejects anonymous requests with 401 and principals holding
// none of the allowed authorities with 403.
func RequireAuthority(allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowed) > 0 && !principal.HasAnyAuthority(allowed...) {
			return apperrors.NewForbidden("insufficient authority")
		}
		return c.Next()
	}
}
