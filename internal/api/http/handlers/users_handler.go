package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/asistlabs/asist-service/internal/api/dto"
	"github.com/asistlabs/asist-service/internal/auth"
	"github.com/asistlabs/asist-service/internal/domain"
	"github.com/asistlabs/asist-service/internal/service"
	apperrors "github.com/asistlabs/asist-service/pkg/util/errorutil"
)

// UsersHandler serves account lookups.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	user, err := h.auth.Profile(c.UserContext(), principal.Subject())
	if errors.Is(err, domain.ErrUserNotFound) {
		return apperrors.NewUnauthorized("account no longer exists")
	}
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{
		"user":        dto.NewUserResponse(user),
		"authorities": principal.Authorities(),
	})
}

// ByEmail handles GET /api/admin/users/:email.
func (h *UsersHandler) ByEmail(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Params("email"))
	if email == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	user, err := h.auth.Profile(c.UserContext(), email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return apperrors.NewNotFound("user", map[string]any{"email": email})
	}
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"user": dto.NewUserResponse(user)})
}
