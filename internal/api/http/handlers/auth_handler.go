package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/asistlabs/asist-service/internal/api/dto"
	"github.com/asistlabs/asist-service/internal/auth"
	"github.com/asistlabs/asist-service/internal/domain"
	"github.com/asistlabs/asist-service/internal/service"
	apperrors "github.com/asistlabs/asist-service/pkg/util/errorutil"
)

// AuthHandler exposes the session endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Normalize()
	if err := validate(req.Validate()); err != nil {
		return err
	}

	session, err := h.auth.Register(c.UserContext(), req.Username, req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}
	return c.Status(http.StatusCreated).JSON(dto.NewAuthResponse(session.User, session.Tokens))
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	req.Normalize()
	if err := validate(req.Validate()); err != nil {
		return err
	}

	session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(dto.NewAuthResponse(session.User, session.Tokens))
}

// RefreshToken handles POST /api/auth/refresh-token.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validate(req.Validate()); err != nil {
		return err
	}

	access, err := h.auth.RefreshAccessToken(c.UserContext(), req.RefreshToken)
	if err != nil {
		return mapAuthError(err)
	}
	return c.JSON(dto.NewAccessTokenResponse(access))
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validate(req.Validate()); err != nil {
		return err
	}

	if err := h.auth.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return mapAuthError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ChangePassword handles POST /api/auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.PasswordChangeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validate(req.Validate()); err != nil {
		return err
	}

	err := h.auth.ChangePassword(c.UserContext(), principal.Subject(), req.CurrentPassword, req.NewPassword)
	if err != nil {
		return mapAuthError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func validate(errs dto.FieldErrors) error {
	if len(errs) == 0 {
		return nil
	}
	return apperrors.NewValidationError("validation failed", errs.Details())
}

// mapAuthError turns service sentinels into HTTP errors. Token failures all
// share one message so clients cannot tell them apart.
func mapAuthError(err error) error {
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		return apperrors.NewConflict("email already registered", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apperrors.NewUnauthorized("invalid email or password")
	case auth.IsTokenError(err):
		return apperrors.NewUnauthorized("invalid or expired token")
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NewUnauthorized("account no longer exists")
	default:
		return apperrors.NewInternalError(err)
	}
}
