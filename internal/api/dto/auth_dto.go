package dto

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asistlabs/asist-service/internal/domain"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MinUsernameLength = 3
	MaxUsernameLength = 50
)

// TokenType is the scheme clients put in front of the access token.
const TokenType = "Bearer"

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshTokenRequest carries a refresh token for refresh and logout.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresAt    time.Time    `json:"expiresAt"`
	User         UserResponse `json:"user"`
}

// AccessTokenResponse is returned by refresh-token.
type AccessTokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// NewUserResponse maps a stored account; the password hash never leaves.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

// NewAuthResponse builds the register/login body.
func NewAuthResponse(u *domain.User, pair domain.TokenPair) AuthResponse {
	return AuthResponse{
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
		TokenType:    TokenType,
		ExpiresAt:    pair.Access.ExpiresAt,
		User:         NewUserResponse(u),
	}
}

// NewAccessTokenResponse builds the refresh-token body.
func NewAccessTokenResponse(t domain.IssuedToken) AccessTokenResponse {
	return AccessTokenResponse{AccessToken: t.Value, TokenType: TokenType, ExpiresAt: t.ExpiresAt}
}

// FieldErrors maps a JSON field name to what is wrong with it.
type FieldErrors map[string]string

func (f FieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

// Details converts to the error envelope's details, nil when empty.
func (f FieldErrors) Details() map[string]any {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Normalize trims surrounding whitespace from identifying fields.
func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
}

// Validate checks the registration constraints.
func (r RegisterRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	checkLength(errs, "username", r.Username, MinUsernameLength, MaxUsernameLength)
	checkEmail(errs, "email", r.Email)
	checkLength(errs, "password", r.Password, MinPasswordLength, MaxPasswordLength)
	return errs
}

// Normalize trims the email.
func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

// Validate only requires both fields; length rules are not revealed on login.
func (r LoginRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	checkEmail(errs, "email", r.Email)
	if r.Password == "" {
		errs.add("password", "is required")
	}
	return errs
}

// Validate requires a token.
func (r RefreshTokenRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(r.RefreshToken) == "" {
		errs.add("refreshToken", "is required")
	}
	return errs
}

// Validate requires the current password and bounds the new one.
func (r PasswordChangeRequest) Validate() FieldErrors {
	errs := FieldErrors{}
	if r.CurrentPassword == "" {
		errs.add("currentPassword", "is required")
	}
	checkLength(errs, "newPassword", r.NewPassword, MinPasswordLength, MaxPasswordLength)
	return errs
}

func checkLength(errs FieldErrors, field, value string, lo, hi int) {
	if value == "" {
		errs.add(field, "is required")
		return
	}
	if n := utf8.RuneCountInString(value); n < lo || n > hi {
		errs.add(field, fmt.Sprintf("length must be between %d and %d", lo, hi))
	}
}

func checkEmail(errs FieldErrors, field, value string) {
	if value == "" {
		errs.add(field, "is required")
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value, "@") {
		errs.add(field, "must be a valid email address")
	}
}
