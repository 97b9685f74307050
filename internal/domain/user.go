package domain

import (
	"errors"
	"time"
)

// Role is the authority granted to a stored account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

var (
	// ErrUserNotFound is returned by stores when no account matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when an account already owns the email.
	ErrDuplicateEmail = errors.New("email already registered")
)

// User is the stored account that owns a credential. Email is the token subject.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
	// PasswordChangedAt is zero until the first password change.
	PasswordChangedAt time.Time
}
