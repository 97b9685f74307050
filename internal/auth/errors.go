package auth

import "errors"

// Token failures. Every one of them maps to 401 at the HTTP boundary.
var (
	ErrMalformed        = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
	ErrWrongKind        = errors.New("token kind not accepted")
	ErrRevoked          = errors.New("token revoked")
	ErrUnknownSubject   = errors.New("token subject unknown")
)

// ErrInvalidCredentials covers both an unknown email and a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// IsTokenError reports whether err is one of the token failures above.
func IsTokenError(err error) bool {
	for _, target := range []error{ErrMalformed, ErrInvalidSignature, ErrExpired, ErrWrongKind, ErrRevoked, ErrUnknownSubject} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
