package domain

import "time"

// TokenKind differentiates access and refresh tokens inside the signed payload.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// IssuedToken is a signed token together with its identifier, subject and expiry.
type IssuedToken struct {
	Value     string
	ID        string
	Subject   string
	ExpiresAt time.Time
}

// TokenPair is what register and login hand back to the client.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
