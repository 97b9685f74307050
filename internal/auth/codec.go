package auth

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/asistlabs/asist-service/internal/domain"
)

// Clock returns the current time. Tests inject fixed clocks.
type Clock func() time.Time

// Secret is the process-wide HMAC key. It is immutable once constructed and
// never renders its bytes through fmt or loggers.
type Secret struct {
	key []byte
}

// NewSecret copies key into a Secret. An empty key is rejected.
func NewSecret(key []byte) (Secret, error) {
	if len(key) == 0 {
		return Secret{}, errors.New("signing secret must not be empty")
	}
	return Secret{key: bytes.Clone(key)}, nil
}

// Len returns the key length in bytes.
func (s Secret) Len() int { return len(s.key) }

func (s Secret) String() string { return "[REDACTED]" }

func (s Secret) GoString() string { return "auth.Secret{[REDACTED]}" }

// Claims describes the JWT payload.
type Claims struct {
	Kind  domain.TokenKind `json:"kind,omitempty"`
	Extra map[string]any   `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 tokens under a single secret.
type TokenCodec struct {
	secret Secret
	now    Clock
	parser *jwt.Parser
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for expiry checks.
func WithClock(now Clock) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec builds a codec bound to secret.
func NewTokenCodec(secret Secret, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	return c
}

// Now returns the codec's notion of the current time.
func (c *TokenCodec) Now() time.Time {
	return c.now()
}

// Sign serializes and signs claims.
func (c *TokenCodec) Sign(claims Claims) (string, error) {
	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return "", fmt.Errorf("%w: sub, iat and exp are required", ErrMalformed)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return "", fmt.Errorf("%w: exp must be after iat", ErrMalformed)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(c.secret.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature first and only then the claims, including exp.
func (c *TokenCodec) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return c.secret.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) && c.signingInputIntact(tokenStr) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, classifyParseError(err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrMalformed)
	}
	// jwt only rejects now > exp; a token is already dead at exp.
	if !c.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrExpired
	}
	return claims, nil
}

// signingInputIntact reports whether the header and payload segments decode,
// which leaves the signature segment as the damaged part.
func (c *TokenCodec) signingInputIntact(tokenStr string) bool {
	first := strings.IndexByte(tokenStr, '.')
	if first < 0 {
		return false
	}
	second := strings.IndexByte(tokenStr[first+1:], '.')
	if second < 0 {
		return false
	}
	signingInput := tokenStr[:first+1+second]
	_, _, err := c.parser.ParseUnverified(signingInput+".", &Claims{})
	return err == nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
