package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered       EventType = "user_registered"
	EventLoginSucceeded       EventType = "login_succeeded"
	EventLoginFailed          EventType = "login_failed"
	EventAccessTokenRefreshed EventType = "access_token_refreshed"
	EventRefreshTokenRevoked  EventType = "refresh_token_revoked"
	EventPasswordChanged      EventType = "password_changed"
)

// AllEventTypes lists every auth event type.
var AllEventTypes = []EventType{
	EventUserRegistered,
	EventLoginSucceeded,
	EventLoginFailed,
	EventAccessTokenRefreshed,
	EventRefreshTokenRevoked,
	EventPasswordChanged,
}

// Event is an auth audit record. Subject is the account email and may be
// empty when the caller could not be identified.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps a fresh event.
func NewEvent(t EventType, subject string, now time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Subject:   subject,
		Timestamp: now.UTC(),
		Payload:   payload,
	}
}

// TokenPayload references an issued or revoked token by id. Token values
// are never part of an event.
type TokenPayload struct {
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginFailedPayload records why a login attempt was refused.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}
