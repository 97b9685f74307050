package auth

import (
	"slices"
	"time"

	"github.com/asistlabs/asist-service/internal/domain"
)

// Principal is an authenticated identity and the authorities it holds.
// The zero value is the empty principal and holds no authorities.
type Principal struct {
	subject     string
	authorities []string
	// refresh tokens issued before this instant no longer mint access tokens
	sessionsSince time.Time
}

// NewPrincipal copies and de-duplicates the authorities.
func NewPrincipal(subject string, authorities ...string) Principal {
	set := make([]string, 0, len(authorities))
	for _, a := range authorities {
		if a != "" {
			set = append(set, a)
		}
	}
	slices.Sort(set)
	return Principal{subject: subject, authorities: slices.Compact(set)}
}

// PrincipalFromUser snapshots a stored account. USER is always granted.
func PrincipalFromUser(user *domain.User) Principal {
	p := NewPrincipal(user.Email, string(domain.RoleUser), string(user.Role))
	p.sessionsSince = user.PasswordChangedAt
	return p
}

func (p Principal) Subject() string { return p.subject }

// SessionsValidSince is the last password change, or zero.
func (p Principal) SessionsValidSince() time.Time { return p.sessionsSince }

// Authorities returns a copy of the authority set in sorted order.
func (p Principal) Authorities() []string {
	return slices.Clone(p.authorities)
}

func (p Principal) HasAuthority(authority string) bool {
	_, found := slices.BinarySearch(p.authorities, authority)
	return found
}

// HasAnyAuthority reports whether at least one of the given authorities is held.
func (p Principal) HasAnyAuthority(authorities ...string) bool {
	for _, a := range authorities {
		if p.HasAuthority(a) {
			return true
		}
	}
	return false
}

// AuthState tells whether a request carries an identity.
type AuthState int

const (
	Anonymous AuthState = iota
	Authenticated
)

func (s AuthState) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Authentication is the per-request outcome of the interceptor.
// Principal is only meaningful when State is Authenticated.
type Authentication struct {
	State     AuthState
	Principal Principal
}

// AnonymousAuthentication is the result for requests without a usable token.
func AnonymousAuthentication() Authentication {
	return Authentication{State: Anonymous}
}

// AuthenticatedAs wraps a resolved principal.
func AuthenticatedAs(p Principal) Authentication {
	return Authentication{State: Authenticated, Principal: p}
}

func (a Authentication) IsAuthenticated() bool {
	return a.State == Authenticated
}
