package auth

import (
	"context"
	"errors"

	"github.com/asistlabs/asist-service/internal/domain"
)

// CredentialStore is the slice of account storage the auth core relies on.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, user *domain.User) error
}

// Compared against when the email is unknown so both failure paths cost one hash check.
const dummyPassword = "asist-dummy-password-for-timing"

// CredentialVerifier checks email/password pairs against stored hashes.
type CredentialVerifier struct {
	store     CredentialStore
	hasher    PasswordHasher
	dummyHash string
}

// NewCredentialVerifier constructs a verifier.
func NewCredentialVerifier(store CredentialStore, hasher PasswordHasher) (*CredentialVerifier, error) {
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	return &CredentialVerifier{store: store, hasher: hasher, dummyHash: dummy}, nil
}

// Verify returns the principal for a matching pair and ErrInvalidCredentials
// for an unknown email or a wrong password alike.
func (v *CredentialVerifier) Verify(ctx context.Context, email, password string) (Principal, error) {
	user, err := v.Authenticate(ctx, email, password)
	if err != nil {
		return Principal{}, err
	}
	return PrincipalFromUser(user), nil
}

// Authenticate is Verify returning the stored account instead of its principal.
func (v *CredentialVerifier) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := v.store.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = v.hasher.Verify(v.dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := v.hasher.Verify(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

type storeResolver struct {
	store CredentialStore
}

// NewPrincipalResolver resolves subjects (emails) through the credential store.
func NewPrincipalResolver(store CredentialStore) PrincipalResolver {
	return &storeResolver{store: store}
}

func (r *storeResolver) ResolvePrincipal(ctx context.Context, subject string) (Principal, error) {
	user, err := r.store.FindByEmail(ctx, subject)
	if errors.Is(err, domain.ErrUserNotFound) {
		return Principal{}, ErrUnknownSubject
	}
	if err != nil {
		return Principal{}, err
	}
	return PrincipalFromUser(user), nil
}
