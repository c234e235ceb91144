package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/muusmart/iam-service/internal/core/domain"
	"github.com/muusmart/iam-service/internal/core/ports"
)

// PrincipalLoader resolves a username to its authentication principal.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, username string) (*domain.Principal, error)
}

// IdentityLoader adapts stored users into principals.
type IdentityLoader struct {
	users ports.UserRepository
}

func NewIdentityLoader(users ports.UserRepository) *IdentityLoader {
	return &IdentityLoader{users: users}
}

// LoadPrincipal returns domain.ErrUserNotFound (wrapped) when username is unknown.
func (l *IdentityLoader) LoadPrincipal(ctx context.Context, username string) (*domain.Principal, error) {
	user, err := l.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load principal: %w", err)
	}
	return domain.PrincipalFromUser(user), nil
}

// Authenticator turns a username/password pair into a trusted principal.
type Authenticator struct {
	loader    PrincipalLoader
	hasher    ports.PasswordHasher
	decoyHash string
}

// fallbackDecoyHash is a well-formed bcrypt hash (cost 10) of no known
// password. It stands in when the hasher cannot produce a decoy.
const fallbackDecoyHash = "$2a$10$Fj0zd9PmzqB1Ej8YpTQ6Qe4Hc3V2nXr8kQb1mLw5sZtYuJpOaDfGi"

// NewAuthenticator builds an Authenticator. A throwaway hash is computed up
// front so that lookups of unknown users cost one hash comparison, the same
// as a wrong password.
func NewAuthenticator(loader PrincipalLoader, hasher ports.PasswordHasher) *Authenticator {
	decoy, err := hasher.Encode(uuid.NewString())
	if err != nil || decoy == "" {
		decoy = fallbackDecoyHash
	}
	return &Authenticator{loader: loader, hasher: hasher, decoyHash: decoy}
}

// Authenticate loads the principal and verifies password against its hash.
// Unknown users and wrong passwords both yield domain.ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*domain.Principal, error) {
	principal, err := a.loader.LoadPrincipal(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			a.hasher.Matches(password, a.decoyHash)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !a.hasher.Matches(password, principal.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return principal, nil
}
