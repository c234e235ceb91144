package ports

import (
	"context"

	"github.com/muusmart/iam-service/internal/core/domain"
)

// UserRepository is the credential store.
type UserRepository interface {
	// FindByUsername returns domain.ErrUserNotFound when no user matches.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// FindByEmail returns domain.ErrUserNotFound when no user matches.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Save persists a new user and returns it with its assigned ID. A unique
	// constraint violation is reported as domain.ErrUsernameTaken or
	// domain.ErrEmailTaken.
	Save(ctx context.Context, user *domain.User) (*domain.User, error)
}

// PasswordHasher one-way encodes passwords and verifies candidates.
type PasswordHasher interface {
	Encode(plaintext string) (string, error)
	Matches(plaintext, hash string) bool
}
