package ports

import (
	"context"

	"github.com/muusmart/iam-service/internal/core/domain"
)

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	GetUser(ctx context.Context, username string) (*domain.User, error)
}

// LoginThrottle tracks consecutive login failures per username.
type LoginThrottle interface {
	Allowed(ctx context.Context, username string) (bool, error)
	RecordFailure(ctx context.Context, username string) error
	Reset(ctx context.Context, username string) error
}
