package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/muusmart/iam-service/internal/core/domain"
	"github.com/muusmart/iam-service/internal/core/ports"
)

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithLoginThrottle enables lockout after repeated login failures.
func WithLoginThrottle(t ports.LoginThrottle) AuthOption {
	return func(s *AuthService) {
		if t != nil {
			s.throttle = t
		}
	}
}

// WithActivitySink publishes registration and login events to sink.
func WithActivitySink(sink ports.ActivitySink) AuthOption {
	return func(s *AuthService) {
		if sink != nil {
			s.activity = sink
		}
	}
}

var _ ports.AuthService = (*AuthService)(nil)

// AuthService implements registration and login.
type AuthService struct {
	users         ports.UserRepository
	hasher        ports.PasswordHasher
	loader        PrincipalLoader
	authenticator *Authenticator
	tokens        *TokenService
	throttle      ports.LoginThrottle
	activity      ports.ActivitySink
	logger        zerolog.Logger
}

func NewAuthService(
	users ports.UserRepository,
	hasher ports.PasswordHasher,
	tokens *TokenService,
	logger zerolog.Logger,
	opts ...AuthOption,
) *AuthService {
	loader := NewIdentityLoader(users)
	s := &AuthService{
		users:         users,
		hasher:        hasher,
		loader:        loader,
		authenticator: NewAuthenticator(loader, hasher),
		tokens:        tokens,
		throttle:      noopThrottle{},
		activity:      noopSink{},
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a USER account and returns a token for it. Username
// uniqueness is checked before email uniqueness.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (string, error) {
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Password) == "" {
		return "", domain.ErrInvalidInput
	}

	taken, err := s.users.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return "", fmt.Errorf("check username: %w", err)
	}
	if taken {
		return "", domain.ErrUsernameTaken
	}

	taken, err = s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return "", fmt.Errorf("check email: %w", err)
	}
	if taken {
		return "", domain.ErrEmailTaken
	}

	hash, err := s.hasher.Encode(in.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Save(ctx, &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Roles:        domain.DefaultRoles(),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		// A concurrent registration won the race on the unique index.
		if errors.Is(err, domain.ErrUserExists) {
			s.logger.Info().Err(err).Str("username", in.Username).Msg("registration lost uniqueness race")
			return "", err
		}
		return "", fmt.Errorf("save user: %w", err)
	}

	principal, err := s.loader.LoadPrincipal(ctx, user.Username)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.Issue(principal.Username, domain.RoleNames(principal.Roles))
	if err != nil {
		return "", err
	}

	s.publish(domain.ActivityUserRegistered, user.Username, map[string]string{"user_id": user.ID})
	s.logger.Info().Str("username", user.Username).Str("user_id", user.ID).Msg("user registered")
	return token, nil
}

// Login authenticates the credentials and returns a token. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return "", domain.ErrInvalidCredentials
	}

	allowed, err := s.throttle.Allowed(ctx, username)
	if err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("login throttle check failed, allowing attempt")
	} else if !allowed {
		s.publish(domain.ActivityLoginThrottled, username, nil)
		return "", domain.ErrTooManyAttempts
	}

	principal, err := s.authenticator.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			if tErr := s.throttle.RecordFailure(ctx, username); tErr != nil {
				s.logger.Warn().Err(tErr).Str("username", username).Msg("failed to record login failure")
			}
			s.publish(domain.ActivityLoginFailure, username, nil)
			s.logger.Info().Str("username", username).Msg("login rejected")
		}
		return "", err
	}

	if err := s.throttle.Reset(ctx, username); err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("failed to reset login throttle")
	}

	token, err := s.tokens.Issue(principal.Username, domain.RoleNames(principal.Roles))
	if err != nil {
		return "", err
	}

	s.publish(domain.ActivityLoginSuccess, principal.Username, nil)
	return token, nil
}

// GetUser returns the stored user for username.
func (s *AuthService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	return s.users.FindByUsername(ctx, username)
}

func (s *AuthService) publish(kind domain.ActivityType, username string, meta map[string]string) {
	s.activity.Publish(domain.ActivityEvent{
		ID:         uuid.NewString(),
		Type:       kind,
		Username:   username,
		OccurredAt: time.Now().UTC(),
		Metadata:   meta,
	})
}

type noopThrottle struct{}

func (noopThrottle) Allowed(context.Context, string) (bool, error) { return true, nil }
func (noopThrottle) RecordFailure(context.Context, string) error   { return nil }
func (noopThrottle) Reset(context.Context, string) error           { return nil }

type noopSink struct{}

func (noopSink) Publish(domain.ActivityEvent) {}
