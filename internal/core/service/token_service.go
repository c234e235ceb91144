package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/muusmart/iam-service/internal/core/domain"
)

// minSecretLen is the HS256 key size in bytes.
const minSecretLen = 32

// TokenClaims is the signed payload of an access token:
// {"roles": [...], "sub": ..., "iat": ..., "exp": ...}.
type TokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces the time source used for issuance and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// TokenService mints and validates HS256 bearer tokens. It holds no mutable
// state after construction and is safe for concurrent use.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenService builds a TokenService. The lifetime is used as given; a
// zero or negative value yields tokens that are already expired.
func NewTokenService(secret []byte, lifetime time.Duration, opts ...TokenOption) (*TokenService, error) {
	if len(secret) < minSecretLen {
		return nil, domain.ErrWeakSigningKey
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	s := &TokenService{secret: key, lifetime: lifetime, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Lifetime returns the configured token lifetime.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for identity carrying roles. An empty role list falls
// back to USER; the roles claim is always an array.
func (s *TokenService) Issue(identity string, roles []string) (string, error) {
	if identity == "" {
		return "", domain.ErrEmptySubject
	}

	claimRoles := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != "" {
			claimRoles = append(claimRoles, r)
		}
	}
	if len(claimRoles) == 0 {
		claimRoles = []string{string(domain.RoleUser)}
	}

	now := s.now()
	claims := &TokenClaims{
		Roles: claimRoles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate returns nil when token carries a valid signature, has not expired
// and was issued to expectedIdentity. Failures are one of
// domain.ErrTokenMalformed, domain.ErrTokenExpired or
// domain.ErrTokenSubjectMismatch.
func (s *TokenService) Validate(token, expectedIdentity string) error {
	claims, err := s.parse(token, jwt.WithExpirationRequired())
	if err != nil {
		// The parser verifies the signature before any claim, so an expiry
		// error implies an authentic token.
		if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenRequiredClaimMissing) {
			return domain.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}

	if claims.Subject != expectedIdentity {
		return domain.ErrTokenSubjectMismatch
	}
	return nil
}

// IsValid is Validate collapsed to a boolean.
func (s *TokenService) IsValid(token, expectedIdentity string) bool {
	return s.Validate(token, expectedIdentity) == nil
}

// ExtractClaims verifies the signature and returns the claims without
// checking expiry or subject.
func (s *TokenService) ExtractClaims(token string) (*TokenClaims, error) {
	return ExtractClaim(s, token, func(c *TokenClaims) *TokenClaims { return c })
}

// ExtractSubject returns the sub claim.
func (s *TokenService) ExtractSubject(token string) (string, error) {
	return ExtractClaim(s, token, func(c *TokenClaims) string { return c.Subject })
}

// ExtractExpiration returns the exp claim, or the zero time when absent.
func (s *TokenService) ExtractExpiration(token string) (time.Time, error) {
	return ExtractClaim(s, token, func(c *TokenClaims) time.Time {
		if c.ExpiresAt == nil {
			return time.Time{}
		}
		return c.ExpiresAt.Time
	})
}

// ExtractRoles returns the roles claim.
func (s *TokenService) ExtractRoles(token string) ([]string, error) {
	return ExtractClaim(s, token, func(c *TokenClaims) []string { return c.Roles })
}

// ExtractClaim decodes token and applies selector to its claims. The
// signature is verified but time-based claims are not, so an expired token
// still yields its values. A decode failure returns domain.ErrTokenMalformed.
func ExtractClaim[T any](s *TokenService, token string, selector func(*TokenClaims) T) (T, error) {
	var zero T
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return zero, fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}
	return selector(claims), nil
}

func (s *TokenService) parse(token string, opts ...jwt.ParserOption) (*TokenClaims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	claims := &TokenClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, s.keyFunc, opts...); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return s.secret, nil
}
