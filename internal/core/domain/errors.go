package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
	ErrForbidden          = errors.New("access forbidden")
)

// ErrPasswordTooLong is returned when a password exceeds what the hasher accepts.
var ErrPasswordTooLong = fmt.Errorf("%w: password exceeds 72 bytes", ErrInvalidInput)

// Registration conflicts. Both match ErrUserExists.
var (
	ErrUsernameTaken = fmt.Errorf("%w: username is already taken", ErrUserExists)
	ErrEmailTaken    = fmt.Errorf("%w: email is already registered", ErrUserExists)
)

// Token errors. Every validation failure matches ErrTokenInvalid; the
// concrete sentinel tells a decode failure apart from expiry or a subject
// mismatch.
var (
	ErrTokenInvalid         = errors.New("invalid token")
	ErrTokenMalformed       = fmt.Errorf("%w: malformed or unverifiable", ErrTokenInvalid)
	ErrTokenExpired         = fmt.Errorf("%w: expired", ErrTokenInvalid)
	ErrTokenSubjectMismatch = fmt.Errorf("%w: subject mismatch", ErrTokenInvalid)

	ErrEmptySubject   = errors.New("token subject must not be empty")
	ErrWeakSigningKey = errors.New("signing key must be at least 32 bytes")
)
