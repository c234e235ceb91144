package domain

import "time"

// Role is a coarse-grained authority granted to a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// DefaultRoles is the role set assigned on registration.
func DefaultRoles() []Role {
	return []Role{RoleUser}
}

// ParseRole reports whether s names a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// RoleNames converts roles to their wire representation, preserving order.
func RoleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return names
}

// User models a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasRole reports whether the user was granted role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Principal is the authentication view of a User: who it is, how to verify
// it, and what it may do.
type Principal struct {
	Username     string
	PasswordHash string
	Roles        []Role
}

// PrincipalFromUser adapts a stored user into a Principal.
func PrincipalFromUser(u *User) *Principal {
	roles := make([]Role, len(u.Roles))
	copy(roles, u.Roles)
	return &Principal{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Roles:        roles,
	}
}
