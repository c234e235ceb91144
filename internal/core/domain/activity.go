package domain

import "time"

// ActivityType enumerates the authentication events worth auditing.
type ActivityType string

const (
	ActivityUserRegistered ActivityType = "user.registered"
	ActivityLoginSuccess   ActivityType = "auth.login.success"
	ActivityLoginFailure   ActivityType = "auth.login.failure"
	ActivityLoginThrottled ActivityType = "auth.login.throttled"
)

// ActivityEvent is an audit record of something that happened to an account.
type ActivityEvent struct {
	ID         string
	Type       ActivityType
	Username   string
	OccurredAt time.Time
	Metadata   map[string]string
}
