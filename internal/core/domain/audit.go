package domain

import "time"

// AuthEventType names a security-relevant action recorded in the audit trail.
type AuthEventType string

const (
	EventSignup             AuthEventType = "signup"
	EventLoginSucceeded     AuthEventType = "login_succeeded"
	EventLoginFailed        AuthEventType = "login_failed"
	EventPasswordChanged    AuthEventType = "password_changed"
	EventResetRequested     AuthEventType = "password_reset_requested"
	EventResetCompleted     AuthEventType = "password_reset_completed"
	EventResetCancelled     AuthEventType = "password_reset_cancelled"
	EventAccountDeactivated AuthEventType = "account_deactivated"
	EventAccountReactivated AuthEventType = "account_reactivated"
)

// AuthEvent is one entry of the authentication audit trail.
type AuthEvent struct {
	Type      AuthEventType
	UserID    string // empty when the subject could not be resolved
	Email     string
	Timestamp time.Time
}
