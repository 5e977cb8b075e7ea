package domain

import (
	"strings"
	"time"
)

// Role is the closed set of account roles. Values outside the set are rejected
// wherever a role enters the system.
type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

var roles = map[Role]struct{}{
	RoleUser:      {},
	RoleGuide:     {},
	RoleLeadGuide: {},
	RoleAdmin:     {},
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	_, ok := roles[r]
	return ok
}

// ParseRole converts raw input into a Role. An empty string yields RoleUser.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return RoleUser, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", NewValidationError("role must be one of: user, guide, lead-guide, admin")
	}
	return r, nil
}

// ResetState is an outstanding password-reset request. Only the digest of the
// secret is kept; hash and expiry are always set or cleared together.
type ResetState struct {
	TokenHash string
	ExpiresAt time.Time
}

// User models an account known to the credential store.
type User struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Email             string      `json:"email"`
	PasswordHash      string      `json:"-"`
	Role              Role        `json:"role"`
	PasswordChangedAt *time.Time  `json:"-"`
	Reset             *ResetState `json:"-"`
	Active            bool        `json:"-"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// ChangedPasswordAfter reports whether a token issued at issuedAt predates the
// user's last password change.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	return IsStale(u.PasswordChangedAt, issuedAt)
}

// UserFilter selects a single user record. Zero-valued fields are ignored.
// ActiveOnly excludes soft-deleted accounts.
type UserFilter struct {
	ID             string
	Email          string
	ResetTokenHash string
	// ResetValidAt, when set, requires the stored reset expiry to be after it.
	ResetValidAt time.Time
	ActiveOnly   bool
}

// UserUpdate describes a partial modification. Nil fields are left untouched.
type UserUpdate struct {
	Name              *string
	Email             *string
	PasswordHash      *string
	PasswordChangedAt *time.Time
	Reset             *ResetState
	ClearReset        bool
	Active            *bool
}

// NormalizeEmail lowercases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MinPasswordLength mirrors the signup form constraint.
const MinPasswordLength = 8

// bcrypt ignores input past 72 bytes; longer passwords are refused outright.
const MaxPasswordLength = 72

// ValidateNewPassword checks the password policy and the confirmation field.
func ValidateNewPassword(password, confirm string) error {
	switch {
	case password == "":
		return NewValidationError("Please provide a password")
	case len(password) < MinPasswordLength:
		return NewValidationError("Password must be at least 8 characters")
	case len(password) > MaxPasswordLength:
		return NewValidationError("Password must be at most 72 bytes")
	case confirm == "":
		return NewValidationError("Please confirm your password")
	case password != confirm:
		return NewValidationError("Passwords are not the same")
	}
	return nil
}
