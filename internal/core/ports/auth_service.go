package ports

import (
	"context"
	"time"

	"github.com/natours/tour-booking/internal/core/domain"
)

// SignupInput carries the fields accepted by the signup form.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	// AccountURL is the link embedded in the welcome email.
	AccountURL string
}

// AuthResult is returned by every operation that logs the user in.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// ForgotPasswordInput requests a reset link for Email. ResetURLBase is the
// prefix the plaintext secret is appended to as a path segment.
type ForgotPasswordInput struct {
	Email        string
	ResetURLBase string
}

// UpdatePasswordInput changes the password of an authenticated user.
type UpdatePasswordInput struct {
	UserID          string
	CurrentPassword string
	Password        string
	PasswordConfirm string
}

type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	ForgotPassword(ctx context.Context, in ForgotPasswordInput) error
	ResetPassword(ctx context.Context, secret, password, passwordConfirm string) (*AuthResult, error)
	UpdatePassword(ctx context.Context, in UpdatePasswordInput) (*AuthResult, error)
	// LogoutToken returns a token that overwrites the session cookie.
	LogoutToken() (string, error)
}

// SessionAuthenticator resolves a raw bearer token to a fresh, active user.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// UpdateMeInput carries the profile fields a user may change themselves.
type UpdateMeInput struct {
	UserID string
	Name   *string
	Email  *string
}

type UserService interface {
	Me(ctx context.Context, userID string) (*domain.User, error)
	UpdateMe(ctx context.Context, in UpdateMeInput) (*domain.User, error)
	DeleteMe(ctx context.Context, userID string) error
	Reactivate(ctx context.Context, userID string) (*domain.User, error)
}
