package domain

import (
	"errors"
	"fmt"
)

// Operational errors surfaced to callers with a stable message. Anything not
// matching one of these is treated as an internal failure.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = fmt.Errorf("%w: session expired", ErrNotAuthenticated)
	ErrPasswordChanged  = fmt.Errorf("%w: password changed after token was issued", ErrNotAuthenticated)

	ErrForbidden = errors.New("access forbidden")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIncorrectPassword  = fmt.Errorf("%w: current password is incorrect", ErrInvalidCredentials)

	ErrInvalidResetToken = errors.New("reset token is invalid or has expired")
	ErrDeliveryFailure   = errors.New("email delivery failed")

	ErrValidation = errors.New("validation failed")
	ErrEmailTaken = errors.New("email already in use")

	ErrUserNotFound = errors.New("user not found")
)

// Token-layer rejections returned by the verifier. The session pipeline
// collapses them into ErrNotAuthenticated, except expiry.
var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalid          = errors.New("token invalid")
)

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
