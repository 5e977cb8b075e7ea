package ports

import (
	"context"

	"github.com/natours/tour-booking/internal/core/domain"
)

// AuditLog persists authentication events. Callers treat failures as non-fatal.
type AuditLog interface {
	Record(ctx context.Context, event domain.AuthEvent) error
}

// ResetCooldown throttles forgot-password requests per email address.
type ResetCooldown interface {
	// Acquire returns false when a request for email was accepted within the
	// cooldown window.
	Acquire(ctx context.Context, email string) (bool, error)
}
