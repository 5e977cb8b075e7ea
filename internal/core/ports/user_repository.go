package ports

import (
	"context"

	"github.com/natours/tour-booking/internal/core/domain"
)

// UserRepository is the raw persistence port for user records. It applies
// exactly the filter it is given; the active-account predicate is injected by
// service.CredentialStore, never by callers.
type UserRepository interface {
	FindOne(ctx context.Context, filter domain.UserFilter) (*domain.User, error)
	// Insert stores a new user and returns it with its assigned ID.
	// A duplicate email yields domain.ErrEmailTaken.
	Insert(ctx context.Context, user *domain.User) (*domain.User, error)
	// Update applies update to the single record matching filter and returns
	// the record as it is after the write. No match yields domain.ErrUserNotFound.
	Update(ctx context.Context, filter domain.UserFilter, update domain.UserUpdate) (*domain.User, error)
}
