package ports

import (
	"context"

	"github.com/natours/tour-booking/internal/core/domain"
)

// Mailer delivers transactional emails. Calls block until the message has been
// handed to the transport or delivery failed.
type Mailer interface {
	SendWelcome(ctx context.Context, user *domain.User, url string) error
	SendPasswordReset(ctx context.Context, user *domain.User, url string) error
}
