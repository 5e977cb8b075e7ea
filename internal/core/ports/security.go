package ports

import (
	"context"
	"time"

	"github.com/natours/tour-booking/internal/core/domain"
)

// PasswordHasher performs adaptive one-way hashing of passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	// Compare returns false, nil on a mismatch; errors are reserved for
	// failures such as cancellation or a corrupt stored hash.
	Compare(ctx context.Context, hash, plain string) (bool, error)
}

// TokenIssuer signs and verifies bearer session tokens.
type TokenIssuer interface {
	Issue(subjectID string) (string, domain.SessionClaims, error)
	// IssueExpired returns a signed token that is already past its expiry.
	IssueExpired(subjectID string) (string, error)
	Verify(token string) (domain.SessionClaims, error)
	TTL() time.Duration
}
