package domain

import (
	"context"
	"time"
)

// PasswordChangeSkew backdates a password change when it is compared with a
// token's issuance time, so a token minted right after the change (and carrying
// second-precision iat) is not rejected by that same change.
const PasswordChangeSkew = time.Second

// SessionClaims is what the verifier extracts from a valid bearer token.
type SessionClaims struct {
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsStale reports whether a token issued at issuedAt must be rejected because
// the password changed later. Both instants are compared at one-second
// granularity after applying PasswordChangeSkew.
func IsStale(changedAt *time.Time, issuedAt time.Time) bool {
	if changedAt == nil || changedAt.IsZero() {
		return false
	}
	return changedAt.Add(-PasswordChangeSkew).Unix() > issuedAt.Unix()
}

type userCtxKey struct{}

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext returns the user attached by the session pipeline, if any.
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(*User)
	return u, ok && u != nil
}
