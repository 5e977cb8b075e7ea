package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

const (
	// DefaultResetTokenTTL is how long an issued reset secret stays usable.
	DefaultResetTokenTTL = 10 * time.Minute

	resetSecretBytes = 32
)

// ResetTokenManager issues and consumes one-time password-reset secrets.
// Only the SHA-256 digest of a secret is ever written to the store.
type ResetTokenManager struct {
	store  *CredentialStore
	hasher ports.PasswordHasher
	ttl    time.Duration
	now    func() time.Time
}

func NewResetTokenManager(store *CredentialStore, hasher ports.PasswordHasher, ttl time.Duration) *ResetTokenManager {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenManager{store: store, hasher: hasher, ttl: ttl, now: time.Now}
}

// Issue stores a fresh reset digest on user and returns the plaintext secret
// for a single delivery. A previously outstanding secret is overwritten.
func (m *ResetTokenManager) Issue(ctx context.Context, user *domain.User) (string, error) {
	secret, err := newResetSecret()
	if err != nil {
		return "", fmt.Errorf("generate reset secret: %w", err)
	}

	reset := &domain.ResetState{
		TokenHash: digestResetSecret(secret),
		ExpiresAt: m.now().UTC().Add(m.ttl),
	}
	if _, err := m.store.UpdateByID(ctx, user.ID, domain.UserUpdate{Reset: reset}); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return secret, nil
}

// Consume redeems secret and sets newPassword. Every rejection is reported as
// domain.ErrInvalidResetToken, whether the secret is unknown, expired or was
// already used.
func (m *ResetTokenManager) Consume(ctx context.Context, secret, newPassword string) (*domain.User, error) {
	if secret == "" {
		return nil, domain.ErrInvalidResetToken
	}
	digest := digestResetSecret(secret)
	now := m.now().UTC()

	user, err := m.store.FindByResetToken(ctx, digest, now)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidResetToken
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}

	hash, err := m.hasher.Hash(ctx, newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	changedAt := m.now().UTC()
	updated, err := m.store.UpdateByIDIfResetToken(ctx, user.ID, digest, now, domain.UserUpdate{
		PasswordHash:      &hash,
		PasswordChangedAt: &changedAt,
		ClearReset:        true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidResetToken
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}
	return updated, nil
}

// Cancel clears any outstanding reset request of userID. It compensates for a
// secret that was issued but never delivered.
func (m *ResetTokenManager) Cancel(ctx context.Context, userID string) error {
	if _, err := m.store.UpdateByID(ctx, userID, domain.UserUpdate{ClearReset: true}); err != nil {
		return fmt.Errorf("cancel reset token: %w", err)
	}
	return nil
}

func newResetSecret() (string, error) {
	b := make([]byte, resetSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func digestResetSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
