package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

// CredentialStore is the only path from the auth flow to user persistence.
// Every lookup and update it issues carries the active-account predicate, so a
// deactivated account behaves as if it did not exist. Reactivate is the single
// exception.
type CredentialStore struct {
	repo ports.UserRepository
}

func NewCredentialStore(repo ports.UserRepository) *CredentialStore {
	return &CredentialStore{repo: repo}
}

func activeOnly(f domain.UserFilter) domain.UserFilter {
	f.ActiveOnly = true
	return f
}

func (s *CredentialStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.FindOne(ctx, activeOnly(domain.UserFilter{ID: id}))
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.FindOne(ctx, activeOnly(domain.UserFilter{Email: email}))
}

// FindByResetToken returns the user holding digest whose reset window is still
// open at now.
func (s *CredentialStore) FindByResetToken(ctx context.Context, digest string, now time.Time) (*domain.User, error) {
	if digest == "" {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.FindOne(ctx, activeOnly(domain.UserFilter{ResetTokenHash: digest, ResetValidAt: now}))
}

// Create enforces the record invariants before inserting a new account.
func (s *CredentialStore) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	switch {
	case user.Email == "" || user.Email != domain.NormalizeEmail(user.Email):
		return nil, errors.New("create user: email must be normalized and non-empty")
	case user.PasswordHash == "":
		return nil, errors.New("create user: password hash is empty")
	case !user.Role.Valid():
		return nil, domain.NewValidationError("role must be one of: user, guide, lead-guide, admin")
	case user.Reset != nil:
		return nil, errors.New("create user: new accounts cannot carry a reset token")
	}
	u := *user
	u.Active = true
	u.PasswordChangedAt = nil
	return s.repo.Insert(ctx, &u)
}

func (s *CredentialStore) UpdateByID(ctx context.Context, id string, update domain.UserUpdate) (*domain.User, error) {
	if err := checkUpdate(update); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.Update(ctx, activeOnly(domain.UserFilter{ID: id}), update)
}

// UpdateByIDIfResetToken applies update only while digest is still stored on
// the record and unexpired at now. Concurrent consumers of one reset secret
// race on this guard and at most one of them wins.
func (s *CredentialStore) UpdateByIDIfResetToken(ctx context.Context, id, digest string, now time.Time, update domain.UserUpdate) (*domain.User, error) {
	if err := checkUpdate(update); err != nil {
		return nil, err
	}
	if id == "" || digest == "" {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.Update(ctx, activeOnly(domain.UserFilter{ID: id, ResetTokenHash: digest, ResetValidAt: now}), update)
}

func (s *CredentialStore) Deactivate(ctx context.Context, id string) error {
	inactive := false
	_, err := s.UpdateByID(ctx, id, domain.UserUpdate{Active: &inactive})
	return err
}

// Reactivate is the explicit path that reaches soft-deleted accounts.
func (s *CredentialStore) Reactivate(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrUserNotFound
	}
	active := true
	return s.repo.Update(ctx, domain.UserFilter{ID: id}, domain.UserUpdate{Active: &active})
}

func checkUpdate(u domain.UserUpdate) error {
	if u.Reset != nil && u.ClearReset {
		return errors.New("update user: reset token both set and cleared")
	}
	if u.Reset != nil && (u.Reset.TokenHash == "" || u.Reset.ExpiresAt.IsZero()) {
		return errors.New("update user: reset token requires hash and expiry")
	}
	if u.PasswordHash != nil && *u.PasswordHash == "" {
		return errors.New("update user: password hash is empty")
	}
	if u.Email != nil && (strings.TrimSpace(*u.Email) == "" || *u.Email != domain.NormalizeEmail(*u.Email)) {
		return errors.New("update user: email must be normalized and non-empty")
	}
	return nil
}
