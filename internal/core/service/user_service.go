package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

type UserService struct {
	store   *CredentialStore
	audit   ports.AuditLog
	timeout time.Duration
	logger  zerolog.Logger
	nowFunc func() time.Time
}

var _ ports.UserService = (*UserService)(nil)

func NewUserService(store *CredentialStore, audit ports.AuditLog, timeout time.Duration, logger zerolog.Logger) *UserService {
	return &UserService{store: store, audit: audit, timeout: timeout, logger: logger, nowFunc: time.Now}
}

func (s *UserService) Me(ctx context.Context, userID string) (*domain.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("get me: %w", err)
	}
	return user, nil
}

// UpdateMe changes name and email only. Password fields are rejected by the
// handler before this point.
func (s *UserService) UpdateMe(ctx context.Context, in ports.UpdateMeInput) (*domain.User, error) {
	var update domain.UserUpdate
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.NewValidationError("Please tell us your name!")
		}
		update.Name = &name
	}
	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		update.Email = &email
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if update.Name == nil && update.Email == nil {
		return s.Me(ctx, in.UserID)
	}

	user, err := s.store.UpdateByID(ctx, in.UserID, update)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return nil, domain.ErrNotAuthenticated
		case errors.Is(err, domain.ErrEmailTaken):
			return nil, err
		}
		return nil, fmt.Errorf("update me: %w", err)
	}
	return user, nil
}

// DeleteMe soft-deletes the account. Outstanding tokens stop working because
// the session pipeline only resolves active users.
func (s *UserService) DeleteMe(ctx context.Context, userID string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Deactivate(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrNotAuthenticated
		}
		return fmt.Errorf("delete me: %w", err)
	}
	s.record(ctx, domain.EventAccountDeactivated, userID)
	s.logger.Info().Str("user_id", userID).Msg("account deactivated")
	return nil
}

func (s *UserService) Reactivate(ctx context.Context, userID string) (*domain.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.Reactivate(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("reactivate user: %w", err)
	}
	s.record(ctx, domain.EventAccountReactivated, user.ID)
	s.logger.Info().Str("user_id", user.ID).Msg("account reactivated")
	return user, nil
}

func (s *UserService) record(ctx context.Context, typ domain.AuthEventType, userID string) {
	if s.audit == nil {
		return
	}
	ev := domain.AuthEvent{Type: typ, UserID: userID, Timestamp: s.nowFunc().UTC()}
	if err := s.audit.Record(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", string(typ)).Msg("failed to record audit event")
	}
}
