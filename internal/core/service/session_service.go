package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
	"github.com/natours/tour-booking/internal/pkg/metrics"
)

// SessionService turns a raw bearer token into the user it belongs to:
// cryptographic verification, subject resolution, then the freshness check.
type SessionService struct {
	tokens  ports.TokenIssuer
	store   *CredentialStore
	timeout time.Duration
	log     zerolog.Logger
}

var _ ports.SessionAuthenticator = (*SessionService)(nil)

func NewSessionService(tokens ports.TokenIssuer, store *CredentialStore, timeout time.Duration, log zerolog.Logger) *SessionService {
	return &SessionService{tokens: tokens, store: store, timeout: timeout, log: log}
}

// Authenticate returns domain.ErrSessionExpired for an expired token,
// domain.ErrPasswordChanged for a stale one and domain.ErrNotAuthenticated for
// every other caller-side problem. Store failures are returned wrapped so they
// surface as internal errors.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			metrics.SessionRejectionsTotal.WithLabelValues("expired").Inc()
			return nil, domain.ErrSessionExpired
		}
		metrics.SessionRejectionsTotal.WithLabelValues("invalid").Inc()
		s.log.Debug().Err(err).Msg("bearer token rejected")
		return nil, domain.ErrNotAuthenticated
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.FindByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.SessionRejectionsTotal.WithLabelValues("unknown_subject").Inc()
			return nil, domain.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("resolve session subject: %w", err)
	}

	if user.ChangedPasswordAfter(claims.IssuedAt) {
		metrics.SessionRejectionsTotal.WithLabelValues("stale").Inc()
		return nil, domain.ErrPasswordChanged
	}

	return user, nil
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
