package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
	"github.com/natours/tour-booking/internal/pkg/metrics"
)

const decoyPassword = "decoy-password-for-unknown-accounts"

var validate = validator.New()

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Store  *CredentialStore
	Hasher ports.PasswordHasher
	Tokens ports.TokenIssuer
	Resets *ResetTokenManager
	Mailer ports.Mailer
	Audit  ports.AuditLog
	// Cooldown is optional; without it forgot-password requests are not throttled.
	Cooldown ports.ResetCooldown
	// Timeout bounds the store and hashing work of a single operation.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// AuthService implements signup, login and the password lifecycle.
type AuthService struct {
	store    *CredentialStore
	hasher   ports.PasswordHasher
	tokens   ports.TokenIssuer
	resets   *ResetTokenManager
	mailer   ports.Mailer
	audit    ports.AuditLog
	cooldown ports.ResetCooldown
	timeout  time.Duration
	logger   zerolog.Logger
	nowFunc  func() time.Time

	decoyMu   sync.Mutex
	decoyHash string
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(deps AuthDeps) *AuthService {
	return &AuthService{
		store:    deps.Store,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		resets:   deps.Resets,
		mailer:   deps.Mailer,
		audit:    deps.Audit,
		cooldown: deps.Cooldown,
		timeout:  deps.Timeout,
		logger:   deps.Logger,
		nowFunc:  time.Now,
	}
}

func (s *AuthService) Signup(ctx context.Context, in ports.SignupInput) (*ports.AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("Please tell us your name!")
	}
	email := domain.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := domain.ValidateNewPassword(in.Password, in.PasswordConfirm); err != nil {
		return nil, err
	}

	opCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	hash, err := s.hasher.Hash(opCtx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}

	now := s.nowFunc().UTC()
	user, err := s.store.Create(opCtx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("signup: %w", err)
	}

	metrics.SignupsTotal.Inc()
	s.record(ctx, domain.EventSignup, user.ID, user.Email)
	s.logger.Info().Str("user_id", user.ID).Msg("user signed up")

	mailCtx, mailCancel := withTimeout(ctx, s.timeout)
	defer mailCancel()
	if err := s.mailer.SendWelcome(mailCtx, user, in.AccountURL); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("welcome email not delivered")
	}

	return s.startSession(user)
}

// Login answers domain.ErrInvalidCredentials for an unknown email and for a
// wrong password alike. Unknown emails still pay for one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.NewValidationError("Please provide email and password!")
	}

	opCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.FindByEmail(opCtx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.compareDecoy(opCtx, password)
			s.loginFailed(ctx, "", email)
			return nil, domain.ErrInvalidCredentials
		}
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}

	ok, err := s.hasher.Compare(opCtx, user.PasswordHash, password)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}
	if !ok {
		s.loginFailed(ctx, user.ID, email)
		return nil, domain.ErrInvalidCredentials
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.record(ctx, domain.EventLoginSucceeded, user.ID, user.Email)
	return s.startSession(user)
}

// ForgotPassword issues a reset secret and mails it. Unknown addresses and
// throttled requests return nil so the response does not reveal whether an
// account exists.
func (s *AuthService) ForgotPassword(ctx context.Context, in ports.ForgotPasswordInput) error {
	email := domain.NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return err
	}

	opCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.FindByEmail(opCtx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Debug().Msg("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("forgot password: %w", err)
	}

	if s.cooldown != nil {
		acquired, err := s.cooldown.Acquire(opCtx, email)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("reset cooldown check failed, issuing anyway")
		} else if !acquired {
			metrics.PasswordResetsTotal.WithLabelValues("throttled").Inc()
			s.logger.Debug().Str("user_id", user.ID).Msg("password reset throttled")
			return nil
		}
	}

	secret, err := s.resets.Issue(opCtx, user)
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	metrics.PasswordResetsTotal.WithLabelValues("requested").Inc()
	s.record(ctx, domain.EventResetRequested, user.ID, user.Email)

	resetURL := strings.TrimRight(in.ResetURLBase, "/") + "/" + secret

	mailCtx, mailCancel := withTimeout(ctx, s.timeout)
	defer mailCancel()
	if err := s.mailer.SendPasswordReset(mailCtx, user, resetURL); err != nil {
		metrics.PasswordResetsTotal.WithLabelValues("delivery_failed").Inc()
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("password reset email not delivered")

		// The secret never reached the user; clear it even if the request was
		// cancelled meanwhile.
		cctx, ccancel := withTimeout(context.WithoutCancel(ctx), s.timeout)
		defer ccancel()
		if cerr := s.resets.Cancel(cctx, user.ID); cerr != nil {
			s.logger.Error().Err(cerr).Str("user_id", user.ID).Msg("failed to clear undelivered reset token")
		} else {
			s.record(cctx, domain.EventResetCancelled, user.ID, user.Email)
		}
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailure, err)
	}

	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, secret, password, passwordConfirm string) (*ports.AuthResult, error) {
	if err := domain.ValidateNewPassword(password, passwordConfirm); err != nil {
		return nil, err
	}

	opCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.resets.Consume(opCtx, secret, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidResetToken) {
			metrics.PasswordResetsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("reset password: %w", err)
	}

	metrics.PasswordResetsTotal.WithLabelValues("completed").Inc()
	s.record(ctx, domain.EventResetCompleted, user.ID, user.Email)
	return s.startSession(user)
}

// UpdatePassword re-verifies the current password before replacing it. The
// new passwordChangedAt invalidates every session issued earlier; the caller
// receives a fresh token.
func (s *AuthService) UpdatePassword(ctx context.Context, in ports.UpdatePasswordInput) (*ports.AuthResult, error) {
	if in.CurrentPassword == "" {
		return nil, domain.NewValidationError("Please provide your current password")
	}
	if err := domain.ValidateNewPassword(in.Password, in.PasswordConfirm); err != nil {
		return nil, err
	}

	opCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.FindByID(opCtx, in.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("update password: %w", err)
	}

	ok, err := s.hasher.Compare(opCtx, user.PasswordHash, in.CurrentPassword)
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	if !ok {
		return nil, domain.ErrIncorrectPassword
	}

	hash, err := s.hasher.Hash(opCtx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	changedAt := s.nowFunc().UTC()
	updated, err := s.store.UpdateByID(opCtx, user.ID, domain.UserUpdate{
		PasswordHash:      &hash,
		PasswordChangedAt: &changedAt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("update password: %w", err)
	}

	s.record(ctx, domain.EventPasswordChanged, updated.ID, updated.Email)
	return s.startSession(updated)
}

func (s *AuthService) LogoutToken() (string, error) {
	return s.tokens.IssueExpired("")
}

func (s *AuthService) startSession(user *domain.User) (*ports.AuthResult, error) {
	token, claims, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &ports.AuthResult{Token: token, ExpiresAt: claims.ExpiresAt, User: user}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, userID, email string) {
	metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
	s.record(ctx, domain.EventLoginFailed, userID, email)
}

// compareDecoy spends the same hashing work on unknown emails as on real ones.
func (s *AuthService) compareDecoy(ctx context.Context, password string) {
	if hash := s.decoy(ctx); hash != "" {
		_, _ = s.hasher.Compare(ctx, hash, password)
	}
}

// decoy builds the decoy hash on first use, detached from the caller's
// cancellation. A failed attempt is retried by the next caller.
func (s *AuthService) decoy(ctx context.Context) string {
	s.decoyMu.Lock()
	defer s.decoyMu.Unlock()
	if s.decoyHash != "" {
		return s.decoyHash
	}

	hctx, cancel := withTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	h, err := s.hasher.Hash(hctx, decoyPassword)
	if err != nil {
		s.logger.Warn().Err(err).Msg("decoy hash unavailable")
		return ""
	}
	s.decoyHash = h
	return h
}

func (s *AuthService) record(ctx context.Context, typ domain.AuthEventType, userID, email string) {
	if s.audit == nil {
		return
	}
	ev := domain.AuthEvent{Type: typ, UserID: userID, Email: email, Timestamp: s.nowFunc().UTC()}
	if err := s.audit.Record(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("event", string(typ)).Msg("failed to record audit event")
	}
}

func validateEmail(email string) error {
	if email == "" {
		return domain.NewValidationError("Please provide your email")
	}
	if err := validate.Var(email, "email"); err != nil {
		return domain.NewValidationError("Please provide a valid email")
	}
	return nil
}
