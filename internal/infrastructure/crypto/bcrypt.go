package crypto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/natours/tour-booking/internal/core/ports"
	"github.com/natours/tour-booking/internal/pkg/metrics"
)

// DefaultCost is the bcrypt work factor used for stored passwords.
const DefaultCost = 12

// Runner executes fn somewhere that bounds concurrent CPU work.
type Runner interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// BcryptHasher implements ports.PasswordHasher. When a Runner is set every
// bcrypt call goes through it; otherwise it runs on the caller's goroutine.
type BcryptHasher struct {
	cost int
	pool Runner
}

var _ ports.PasswordHasher = (*BcryptHasher)(nil)

func NewBcryptHasher(cost int, pool Runner) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost, pool: pool}
}

func (h *BcryptHasher) Hash(ctx context.Context, plain string) (string, error) {
	var out []byte
	err := h.run(ctx, "hash", func(context.Context) error {
		b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(out), nil
}

func (h *BcryptHasher) Compare(ctx context.Context, hash, plain string) (bool, error) {
	var match bool
	err := h.run(ctx, "compare", func(context.Context) error {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
		switch {
		case err == nil:
			match = true
			return nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("compare password: %w", err)
	}
	return match, nil
}

func (h *BcryptHasher) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	if h.pool == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx)
	}
	return h.pool.Do(ctx, fn)
}
