package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/natours/tour-booking/internal/core/ports"
)

const defaultCooldown = time.Minute

// ResetCooldown throttles password-reset emails per address.
// Key format: reset-cooldown:<email>
type ResetCooldown struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.ResetCooldown = (*ResetCooldown)(nil)

// NewResetCooldown creates a ResetCooldown wrapping the given Redis client.
// If ttl <= 0, defaultCooldown is used.
func NewResetCooldown(client *redis.Client, ttl time.Duration) *ResetCooldown {
	if ttl <= 0 {
		ttl = defaultCooldown
	}
	return &ResetCooldown{client: client, ttl: ttl}
}

// Acquire reports whether a reset email may be sent to email now. The first
// caller in each window wins; later callers get false until the key expires.
func (c *ResetCooldown) Acquire(ctx context.Context, email string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(email), "1", c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reset cooldown: %w", err)
	}
	return ok, nil
}

func (c *ResetCooldown) key(email string) string {
	return "reset-cooldown:" + email
}
