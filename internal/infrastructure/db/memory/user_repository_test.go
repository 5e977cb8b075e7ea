package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/tour-booking/internal/core/domain"
)

func seed(t *testing.T, r *UserRepository, email string) *domain.User {
	t.Helper()
	u, err := r.Insert(context.Background(), &domain.User{
		Name:         "Test",
		Email:        email,
		PasswordHash: "hash",
		Role:         domain.RoleUser,
		Active:       true,
	})
	require.NoError(t, err)
	return u
}

func TestUserRepository_InsertAssignsID(t *testing.T) {
	r := NewUserRepository()
	u := seed(t, r, "a@example.com")

	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := r.FindOne(context.Background(), domain.UserFilter{ID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
}

func TestUserRepository_EmailUnique(t *testing.T) {
	r := NewUserRepository()
	seed(t, r, "a@example.com")

	_, err := r.Insert(context.Background(), &domain.User{Email: "a@example.com", PasswordHash: "h", Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	b := seed(t, r, "b@example.com")
	taken := "a@example.com"
	_, err = r.Update(context.Background(), domain.UserFilter{ID: b.ID}, domain.UserUpdate{Email: &taken})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestUserRepository_EmailChangeReindexes(t *testing.T) {
	r := NewUserRepository()
	u := seed(t, r, "old@example.com")

	next := "new@example.com"
	_, err := r.Update(context.Background(), domain.UserFilter{ID: u.ID}, domain.UserUpdate{Email: &next})
	require.NoError(t, err)

	_, err = r.FindOne(context.Background(), domain.UserFilter{Email: "old@example.com"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	got, err := r.FindOne(context.Background(), domain.UserFilter{Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// The old address is free again.
	seed(t, r, "old@example.com")
}

func TestUserRepository_ActiveOnly(t *testing.T) {
	r := NewUserRepository()
	u := seed(t, r, "a@example.com")

	inactive := false
	_, err := r.Update(context.Background(), domain.UserFilter{ID: u.ID}, domain.UserUpdate{Active: &inactive})
	require.NoError(t, err)

	_, err = r.FindOne(context.Background(), domain.UserFilter{ID: u.ID, ActiveOnly: true})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	got, err := r.FindOne(context.Background(), domain.UserFilter{ID: u.ID})
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestUserRepository_ResetFilter(t *testing.T) {
	r := NewUserRepository()
	u := seed(t, r, "a@example.com")
	expires := time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC)

	_, err := r.Update(context.Background(), domain.UserFilter{ID: u.ID}, domain.UserUpdate{
		Reset: &domain.ResetState{TokenHash: "digest", ExpiresAt: expires},
	})
	require.NoError(t, err)

	_, err = r.FindOne(context.Background(), domain.UserFilter{ResetTokenHash: "digest", ResetValidAt: expires.Add(-time.Second)})
	assert.NoError(t, err)

	_, err = r.FindOne(context.Background(), domain.UserFilter{ResetTokenHash: "digest", ResetValidAt: expires})
	assert.ErrorIs(t, err, domain.ErrUserNotFound, "window closes at the expiry instant")

	_, err = r.FindOne(context.Background(), domain.UserFilter{ResetTokenHash: "other"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = r.Update(context.Background(), domain.UserFilter{ID: u.ID}, domain.UserUpdate{ClearReset: true})
	require.NoError(t, err)
	_, err = r.FindOne(context.Background(), domain.UserFilter{ResetTokenHash: "digest"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_ReturnsCopies(t *testing.T) {
	r := NewUserRepository()
	u := seed(t, r, "a@example.com")

	u.Name = "mutated"
	got, err := r.FindOne(context.Background(), domain.UserFilter{ID: u.ID})
	require.NoError(t, err)
	assert.Equal(t, "Test", got.Name)
}

func TestUserRepository_UpdateMissing(t *testing.T) {
	r := NewUserRepository()
	name := "x"
	_, err := r.Update(context.Background(), domain.UserFilter{ID: "nope"}, domain.UserUpdate{Name: &name})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
