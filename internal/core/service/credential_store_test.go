package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/infrastructure/db/memory"
)

func newUser(email string) *domain.User {
	return &domain.User{Name: "Ana", Email: email, PasswordHash: "hash", Role: domain.RoleUser}
}

func TestCredentialStore_Create_EnforcesInvariants(t *testing.T) {
	store := NewCredentialStore(memory.NewUserRepository())
	ctx := context.Background()

	bad := []struct {
		name string
		user *domain.User
	}{
		{"unnormalized email", newUser("Ana@Example.com")},
		{"empty hash", &domain.User{Email: "a@b.io", Role: domain.RoleUser}},
		{"invalid role", &domain.User{Email: "a@b.io", PasswordHash: "h", Role: "root"}},
		{"reset on create", &domain.User{Email: "a@b.io", PasswordHash: "h", Role: domain.RoleUser, Reset: &domain.ResetState{TokenHash: "x", ExpiresAt: time.Now()}}},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.Create(ctx, tc.user); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	changed := time.Now()
	u := newUser("ana@example.com")
	u.PasswordChangedAt = &changed
	created, err := store.Create(ctx, u)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !created.Active || created.PasswordChangedAt != nil || created.ID == "" {
		t.Fatalf("unexpected created user: %+v", created)
	}
}

func TestCredentialStore_ActiveOnly(t *testing.T) {
	store := NewCredentialStore(memory.NewUserRepository())
	ctx := context.Background()

	created, err := store.Create(ctx, newUser("ana@example.com"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := store.Deactivate(ctx, created.ID); err != nil {
		t.Fatalf("Deactivate returned error: %v", err)
	}

	if _, err := store.FindByID(ctx, created.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("FindByID saw deactivated user: %v", err)
	}
	if _, err := store.FindByEmail(ctx, "ANA@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("FindByEmail saw deactivated user: %v", err)
	}
	name := "X"
	if _, err := store.UpdateByID(ctx, created.ID, domain.UserUpdate{Name: &name}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("UpdateByID touched deactivated user: %v", err)
	}

	reactivated, err := store.Reactivate(ctx, created.ID)
	if err != nil {
		t.Fatalf("Reactivate returned error: %v", err)
	}
	if !reactivated.Active {
		t.Fatalf("expected active user")
	}
	if _, err := store.FindByEmail(ctx, "ana@example.com"); err != nil {
		t.Fatalf("FindByEmail after reactivation: %v", err)
	}
}

func TestCredentialStore_EmptyKeys(t *testing.T) {
	store := NewCredentialStore(memory.NewUserRepository())
	ctx := context.Background()

	if _, err := store.FindByID(ctx, ""); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("FindByID(\"\") = %v", err)
	}
	if _, err := store.FindByEmail(ctx, "  "); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("FindByEmail(blank) = %v", err)
	}
	if _, err := store.FindByResetToken(ctx, "", time.Now()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("FindByResetToken(\"\") = %v", err)
	}
}

func TestCredentialStore_UpdateChecks(t *testing.T) {
	store := NewCredentialStore(memory.NewUserRepository())
	ctx := context.Background()
	created, err := store.Create(ctx, newUser("ana@example.com"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	empty := ""
	upper := "Ana@Example.com"
	bad := []domain.UserUpdate{
		{Reset: &domain.ResetState{TokenHash: "x", ExpiresAt: time.Now()}, ClearReset: true},
		{Reset: &domain.ResetState{TokenHash: "x"}},
		{PasswordHash: &empty},
		{Email: &upper},
	}
	for i, upd := range bad {
		if _, err := store.UpdateByID(ctx, created.ID, upd); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestCredentialStore_UpdateByIDIfResetToken(t *testing.T) {
	store := NewCredentialStore(memory.NewUserRepository())
	ctx := context.Background()
	created, err := store.Create(ctx, newUser("ana@example.com"))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reset := &domain.ResetState{TokenHash: "digest", ExpiresAt: now.Add(10 * time.Minute)}
	if _, err := store.UpdateByID(ctx, created.ID, domain.UserUpdate{Reset: reset}); err != nil {
		t.Fatalf("UpdateByID returned error: %v", err)
	}

	hash := "new-hash"
	upd := domain.UserUpdate{PasswordHash: &hash, ClearReset: true}
	if _, err := store.UpdateByIDIfResetToken(ctx, created.ID, "other", now, upd); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("wrong digest matched: %v", err)
	}
	if _, err := store.UpdateByIDIfResetToken(ctx, created.ID, "digest", now.Add(10*time.Minute), upd); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expired digest matched: %v", err)
	}
	if _, err := store.UpdateByIDIfResetToken(ctx, created.ID, "digest", now, upd); err != nil {
		t.Fatalf("valid digest rejected: %v", err)
	}
	if _, err := store.UpdateByIDIfResetToken(ctx, created.ID, "digest", now, upd); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("digest matched twice: %v", err)
	}
}
