// Package memory provides an in-process UserRepository for development and
// tests. It honours the same filter and uniqueness rules as the Mongo store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

type UserRepository struct {
	mu      sync.RWMutex
	users   map[string]*domain.User
	byEmail map[string]string
	now     func() time.Time
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:   make(map[string]*domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *UserRepository) FindOne(ctx context.Context, f domain.UserFilter) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	u := r.find(f)
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepository) Insert(ctx context.Context, user *domain.User) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return nil, domain.ErrEmailTaken
	}
	u := cloneUser(user)
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	r.users[u.ID] = u
	r.byEmail[u.Email] = u.ID
	return cloneUser(u), nil
}

func (r *UserRepository) Update(ctx context.Context, f domain.UserFilter, upd domain.UserUpdate) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.find(f)
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	if upd.Email != nil && *upd.Email != u.Email {
		if _, taken := r.byEmail[*upd.Email]; taken {
			return nil, domain.ErrEmailTaken
		}
		delete(r.byEmail, u.Email)
		r.byEmail[*upd.Email] = u.ID
		u.Email = *upd.Email
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.PasswordChangedAt != nil {
		t := *upd.PasswordChangedAt
		u.PasswordChangedAt = &t
	}
	if upd.Reset != nil {
		rs := *upd.Reset
		u.Reset = &rs
	}
	if upd.ClearReset {
		u.Reset = nil
	}
	if upd.Active != nil {
		u.Active = *upd.Active
	}
	u.UpdatedAt = r.now().UTC()
	return cloneUser(u), nil
}

// find must be called with r.mu held.
func (r *UserRepository) find(f domain.UserFilter) *domain.User {
	if f.ID != "" {
		u, ok := r.users[f.ID]
		if !ok || !matches(u, f) {
			return nil
		}
		return u
	}
	if f.Email != "" {
		u, ok := r.users[r.byEmail[f.Email]]
		if !ok || !matches(u, f) {
			return nil
		}
		return u
	}
	for _, u := range r.users {
		if matches(u, f) {
			return u
		}
	}
	return nil
}

func matches(u *domain.User, f domain.UserFilter) bool {
	if f.ID != "" && u.ID != f.ID {
		return false
	}
	if f.Email != "" && u.Email != f.Email {
		return false
	}
	if f.ResetTokenHash != "" {
		if u.Reset == nil || u.Reset.TokenHash != f.ResetTokenHash {
			return false
		}
	}
	if !f.ResetValidAt.IsZero() {
		if u.Reset == nil || !u.Reset.ExpiresAt.After(f.ResetValidAt) {
			return false
		}
	}
	if f.ActiveOnly && !u.Active {
		return false
	}
	return true
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.PasswordChangedAt != nil {
		t := *u.PasswordChangedAt
		c.PasswordChangedAt = &t
	}
	if u.Reset != nil {
		rs := *u.Reset
		c.Reset = &rs
	}
	return &c
}
