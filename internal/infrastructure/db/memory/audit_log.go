package memory

import (
	"context"
	"sync"

	"github.com/natours/tour-booking/internal/core/domain"
	"github.com/natours/tour-booking/internal/core/ports"
)

// AuditLog keeps auth events in memory, newest last.
type AuditLog struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

var _ ports.AuditLog = (*AuditLog)(nil)

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (a *AuditLog) Record(_ context.Context, ev domain.AuthEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

// Events returns a snapshot of the recorded events.
func (a *AuditLog) Events() []domain.AuthEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuthEvent, len(a.events))
	copy(out, a.events)
	return out
}

// Types returns the recorded event types in order.
func (a *AuditLog) Types() []domain.AuthEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuthEventType, 0, len(a.events))
	for _, ev := range a.events {
		out = append(out, ev.Type)
	}
	return out
}
