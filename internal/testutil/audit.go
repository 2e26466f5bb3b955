package testutil

import (
	"context"
	"sync"

	"github.com/iliyamo/airport-checkin/internal/model"
)

// AuditRecorder keeps every recorded event in memory.
type AuditRecorder struct {
	mu     sync.Mutex
	events []model.AuditEvent
}

func (a *AuditRecorder) Record(_ context.Context, ev model.AuditEvent) {
	a.mu.Lock()
	a.events = append(a.events, ev)
	a.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (a *AuditRecorder) Events() []model.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]model.AuditEvent(nil), a.events...)
}

// Types returns the recorded event types in order.
func (a *AuditRecorder) Types() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.events))
	for i, ev := range a.events {
		out[i] = ev.Type
	}
	return out
}

// Recent returns up to limit events for flight, newest first.  An empty
// flight matches every event.
func (a *AuditRecorder) Recent(_ context.Context, flight string, limit int) ([]model.AuditEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.AuditEvent
	for i := len(a.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if flight == "" || a.events[i].Flight == flight {
			out = append(out, a.events[i])
		}
	}
	return out, nil
}
