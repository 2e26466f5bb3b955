package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/queue"
)

// Auditor is the fire-and-forget audit sink used by the seat assignment
// service and the check-in flow.  Record never blocks: events are queued
// on a buffered channel and published by Run.  When the buffer is full the
// event is dropped with a warning.
type Auditor struct {
	pub     EventPublisher
	events  chan model.AuditEvent
	log     logrus.FieldLogger
	dropped atomic.Int64
}

// NewAuditor returns an Auditor buffering up to size events.
func NewAuditor(pub EventPublisher, size int, log logrus.FieldLogger) *Auditor {
	if size <= 0 {
		size = 256
	}
	return &Auditor{pub: pub, events: make(chan model.AuditEvent, size), log: log}
}

// Record queues ev for publishing.
func (a *Auditor) Record(_ context.Context, ev model.AuditEvent) {
	select {
	case a.events <- ev:
	default:
		a.dropped.Add(1)
		a.log.WithFields(logrus.Fields{"type": ev.Type, "flight": ev.Flight}).Warn("audit buffer full; event dropped")
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (a *Auditor) Dropped() int64 { return a.dropped.Load() }

// Run publishes queued events until ctx is cancelled, then makes a best
// effort to flush whatever is still buffered.
func (a *Auditor) Run(ctx context.Context) {
	for {
		select {
		case ev := <-a.events:
			a.publish(ctx, ev)
		case <-ctx.Done():
			a.flush()
			return
		}
	}
}

func (a *Auditor) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-a.events:
			a.publish(ctx, ev)
		default:
			return
		}
	}
}

func (a *Auditor) publish(ctx context.Context, ev model.AuditEvent) {
	if err := a.pub.Publish(ctx, queue.AuditMessage(ev)); err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{"type": ev.Type, "id": ev.ID}).Warn("audit event not published")
	}
}
