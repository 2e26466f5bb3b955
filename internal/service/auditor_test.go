package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/airport-checkin/internal/logger"
	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/queue"
)

func TestAuditorDropsWhenFull(t *testing.T) {
	t.Parallel()

	a := NewAuditor(&recordingPublisher{}, 1, logger.Discard())
	a.Record(context.Background(), model.AuditEvent{ID: "1"})
	a.Record(context.Background(), model.AuditEvent{ID: "2"})
	if a.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", a.Dropped())
	}
}

func TestAuditorPublishesAndFlushes(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	a := NewAuditor(pub, 8, logger.Discard())
	for _, id := range []string{"1", "2", "3"} {
		a.Record(context.Background(), model.AuditEvent{ID: id, Type: model.EventSeatHeld})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.messages()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	msgs := pub.messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 published messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.Type != queue.TypeAudit || m.Audit == nil || m.Audit.ID != []string{"1", "2", "3"}[i] {
			t.Fatalf("unexpected message %d: %+v", i, m)
		}
	}
}

func TestAuditorSwallowsPublishErrors(t *testing.T) {
	t.Parallel()

	a := NewAuditor(&recordingPublisher{err: errors.New("down")}, 4, logger.Discard())
	a.Record(context.Background(), model.AuditEvent{ID: "1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Run(ctx) // must return after flushing without panicking
}
