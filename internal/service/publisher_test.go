package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/airport-checkin/internal/logger"
	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/queue"
)

type auditSink struct{ events []model.AuditEvent }

func (s *auditSink) Insert(_ context.Context, ev model.AuditEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func TestInlinePublisherStoresAudit(t *testing.T) {
	t.Parallel()

	sink := &auditSink{}
	logPath := filepath.Join(t.TempDir(), "checkin.log")
	pub := InlinePublisher{Handler: &queue.Consumer{Sink: sink, LogPath: logPath, Log: logger.Discard()}}

	ev := model.AuditEvent{
		ID:         "ev-1",
		Type:       model.EventCheckin,
		Flight:     "LH123",
		Passport:   "P1",
		Actor:      "P1",
		OccurredAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := pub.Publish(context.Background(), queue.AuditMessage(ev)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].ID != "ev-1" {
		t.Fatalf("expected stored event, got %+v", sink.events)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "checkin | flight=LH123 | passport=P1") {
		t.Fatalf("unexpected log line %q", data)
	}
}

func TestAuditorOverInlinePublisher(t *testing.T) {
	t.Parallel()

	sink := &auditSink{}
	pub := InlinePublisher{Handler: &queue.Consumer{Sink: sink, LogPath: filepath.Join(t.TempDir(), "a.log"), Log: logger.Discard()}}
	a := NewAuditor(pub, 4, logger.Discard())
	a.Record(context.Background(), model.AuditEvent{ID: "x", Type: model.EventLogin, Passport: "P1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Run(ctx)

	if len(sink.events) != 1 {
		t.Fatalf("expected flushed event, got %+v", sink.events)
	}
}
