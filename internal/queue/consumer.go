package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/model"
)

// AuditSink persists audit events.  Insert must be idempotent on the
// event ID since a message can be redelivered.
type AuditSink interface {
	Insert(ctx context.Context, ev model.AuditEvent) error
}

// BoardingPassNotifier delivers a boarding pass to a passenger.
type BoardingPassNotifier interface {
	Notify(ctx context.Context, req BoardingPassRequested) error
}

// LogNotifier "delivers" boarding passes by logging them.  Real email
// delivery is left to a future notifier.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) Notify(_ context.Context, req BoardingPassRequested) error {
	n.Log.WithFields(logrus.Fields{
		"email":    req.Email,
		"flight":   req.Pass.Flight,
		"passport": req.Pass.Passport,
		"seat":     req.Pass.Seat,
	}).Info("boarding pass ready")
	return nil
}

// Consumer drains QueueName.  Audit events go to Sink and are appended to
// LogPath; boarding pass requests go to Notifier.
type Consumer struct {
	URL      string
	Sink     AuditSink
	Notifier BoardingPassNotifier
	LogPath  string
	Log      logrus.FieldLogger

	mu sync.Mutex // serializes LogPath appends
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff (capped at 30s) whenever the
// connection or channel drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.WithError(err).Warnf("checkin-consumer: dial failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.WithError(err).Warn("checkin-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.WithError(err).Warn("checkin-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				c.Log.WithError(err).Error("checkin-consumer: handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle processes one message body.  The in-process publisher calls it
// directly when no broker is configured.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	switch msg.Type {
	case TypeAudit:
		if msg.Audit == nil {
			return errors.New("audit message without event")
		}
		if c.Sink != nil {
			if err := c.Sink.Insert(ctx, *msg.Audit); err != nil {
				return fmt.Errorf("store audit event: %w", err)
			}
		}
		return c.appendLog(*msg.Audit)
	case TypeBoardingPassRequested:
		if msg.BoardingPass == nil {
			return errors.New("boarding pass message without payload")
		}
		if c.Notifier == nil {
			return nil
		}
		return c.Notifier.Notify(ctx, *msg.BoardingPass)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (c *Consumer) appendLog(ev model.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.LogPath == "" {
		c.LogPath = filepath.Join("logs", "checkin.log")
	}
	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// formatLine renders one human-friendly line per event, attrs sorted by key.
func formatLine(ev model.AuditEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type)
	if ev.Flight != "" {
		fmt.Fprintf(&b, " | flight=%s", ev.Flight)
	}
	if ev.Passport != "" {
		fmt.Fprintf(&b, " | passport=%s", ev.Passport)
	}
	if ev.Actor != "" {
		fmt.Fprintf(&b, " | by=%s", ev.Actor)
	}
	keys := make([]string, 0, len(ev.Attrs))
	for k := range ev.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " | %s=%q", k, ev.Attrs[k])
	}
	b.WriteByte('\n')
	return b.String()
}
