// Package service holds the application services that sit between the HTTP
// handlers and the seat allocation core: check-in, registration, baggage
// payment, and the RabbitMQ publishing of audit and boarding pass events.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/queue"
)

// EventPublisher publishes queue messages.  Callers treat failures as
// non-fatal: the state change that produced the event is already durable.
type EventPublisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Publisher publishes to the durable queue.QueueName queue.  The broker
// connection is opened lazily and reopened after a failure.
type Publisher struct {
	url string
	log logrus.FieldLogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the broker at url.  Nothing is
// dialled until the first Publish.
func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
	return &Publisher{url: url, log: log}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Publish sends msg as a persistent JSON message.  Errors are logged and
// returned so the caller can choose to ignore them.
func (p *Publisher) Publish(ctx context.Context, msg queue.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		p.log.WithError(err).Error("rabbitmq: marshal message failed")
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.log.WithError(err).Warn("rabbitmq: connect failed")
		return err
	}
	err = ch.PublishWithContext(ctx,
		"",              // default exchange
		queue.QueueName, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         msg.Type,
			Body:         body,
		})
	if err != nil {
		p.log.WithError(err).WithField("type", msg.Type).Warn("rabbitmq: publish failed")
		p.reset()
		return err
	}
	return nil
}

// Close closes the broker connection, if any.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// MessageHandler processes one encoded queue message.  *queue.Consumer
// implements it.
type MessageHandler interface {
	Handle(ctx context.Context, body []byte) error
}

// InlinePublisher hands messages straight to a handler instead of a
// broker.  It is used when no RabbitMQ URL is configured so audit events
// still reach the database.
type InlinePublisher struct {
	Handler MessageHandler
}

func (p InlinePublisher) Publish(ctx context.Context, msg queue.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.Handler.Handle(ctx, body)
}
