// Package queue defines the messages exchanged over RabbitMQ and the
// background consumer that processes them.
package queue

import (
	"time"

	"github.com/iliyamo/airport-checkin/internal/model"
)

// QueueName is the durable queue every check-in event is published to.
const QueueName = "checkin.events"

// Message types.
const (
	TypeAudit                 = "audit"
	TypeBoardingPassRequested = "boarding_pass.requested"
)

// Message is the envelope published to QueueName.  Exactly one payload
// field is set, matching Type.
type Message struct {
	Type         string                 `json:"type"`
	Audit        *model.AuditEvent      `json:"audit,omitempty"`
	BoardingPass *BoardingPassRequested `json:"boarding_pass,omitempty"`
	PublishedAt  time.Time              `json:"published_at"`
}

// BoardingPassRequested asks the worker to deliver a boarding pass to the
// passenger's email address.
type BoardingPassRequested struct {
	Email string             `json:"email"`
	Pass  model.BoardingPass `json:"pass"`
}

// AuditMessage wraps an audit event.
func AuditMessage(ev model.AuditEvent) Message {
	return Message{Type: TypeAudit, Audit: &ev, PublishedAt: time.Now().UTC()}
}

// BoardingPassMessage wraps a boarding pass delivery request.
func BoardingPassMessage(email string, pass model.BoardingPass) Message {
	return Message{
		Type:         TypeBoardingPassRequested,
		BoardingPass: &BoardingPassRequested{Email: email, Pass: pass},
		PublishedAt:  time.Now().UTC(),
	}
}
