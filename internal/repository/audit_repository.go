package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/iliyamo/airport-checkin/internal/model"
)

// AuditRepo appends audit events consumed from the queue and reads them
// back for the admin event log.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// Insert stores ev.  Redelivered events are ignored by primary key.
func (r *AuditRepo) Insert(ctx context.Context, ev model.AuditEvent) error {
	var attrs []byte
	if len(ev.Attrs) > 0 {
		b, err := json.Marshal(ev.Attrs)
		if err != nil {
			return err
		}
		attrs = b
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT IGNORE INTO audit_events (id, type, flight_number, passport, actor, attrs, occurred_at)
		 VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?)`,
		ev.ID, ev.Type, ev.Flight, ev.Passport, ev.Actor, attrs, ev.OccurredAt.UTC())
	return err
}

// Recent returns the newest events, optionally limited to one flight.
func (r *AuditRepo) Recent(ctx context.Context, flight string, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, type, COALESCE(flight_number, ''), COALESCE(passport, ''), COALESCE(actor, ''), attrs, occurred_at
		 FROM audit_events WHERE (? = '' OR flight_number = ?) ORDER BY occurred_at DESC LIMIT ?`,
		flight, flight, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AuditEvent
	for rows.Next() {
		var (
			ev    model.AuditEvent
			attrs []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Flight, &ev.Passport, &ev.Actor, &attrs, &ev.OccurredAt); err != nil {
			return nil, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &ev.Attrs); err != nil {
				return nil, err
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
