package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/airport-checkin/internal/model"
)

// SeatHoldRepo stores seat holds in the seat_holds table and implements
// the seating HoldStore.  Expiry comparisons use the timestamp supplied by
// the caller rather than the database clock so that the service's clock
// is the only source of "now".
type SeatHoldRepo struct {
	db *sql.DB
}

// NewSeatHoldRepo returns a SeatHoldRepo bound to db.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

// PurgeExpired deletes holds on flight that lapsed at or before now.
func (r *SeatHoldRepo) PurgeExpired(ctx context.Context, flight string, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM seat_holds WHERE flight_number = ? AND expires_at <= ?", flight, now.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListByFlight returns every stored hold for flight ordered by seat.
func (r *SeatHoldRepo) ListByFlight(ctx context.Context, flight string) ([]model.SeatHold, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT flight_number, seat, passport, hold_token, expires_at, created_at
		 FROM seat_holds WHERE flight_number = ? ORDER BY seat, passport`, flight)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SeatHold
	for rows.Next() {
		var h model.SeatHold
		if err := rows.Scan(&h.Flight, &h.Seat, &h.Passport, &h.HoldToken, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Upsert creates the hold or replaces the existing one for the same
// (flight, seat, passport).
func (r *SeatHoldRepo) Upsert(ctx context.Context, h model.SeatHold) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO seat_holds (flight_number, seat, passport, hold_token, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE hold_token = VALUES(hold_token), expires_at = VALUES(expires_at), created_at = VALUES(created_at)`,
		h.Flight, h.Seat, h.Passport, h.HoldToken, h.ExpiresAt.UTC(), h.CreatedAt.UTC())
	return err
}

// Delete removes one hold and reports whether a row was deleted.  Deleting
// a missing hold is not an error.
func (r *SeatHoldRepo) Delete(ctx context.Context, flight, seat, passport string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM seat_holds WHERE flight_number = ? AND seat = ? AND passport = ?", flight, seat, passport)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteByPassport removes every hold passport has on flight and returns
// the released seats.
func (r *SeatHoldRepo) DeleteByPassport(ctx context.Context, flight, passport string) ([]string, error) {
	var seats []string
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT seat FROM seat_holds WHERE flight_number = ? AND passport = ? ORDER BY seat FOR UPDATE",
			flight, passport)
		if err != nil {
			return err
		}
		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err != nil {
				rows.Close()
				return err
			}
			seats = append(seats, s)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"DELETE FROM seat_holds WHERE flight_number = ? AND passport = ?", flight, passport)
		return err
	})
	if err != nil {
		return nil, err
	}
	return seats, nil
}
