package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/airport-checkin/internal/database"
	"github.com/iliyamo/airport-checkin/internal/model"
)

// BookingRepo provides access to passenger bookings.  A booking is keyed
// by (passport, flight_number); the UNIQUE(flight_number, seat) index is
// the last line of defence against double booking.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, passport, flight_number, name, email, ticket_number, seat, checked_in,
	baggage_count, baggage_fee, baggage_paid, boarded_at, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
	var (
		b       model.Booking
		email   sql.NullString
		ticket  sql.NullString
		seat    sql.NullString
		boarded sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.Passport, &b.Flight, &b.Name, &email, &ticket, &seat, &b.CheckedIn,
		&b.BaggageCount, &b.BaggageFee, &b.BaggagePaid, &boarded, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.Booking{}, err
	}
	if email.Valid {
		b.Email = &email.String
	}
	if ticket.Valid {
		b.TicketNumber = &ticket.String
	}
	if seat.Valid {
		b.Seat = &seat.String
	}
	if boarded.Valid {
		t := boarded.Time
		b.BoardedAt = &t
	}
	return b, nil
}

// SeatsTaken lists the committed seats on a flight in booking order.
func (r *BookingRepo) SeatsTaken(ctx context.Context, flight string) ([]model.TakenSeat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat, passport, name FROM bookings
		 WHERE flight_number = ? AND seat IS NOT NULL ORDER BY id`, flight)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TakenSeat
	for rows.Next() {
		var t model.TakenSeat
		if err := rows.Scan(&t.Seat, &t.Passport, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CommitSeat writes seat onto the passenger's booking.  The booking row is
// locked first; a unique-key violation on (flight_number, seat) means
// another booking got the seat and is reported as model.ErrSeatConflict.
func (r *BookingRepo) CommitSeat(ctx context.Context, flight, passport, seat string) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var id uint64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM bookings WHERE flight_number = ? AND passport = ? FOR UPDATE",
			flight, passport).Scan(&id)
		if err != nil {
			return mapNoRows(err, model.ErrBookingNotFound)
		}
		var owner string
		err = tx.QueryRowContext(ctx,
			"SELECT passport FROM bookings WHERE flight_number = ? AND seat = ? FOR UPDATE",
			flight, seat).Scan(&owner)
		switch {
		case err == nil && owner != passport:
			return model.ErrSeatConflict
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE bookings SET seat = ? WHERE id = ?", seat, id); err != nil {
			if database.IsDuplicateKey(err) {
				return model.ErrSeatConflict
			}
			return err
		}
		return nil
	})
}

// Create inserts a booking.  It returns model.ErrBookingExists when the
// passport already has a booking on the flight and model.ErrFlightNotFound
// when the flight does not exist.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (passport, flight_number, name, email, ticket_number, seat, baggage_count, baggage_fee)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Passport, b.Flight, b.Name, b.Email, b.TicketNumber, b.Seat, b.BaggageCount, b.BaggageFee)
	if err != nil {
		switch {
		case database.IsDuplicateKey(err):
			return model.ErrBookingExists
		case database.IsForeignKeyViolation(err):
			return model.ErrFlightNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := scanBooking(r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
	if err != nil {
		return err
	}
	*b = got
	return nil
}

// Get fetches the booking for passport on flight.
func (r *BookingRepo) Get(ctx context.Context, flight, passport string) (model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE flight_number = ? AND passport = ?", flight, passport))
	if err != nil {
		return model.Booking{}, mapNoRows(err, model.ErrBookingNotFound)
	}
	return b, nil
}

// ListByFlight returns the passenger list of a flight.
func (r *BookingRepo) ListByFlight(ctx context.Context, flight string) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE flight_number = ? ORDER BY id", flight)
}

// ListByPassport returns every booking a passport holds.
func (r *BookingRepo) ListByPassport(ctx context.Context, passport string) ([]model.Booking, error) {
	return r.list(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE passport = ? ORDER BY id", passport)
}

func (r *BookingRepo) list(ctx context.Context, q string, arg any) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CountByFlight returns the number of bookings on a flight.
func (r *BookingRepo) CountByFlight(ctx context.Context, flight string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE flight_number = ?", flight).Scan(&n)
	return n, err
}

// CheckIn stores the check-in details of b and marks it checked in.  The
// seat is written separately through CommitSeat.
func (r *BookingRepo) CheckIn(ctx context.Context, b *model.Booking) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET name = ?, ticket_number = ?, baggage_count = ?, baggage_fee = ?, checked_in = 1
		 WHERE flight_number = ? AND passport = ?`,
		b.Name, b.TicketNumber, b.BaggageCount, b.BaggageFee, b.Flight, b.Passport)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.mustExist(ctx, b.Flight, b.Passport)
	}
	return nil
}

// PayBaggage marks the baggage fee as paid.
func (r *BookingRepo) PayBaggage(ctx context.Context, flight, passport string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE bookings SET baggage_paid = 1 WHERE flight_number = ? AND passport = ?", flight, passport)
	if err != nil {
		return err
	}
	return r.mustExist(ctx, flight, passport)
}

// MarkBoarded records the boarding time.
func (r *BookingRepo) MarkBoarded(ctx context.Context, flight, passport string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE bookings SET boarded_at = ? WHERE flight_number = ? AND passport = ?", at.UTC(), flight, passport)
	if err != nil {
		return err
	}
	return r.mustExist(ctx, flight, passport)
}

// mustExist distinguishes "no such booking" from "nothing changed", which
// MySQL reports identically as zero affected rows.
func (r *BookingRepo) mustExist(ctx context.Context, flight, passport string) error {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM bookings WHERE flight_number = ? AND passport = ?", flight, passport).Scan(&one)
	return mapNoRows(err, model.ErrBookingNotFound)
}

// Delete removes the booking for passport on flight.
func (r *BookingRepo) Delete(ctx context.Context, flight, passport string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM bookings WHERE flight_number = ? AND passport = ?", flight, passport)
	if err != nil {
		return err
	}
	return expectOne(res, model.ErrBookingNotFound)
}
