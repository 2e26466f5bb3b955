package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/airport-checkin/internal/database"
	"github.com/iliyamo/airport-checkin/internal/model"
)

// FlightRepo encapsulates all queries on flights and their blocked seats.
type FlightRepo struct {
	db *sql.DB
}

// NewFlightRepo returns a FlightRepo bound to db.
func NewFlightRepo(db *sql.DB) *FlightRepo { return &FlightRepo{db: db} }

const flightColumns = `flight_number, scheduled_at, arrival_at, aircraft, gate, capacity,
	seat_columns, checkin_enabled, boarding_started, created_at, updated_at`

func scanFlight(row interface{ Scan(...any) error }) (model.Flight, error) {
	var (
		f        model.Flight
		sched    sql.NullTime
		arrival  sql.NullTime
		aircraft sql.NullString
		gate     sql.NullString
		capacity sql.NullInt64
		columns  string
	)
	if err := row.Scan(&f.Number, &sched, &arrival, &aircraft, &gate, &capacity,
		&columns, &f.CheckinEnabled, &f.BoardingStarted, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return model.Flight{}, err
	}
	if sched.Valid {
		t := sched.Time
		f.ScheduledAt = &t
	}
	if arrival.Valid {
		t := arrival.Time
		f.ArrivalAt = &t
	}
	if aircraft.Valid {
		f.Aircraft = &aircraft.String
	}
	if gate.Valid {
		f.Gate = &gate.String
	}
	if capacity.Valid {
		n := int(capacity.Int64)
		f.Capacity = &n
	}
	f.Columns = splitColumns(columns)
	f.BlockedSeats = []string{}
	return f, nil
}

func splitColumns(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), model.DefaultColumns...)
	}
	return out
}

// Get fetches a flight with its blocked seats.  It returns
// model.ErrFlightNotFound when the flight does not exist.
func (r *FlightRepo) Get(ctx context.Context, number string) (model.Flight, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+flightColumns+" FROM flights WHERE flight_number = ?", number)
	f, err := scanFlight(row)
	if err != nil {
		return model.Flight{}, mapNoRows(err, model.ErrFlightNotFound)
	}
	blocked, err := r.blockedSeats(ctx, number)
	if err != nil {
		return model.Flight{}, err
	}
	f.BlockedSeats = blocked
	return f, nil
}

func (r *FlightRepo) blockedSeats(ctx context.Context, number string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT seat FROM flight_blocked_seats WHERE flight_number = ? ORDER BY created_at, seat", number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// List returns every flight ordered by scheduled time then number.
func (r *FlightRepo) List(ctx context.Context) ([]model.Flight, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+flightColumns+" FROM flights ORDER BY scheduled_at IS NULL, scheduled_at, flight_number")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Flight
	index := map[string]int{}
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		index[f.Number] = len(out)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	brows, err := r.db.QueryContext(ctx,
		"SELECT flight_number, seat FROM flight_blocked_seats ORDER BY flight_number, created_at, seat")
	if err != nil {
		return nil, err
	}
	defer brows.Close()
	for brows.Next() {
		var number, seat string
		if err := brows.Scan(&number, &seat); err != nil {
			return nil, err
		}
		if i, ok := index[number]; ok {
			out[i].BlockedSeats = append(out[i].BlockedSeats, seat)
		}
	}
	return out, brows.Err()
}

// Create inserts a flight and its blocked seats.  It returns
// model.ErrFlightExists on a duplicate flight number.
func (r *FlightRepo) Create(ctx context.Context, f *model.Flight) error {
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO flights
			(flight_number, scheduled_at, arrival_at, aircraft, gate, capacity, seat_columns, checkin_enabled, boarding_started)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.Number, f.ScheduledAt, f.ArrivalAt, f.Aircraft, f.Gate, f.Capacity,
			strings.Join(f.SeatColumns(), ","), f.CheckinEnabled, f.BoardingStarted)
		if err != nil {
			if database.IsDuplicateKey(err) {
				return model.ErrFlightExists
			}
			return err
		}
		return replaceBlocked(ctx, tx, f.Number, f.BlockedSeats)
	})
	if err != nil {
		return err
	}
	got, err := r.Get(ctx, f.Number)
	if err != nil {
		return err
	}
	*f = got
	return nil
}

// Update replaces the flight identified by number with f.  f.Number may
// differ to rename the flight; bookings and holds follow through the
// ON UPDATE CASCADE foreign keys.  It returns model.ErrFlightExists when
// the new number collides with another flight.
func (r *FlightRepo) Update(ctx context.Context, number string, f *model.Flight) error {
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE flights SET
			flight_number = ?, scheduled_at = ?, arrival_at = ?, aircraft = ?, gate = ?, capacity = ?,
			seat_columns = ?, checkin_enabled = ?, boarding_started = ?
			WHERE flight_number = ?`,
			f.Number, f.ScheduledAt, f.ArrivalAt, f.Aircraft, f.Gate, f.Capacity,
			strings.Join(f.SeatColumns(), ","), f.CheckinEnabled, f.BoardingStarted, number)
		if err != nil {
			if database.IsDuplicateKey(err) {
				return model.ErrFlightExists
			}
			return err
		}
		// MySQL reports zero affected rows when nothing changed, so
		// confirm existence separately.
		if n, _ := res.RowsAffected(); n == 0 {
			var one int
			if err := tx.QueryRowContext(ctx, "SELECT 1 FROM flights WHERE flight_number = ?", f.Number).Scan(&one); err != nil {
				return mapNoRows(err, model.ErrFlightNotFound)
			}
		}
		return replaceBlocked(ctx, tx, f.Number, f.BlockedSeats)
	})
	if err != nil {
		return err
	}
	got, err := r.Get(ctx, f.Number)
	if err != nil {
		return err
	}
	*f = got
	return nil
}

func replaceBlocked(ctx context.Context, tx *sql.Tx, number string, seats []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM flight_blocked_seats WHERE flight_number = ?", number); err != nil {
		return err
	}
	for _, s := range seats {
		if _, err := tx.ExecContext(ctx,
			"INSERT IGNORE INTO flight_blocked_seats (flight_number, seat) VALUES (?, ?)", number, s); err != nil {
			return fmt.Errorf("block seat %s: %w", s, err)
		}
	}
	return nil
}

// Delete removes a flight.  Bookings, holds and blocked seats cascade.
func (r *FlightRepo) Delete(ctx context.Context, number string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM flights WHERE flight_number = ?", number)
	if err != nil {
		return err
	}
	return expectOne(res, model.ErrFlightNotFound)
}

// SetSeatBlocked adds or removes seat from the flight's blocked list.
// Both directions are idempotent.
func (r *FlightRepo) SetSeatBlocked(ctx context.Context, number, seat string, blocked bool) error {
	var err error
	if blocked {
		_, err = r.db.ExecContext(ctx,
			"INSERT IGNORE INTO flight_blocked_seats (flight_number, seat) VALUES (?, ?)", number, seat)
		if database.IsForeignKeyViolation(err) {
			return model.ErrFlightNotFound
		}
		return err
	}
	if err := r.exists(ctx, number); err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		"DELETE FROM flight_blocked_seats WHERE flight_number = ? AND seat = ?", number, seat)
	return err
}

// SetCheckinEnabled toggles whether passengers may check in.
func (r *FlightRepo) SetCheckinEnabled(ctx context.Context, number string, enabled bool) error {
	return r.setFlag(ctx, number, "checkin_enabled", enabled)
}

// SetBoardingStarted opens or closes boarding.
func (r *FlightRepo) SetBoardingStarted(ctx context.Context, number string, started bool) error {
	return r.setFlag(ctx, number, "boarding_started", started)
}

func (r *FlightRepo) setFlag(ctx context.Context, number, column string, v bool) error {
	if err := r.exists(ctx, number); err != nil {
		return err
	}
	// column is one of two constants above, never user input.
	_, err := r.db.ExecContext(ctx, "UPDATE flights SET "+column+" = ? WHERE flight_number = ?", v, number)
	return err
}

func (r *FlightRepo) exists(ctx context.Context, number string) error {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM flights WHERE flight_number = ?", number).Scan(&one)
	return mapNoRows(err, model.ErrFlightNotFound)
}
