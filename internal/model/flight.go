package model

import "time"

// DefaultColumns is the seat column layout used when a flight does not
// define its own: three seats either side of a single aisle.
var DefaultColumns = []string{"A", "B", "C", "D", "E", "F"}

// Flight represents a scheduled departure that passengers check in for.
// The flight number is the natural key and is unique.  Capacity is
// optional: a nil capacity means seating is unmanaged and only the
// legacy numeric seat fallback applies.
//
// Fields:
//  Number          – flight number, e.g. "LH123" (unique).
//  ScheduledAt     – scheduled departure time (nil if not yet known).
//  ArrivalAt       – scheduled arrival time (nil if not yet known).
//  Aircraft        – aircraft type code (optional).
//  Gate            – departure gate (optional).
//  Capacity        – number of sellable seats (nil = unbounded).
//  Columns         – ordered seat column letters for one row.
//  BlockedSeats    – seat labels administratively removed from sale.
//  CheckinEnabled  – whether passengers may currently check in.
//  BoardingStarted – whether boarding has been opened at the gate.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Flight struct {
	Number          string     `json:"flight"`
	ScheduledAt     *time.Time `json:"time,omitempty"`
	ArrivalAt       *time.Time `json:"arrival,omitempty"`
	Aircraft        *string    `json:"aircraft,omitempty"`
	Gate            *string    `json:"gate,omitempty"`
	Capacity        *int       `json:"capacity"`
	Columns         []string   `json:"columns"`
	BlockedSeats    []string   `json:"blocked_seats"`
	CheckinEnabled  bool       `json:"checkin_enabled"`
	BoardingStarted bool       `json:"boarding_started"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SeatColumns returns the flight's column layout, falling back to
// DefaultColumns when none is configured.
func (f Flight) SeatColumns() []string {
	if len(f.Columns) == 0 {
		return DefaultColumns
	}
	return f.Columns
}

// HasCapacity reports whether the flight has managed seating.
func (f Flight) HasCapacity() bool {
	return f.Capacity != nil && *f.Capacity > 0
}
