package model

import "time"

// Booking is a passenger's record on one flight.  A passport may hold
// bookings on many flights but at most one per flight.  Seat stays nil
// until a seat is committed by the seat assignment service.
//
// Fields:
//  ID           – primary key identifier.
//  Passport     – passport number identifying the passenger.
//  Flight       – flight number the booking belongs to.
//  Name         – passenger full name.
//  Email        – contact address for the boarding pass (optional).
//  TicketNumber – ticket reference captured at check-in (optional).
//  Seat         – committed seat label (nil until assigned).
//  CheckedIn    – whether the passenger has checked in.
//  BaggageCount – number of checked bags.
//  BaggageFee   – fee owed for the checked bags.
//  BaggagePaid  – whether the baggage fee has been paid.
//  BoardedAt    – when the passenger was marked boarded (nil if not).
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Booking struct {
	ID           uint64     `json:"id"`
	Passport     string     `json:"passport"`
	Flight       string     `json:"flight"`
	Name         string     `json:"name"`
	Email        *string    `json:"email,omitempty"`
	TicketNumber *string    `json:"ticket_number,omitempty"`
	Seat         *string    `json:"seat"`
	CheckedIn    bool       `json:"checked_in"`
	BaggageCount int        `json:"baggage_count"`
	BaggageFee   int        `json:"baggage_fee"`
	BaggagePaid  bool       `json:"baggage_paid"`
	BoardedAt    *time.Time `json:"boarded_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SeatLabel returns the committed seat or "" when none is assigned.
func (b Booking) SeatLabel() string {
	if b.Seat == nil {
		return ""
	}
	return *b.Seat
}

// TakenSeat is a committed seat on a flight together with the passenger
// occupying it.  It is the read model the seat allocation core uses for
// collision and capacity checks.
type TakenSeat struct {
	Seat     string
	Passport string
	Name     string
}
