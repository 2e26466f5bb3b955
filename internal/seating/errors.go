package seating

import (
	"errors"
	"fmt"
)

// Kind classifies a seat allocation failure.
type Kind string

const (
	KindSeatBlocked     Kind = "seat_blocked"
	KindSeatTaken       Kind = "seat_taken"
	KindSeatHeld        Kind = "seat_held"
	KindNoSeatAvailable Kind = "no_seat_available"
	KindFlightFull      Kind = "flight_full"
	KindFlightNotFound  Kind = "flight_not_found"
	KindBookingNotFound Kind = "booking_not_found"
	KindInvalidInput    Kind = "invalid_input"
)

// Error is the typed failure returned by every seat allocation operation.
// Flight and Seat name the offending resource so callers can render an
// actionable message.  Race losers get the same Kind as an up-front
// conflict.
type Error struct {
	Kind   Kind
	Flight string
	Seat   string
	Detail string
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Flight != "" {
		msg += " flight=" + e.Flight
	}
	if e.Seat != "" {
		msg += " seat=" + e.Seat
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches any *Error of the same Kind, so errors.Is(err, ErrSeatTaken)
// works regardless of the flight or seat attached.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrSeatBlocked     = &Error{Kind: KindSeatBlocked}
	ErrSeatTaken       = &Error{Kind: KindSeatTaken}
	ErrSeatHeld        = &Error{Kind: KindSeatHeld}
	ErrNoSeatAvailable = &Error{Kind: KindNoSeatAvailable}
	ErrFlightFull      = &Error{Kind: KindFlightFull}
	ErrFlightNotFound  = &Error{Kind: KindFlightNotFound}
	ErrBookingNotFound = &Error{Kind: KindBookingNotFound}
	ErrInvalidInput    = &Error{Kind: KindInvalidInput}
)

// KindOf returns the Kind of a seating error, or "" for anything else.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func newError(kind Kind, flight, seat string) *Error {
	return &Error{Kind: kind, Flight: flight, Seat: seat}
}

func invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Detail: fmt.Sprintf(format, args...)}
}
