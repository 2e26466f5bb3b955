package service

import (
	"errors"
	"fmt"
)

var (
	// ErrCheckinClosed is returned when check-in is disabled for the flight.
	ErrCheckinClosed = errors.New("check-in is not open for this flight")
	// ErrNotCheckedIn is returned for a boarding pass request on a booking
	// that has not completed check-in or has no seat.
	ErrNotCheckedIn = errors.New("passenger is not checked in")
)

// InsufficientAmountError is returned when a baggage payment does not
// cover the fee.
type InsufficientAmountError struct {
	Required int
	Paid     int
}

func (e *InsufficientAmountError) Error() string {
	return fmt.Sprintf("insufficient amount: paid %d, required %d", e.Paid, e.Required)
}
