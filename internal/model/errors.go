package model

import "errors"

// Storage-level sentinels shared by repositories and the services that
// consume them.  Repositories wrap these with context; callers test with
// errors.Is.
var (
	ErrFlightNotFound  = errors.New("flight not found")
	ErrFlightExists    = errors.New("flight already exists")
	ErrBookingNotFound = errors.New("booking not found")
	ErrBookingExists   = errors.New("booking already exists")
	// ErrSeatConflict is returned by a seat commit when another booking on
	// the same flight already owns the seat.
	ErrSeatConflict = errors.New("seat already assigned on flight")
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)
