package model

import "time"

// SeatHold represents a temporary hold on a seat while a passenger
// decides.  Holds prevent other passengers from grabbing the same seat
// and lapse on their own once ExpiresAt has passed.  There is at most
// one hold per (flight, seat, passport); holding again replaces it.
//
// Fields:
//  Flight    – flight number the seat belongs to.
//  Seat      – seat label being held.
//  Passport  – passenger holding the seat.
//  HoldToken – opaque token returned to the client for reference.
//  ExpiresAt – when the hold lapses (UTC).
//  CreatedAt – when the hold was (re)placed.
type SeatHold struct {
	Flight    string    `json:"flight"`
	Seat      string    `json:"seat"`
	Passport  string    `json:"passport"`
	HoldToken string    `json:"hold_token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the hold is still in force at now.  A hold whose
// expiry equals now has already lapsed.
func (h SeatHold) Active(now time.Time) bool {
	return h.ExpiresAt.After(now)
}
