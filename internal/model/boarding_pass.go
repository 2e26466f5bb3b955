package model

import "time"

// BoardingPass is the data printed on (or encoded into) a boarding pass.
// It exists only for checked-in bookings with a committed seat.
type BoardingPass struct {
	Name      string     `json:"name"`
	Passport  string     `json:"passport"`
	Flight    string     `json:"flight"`
	Seat      string     `json:"seat"`
	Gate      string     `json:"gate,omitempty"`
	DepartsAt *time.Time `json:"time,omitempty"`
	QR        string     `json:"qr"`
}

// BoardingPassQR is the payload encoded into the pass's QR code.
func BoardingPassQR(passport, flight, seat string) string {
	return "pass:" + passport + "|flight:" + flight + "|seat:" + seat
}
