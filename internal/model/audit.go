package model

import "time"

// Audit event types.
const (
	EventSeatSelected     = "seat_selected"
	EventSeatAutoassigned = "seat_autoassigned"
	EventSeatHeld         = "seat_held"
	EventSeatHoldReleased = "seat_hold_released"
	EventSeatBlock        = "seat_block"
	EventCheckin          = "checkin"
	EventFlightCreated    = "flight_created"
	EventFlightUpdated    = "flight_updated"
	EventFlightDeleted    = "flight_deleted"
	EventCheckinToggled   = "checkin_toggled"
	EventBoardingAction   = "boarding_action"
	EventAdminLogin       = "admin_login"
	EventLogin            = "login"
	EventBookingCreated   = "booking_created"
	EventBaggagePayment   = "baggage_payment"
)

// AuditEvent is an append-only record of something that happened.  Attrs
// carries event-specific detail (seat, action, amount...).
type AuditEvent struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Flight     string            `json:"flight,omitempty"`
	Passport   string            `json:"passport,omitempty"`
	Actor      string            `json:"by,omitempty"`
	Attrs      map[string]string `json:"attrs,omitempty"`
	OccurredAt time.Time         `json:"timestamp"`
}
