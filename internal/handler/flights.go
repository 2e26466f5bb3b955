package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/clock"
	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/seating"
)

// FlightHandler serves the public flight listing and seat map, and the
// admin flight management endpoints.
type FlightHandler struct {
	Flights        FlightStore
	Bookings       BookingReader
	Seats          *seating.Service
	Cache          CacheInvalidator
	Audit          seating.AuditLogger
	AuditLog       AuditReader
	DefaultColumns []string
	Clock          clock.Clock
	Log            logrus.FieldLogger
}

// ----- DTOs -----

// flightReq is the body of flight create and update.  On update every
// field is optional and only provided fields change.
type flightReq struct {
	Flight         string     `json:"flight"`
	Time           *time.Time `json:"time"`
	Arrival        *time.Time `json:"arrival"`
	Aircraft       *string    `json:"aircraft"`
	Gate           *string    `json:"gate"`
	Capacity       *int       `json:"capacity"`
	Columns        []string   `json:"columns"`
	BlockedSeats   []string   `json:"blocked_seats"`
	CheckinEnabled *bool      `json:"checkin_enabled"`
}

// apply copies the provided fields of req onto f.
func (req flightReq) apply(f *model.Flight) string {
	if n := strings.ToUpper(strings.TrimSpace(req.Flight)); n != "" {
		f.Number = n
	}
	if req.Time != nil {
		f.ScheduledAt = req.Time
	}
	if req.Arrival != nil {
		f.ArrivalAt = req.Arrival
	}
	if req.Aircraft != nil {
		f.Aircraft = req.Aircraft
	}
	if req.Gate != nil {
		f.Gate = req.Gate
	}
	if req.Capacity != nil {
		if *req.Capacity <= 0 {
			f.Capacity = nil
		} else {
			f.Capacity = req.Capacity
		}
	}
	if req.Columns != nil {
		cols, ok := normalizeColumns(req.Columns)
		if !ok {
			return "columns must be distinct single letters"
		}
		f.Columns = cols
	}
	if req.BlockedSeats != nil {
		seats := make([]string, 0, len(req.BlockedSeats))
		for _, raw := range req.BlockedSeats {
			label, ok := seating.NormalizeLabel(raw)
			if !ok {
				return "invalid blocked seat " + strconv.Quote(raw)
			}
			seats = append(seats, label)
		}
		f.BlockedSeats = seats
	}
	if req.CheckinEnabled != nil {
		f.CheckinEnabled = *req.CheckinEnabled
	}
	return ""
}

func normalizeColumns(in []string) ([]string, bool) {
	if len(in) == 0 || len(in) > 10 {
		return nil, false
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToUpper(strings.TrimSpace(c))
		if len(c) != 1 || c[0] < 'A' || c[0] > 'Z' || seen[c] {
			return nil, false
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, true
}

func (h *FlightHandler) invalidate(ctx context.Context) {
	if h.Cache != nil {
		h.Cache.Invalidate(ctx)
	}
}

// flightParam reads the :id path parameter as a flight number.
func flightParam(c echo.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("id")))
}

// List handles GET /v1/flights.
func (h *FlightHandler) List(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	flights, err := h.Flights.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if flights == nil {
		flights = []model.Flight{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": flights})
}

// SeatMap handles GET /v1/flights/:id/seats.  It needs no authentication
// so kiosks can render it.
func (h *FlightHandler) SeatMap(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	m, err := h.Seats.SeatMap(ctx, flightParam(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Create handles POST /v1/admin/flights.
func (h *FlightHandler) Create(c echo.Context) error {
	var req flightReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	f := model.Flight{Columns: h.DefaultColumns}
	if msg := req.apply(&f); msg != "" {
		return badRequest(c, msg)
	}
	if f.Number == "" {
		return badRequest(c, "flight is required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Flights.Create(ctx, &f); err != nil {
		return respondError(c, h.Log, err)
	}
	h.invalidate(ctx)
	recordEvent(ctx, h.Audit, h.Clock, model.EventFlightCreated, f.Number, "", nil)
	return c.JSON(http.StatusCreated, f)
}

// Update handles PUT /v1/admin/flights/:id.  Renaming onto an existing
// flight number fails with 409.
func (h *FlightHandler) Update(c echo.Context) error {
	number := flightParam(c)
	var req flightReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	var f model.Flight
	err := h.Seats.Exclusive(ctx, number, func(ctx context.Context) error {
		cur, err := h.Flights.Get(ctx, number)
		if err != nil {
			return err
		}
		f = cur
		if msg := req.apply(&f); msg != "" {
			return &seating.Error{Kind: seating.KindInvalidInput, Flight: number, Detail: msg}
		}
		return h.Flights.Update(ctx, number, &f)
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.invalidate(ctx)
	attrs := map[string]string(nil)
	if f.Number != number {
		attrs = map[string]string{"renamed_from": number}
	}
	recordEvent(ctx, h.Audit, h.Clock, model.EventFlightUpdated, f.Number, "", attrs)
	return c.JSON(http.StatusOK, f)
}

// Delete handles DELETE /v1/admin/flights/:id.  Bookings and holds go with
// the flight.
func (h *FlightHandler) Delete(c echo.Context) error {
	number := flightParam(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	err := h.Seats.Exclusive(ctx, number, func(ctx context.Context) error {
		return h.Flights.Delete(ctx, number)
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.invalidate(ctx)
	recordEvent(ctx, h.Audit, h.Clock, model.EventFlightDeleted, number, "", nil)
	return c.NoContent(http.StatusNoContent)
}

// Passengers handles GET /v1/admin/flights/:id/passengers.
func (h *FlightHandler) Passengers(c echo.Context) error {
	number := flightParam(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.Flights.Get(ctx, number); err != nil {
		return respondError(c, h.Log, err)
	}
	bookings, err := h.Bookings.ListByFlight(ctx, number)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"flight": number, "items": bookings})
}

// ToggleCheckin handles POST /v1/admin/flights/:id/checkin-toggle.
func (h *FlightHandler) ToggleCheckin(c echo.Context) error {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil || req.Enabled == nil {
		return badRequest(c, "enabled is required")
	}
	number := flightParam(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Flights.SetCheckinEnabled(ctx, number, *req.Enabled); err != nil {
		return respondError(c, h.Log, err)
	}
	h.invalidate(ctx)
	recordEvent(ctx, h.Audit, h.Clock, model.EventCheckinToggled, number, "", map[string]string{"enabled": strconv.FormatBool(*req.Enabled)})
	return c.JSON(http.StatusOK, echo.Map{"flight": number, "checkin_enabled": *req.Enabled})
}

// BlockSeat handles POST /v1/admin/flights/:id/seat-block.
func (h *FlightHandler) BlockSeat(c echo.Context) error {
	var req struct {
		Seat   string `json:"seat"`
		Action string `json:"action"` // block | unblock
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	var blocked bool
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "block", "":
		blocked = true
	case "unblock":
		blocked = false
	default:
		return badRequest(c, "action must be block or unblock")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Seats.SetSeatBlocked(ctx, flightParam(c), req.Seat, blocked); err != nil {
		return respondError(c, h.Log, err)
	}
	label, _ := seating.NormalizeLabel(req.Seat)
	return c.JSON(http.StatusOK, echo.Map{"flight": flightParam(c), "seat": label, "blocked": blocked})
}

// AuditTrail handles GET /v1/admin/flights/:id/audit?limit=.
func (h *FlightHandler) AuditTrail(c echo.Context) error {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			return badRequest(c, "limit must be between 1 and 1000")
		}
		limit = n
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	events, err := h.AuditLog.Recent(ctx, flightParam(c), limit)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}
