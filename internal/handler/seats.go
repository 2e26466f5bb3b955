package handler

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/seating"
)

// SeatHandler exposes seat selection, auto-assignment and holds to
// passengers and admins.  MaxTTL caps ttl_seconds; zero leaves the cap to
// the seat service.
type SeatHandler struct {
	Seats      *seating.Service
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	Log        logrus.FieldLogger
}

type selectReq struct {
	Seat     string `json:"seat"`
	Passport string `json:"passport"`
}
type autoassignReq struct {
	Preference string `json:"preference"`
	Passport   string `json:"passport"`
}
type holdReq struct {
	Seat       string `json:"seat"`
	TTLSeconds *int   `json:"ttl_seconds"`
	Passport   string `json:"passport"`
}

func assignmentResp(a seating.Assignment) echo.Map {
	return echo.Map{"status": "ok", "flight": a.Flight, "passport": a.Passport, "seat": a.Seat, "changed": a.Changed}
}

// Select handles POST /v1/flights/:id/seats/select.
func (h *SeatHandler) Select(c echo.Context) error {
	var req selectReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	passport, err := targetPassport(c, req.Passport)
	if err != nil {
		return respondTarget(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.Seats.SelectSeat(ctx, flightParam(c), passport, req.Seat)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, assignmentResp(a))
}

// AutoAssign handles POST /v1/flights/:id/seats/autoassign.
func (h *SeatHandler) AutoAssign(c echo.Context) error {
	var req autoassignReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	pref, ok := seating.ParsePreference(req.Preference)
	if !ok {
		return badRequest(c, "preference must be window, aisle, middle or any")
	}
	passport, err := targetPassport(c, req.Passport)
	if err != nil {
		return respondTarget(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	a, err := h.Seats.AutoAssign(ctx, flightParam(c), passport, pref)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, assignmentResp(a))
}

// Hold handles POST /v1/flights/:id/seats/hold.  ttl_seconds defaults to
// the configured hold TTL.
func (h *SeatHandler) Hold(c echo.Context) error {
	var req holdReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	passport, err := targetPassport(c, req.Passport)
	if err != nil {
		return respondTarget(c, err)
	}
	ttl := h.DefaultTTL
	if req.TTLSeconds != nil {
		ttl = holdTTL(*req.TTLSeconds, h.MaxTTL)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	hold, err := h.Seats.HoldSeat(ctx, flightParam(c), passport, req.Seat, ttl)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":     "held",
		"flight":     hold.Flight,
		"seat":       hold.Seat,
		"passport":   hold.Passport,
		"hold_token": hold.HoldToken,
		"expires":    hold.ExpiresAt,
	})
}

// holdTTL converts a requested ttl_seconds into a duration, clamping it to
// limit before the multiplication can overflow.  Negative input stays
// negative so the service rejects it.
func holdTTL(secs int, limit time.Duration) time.Duration {
	if limit <= 0 {
		limit = time.Duration(math.MaxInt64)
	}
	switch {
	case secs < 0:
		return -time.Second
	case int64(secs) > int64(limit/time.Second):
		return limit
	}
	return time.Duration(secs) * time.Second
}

// ReleaseHold handles DELETE /v1/flights/:id/seats/:seat/hold?passport=.
// It succeeds whether or not a hold existed.
func (h *SeatHandler) ReleaseHold(c echo.Context) error {
	passport, err := targetPassport(c, c.QueryParam("passport"))
	if err != nil {
		return respondTarget(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Seats.ReleaseHold(ctx, flightParam(c), passport, c.Param("seat")); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "released"})
}

// ReleaseHolds handles DELETE /v1/flights/:id/holds?passport=.
func (h *SeatHandler) ReleaseHolds(c echo.Context) error {
	passport, err := targetPassport(c, c.QueryParam("passport"))
	if err != nil {
		return respondTarget(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	seats, err := h.Seats.ReleaseHolds(ctx, flightParam(c), passport)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if seats == nil {
		seats = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "released", "seats": seats})
}

// AdminAssign handles POST /v1/admin/passengers/:passport/seat.  seat may
// be a label or a preference keyword.
func (h *SeatHandler) AdminAssign(c echo.Context) error {
	var req struct {
		Flight string `json:"flight"`
		Seat   string `json:"seat"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	flight := strings.ToUpper(strings.TrimSpace(req.Flight))
	passport := strings.TrimSpace(c.Param("passport"))
	ctx, cancel := requestContext(c)
	defer cancel()

	var (
		a   seating.Assignment
		err error
	)
	if seating.IsPreferenceKeyword(req.Seat) {
		pref, _ := seating.ParsePreference(req.Seat)
		a, err = h.Seats.AutoAssign(ctx, flight, passport, pref)
	} else {
		a, err = h.Seats.SelectSeat(ctx, flight, passport, req.Seat)
	}
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, assignmentResp(a))
}
