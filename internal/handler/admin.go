package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/clock"
	"github.com/iliyamo/airport-checkin/internal/middleware"
	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/seating"
	"github.com/iliyamo/airport-checkin/internal/utils"
)

// AdminHandler serves gate operations, passenger management, statistics
// and operator account management.
type AdminHandler struct {
	Flights    FlightStore
	Bookings   BookingReader
	Seats      *seating.Service
	Admins     AdminStore
	Tokens     TokenStore
	Audit      seating.AuditLogger
	BcryptCost int
	Clock      clock.Clock
	Log        logrus.FieldLogger
}

type boardingStatus struct {
	Flight          string `json:"flight"`
	BoardingStarted bool   `json:"boarding_started"`
	Passengers      int    `json:"passengers"`
	CheckedIn       int    `json:"checked_in"`
	Boarded         int    `json:"boarded"`
}

// Boarding handles GET /v1/admin/flights/:id/boarding.
func (h *AdminHandler) Boarding(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	st, err := h.boardingStatus(ctx, flightParam(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *AdminHandler) boardingStatus(ctx context.Context, number string) (boardingStatus, error) {
	f, err := h.Flights.Get(ctx, number)
	if err != nil {
		return boardingStatus{}, err
	}
	bookings, err := h.Bookings.ListByFlight(ctx, number)
	if err != nil {
		return boardingStatus{}, err
	}
	st := boardingStatus{Flight: f.Number, BoardingStarted: f.BoardingStarted, Passengers: len(bookings)}
	for _, b := range bookings {
		if b.CheckedIn {
			st.CheckedIn++
		}
		if b.BoardedAt != nil {
			st.Boarded++
		}
	}
	return st, nil
}

// BoardingAction handles POST /v1/admin/flights/:id/boarding with action
// start, stop or mark_boarded.  Only checked-in passengers can board and
// only while boarding is open.
func (h *AdminHandler) BoardingAction(c echo.Context) error {
	var req struct {
		Action   string `json:"action"`
		Passport string `json:"passport"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	number := flightParam(c)
	action := strings.ToLower(strings.TrimSpace(req.Action))

	ctx, cancel := requestContext(c)
	defer cancel()

	attrs := map[string]string{"action": action}
	switch action {
	case "start", "stop":
		if err := h.Flights.SetBoardingStarted(ctx, number, action == "start"); err != nil {
			return respondError(c, h.Log, err)
		}
	case "mark_boarded":
		passport := strings.TrimSpace(req.Passport)
		if passport == "" {
			return badRequest(c, "passport is required")
		}
		f, err := h.Flights.Get(ctx, number)
		if err != nil {
			return respondError(c, h.Log, err)
		}
		if !f.BoardingStarted {
			return c.JSON(http.StatusConflict, echo.Map{"error": "boarding has not started", "code": "boarding_closed"})
		}
		b, err := h.Bookings.Get(ctx, number, passport)
		if err != nil {
			return respondError(c, h.Log, err)
		}
		if !b.CheckedIn {
			return c.JSON(http.StatusConflict, echo.Map{"error": "passenger is not checked in", "code": "not_checked_in"})
		}
		if err := h.Bookings.MarkBoarded(ctx, number, passport, now(h.Clock)); err != nil {
			return respondError(c, h.Log, err)
		}
		attrs["passport"] = passport
	default:
		return badRequest(c, "action must be start, stop or mark_boarded")
	}
	recordEvent(ctx, h.Audit, h.Clock, model.EventBoardingAction, number, req.Passport, attrs)

	st, err := h.boardingStatus(ctx, number)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

// DeletePassenger handles DELETE /v1/admin/passengers/:passport?flight=.
// The booking is removed together with any holds the passenger had.
func (h *AdminHandler) DeletePassenger(c echo.Context) error {
	passport := strings.TrimSpace(c.Param("passport"))
	flight := strings.ToUpper(strings.TrimSpace(c.QueryParam("flight")))
	if flight == "" {
		return badRequest(c, "flight is required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	err := h.Seats.Exclusive(ctx, flight, func(ctx context.Context) error {
		return h.Bookings.Delete(ctx, flight, passport)
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if _, err := h.Seats.ReleaseHolds(ctx, flight, passport); err != nil {
		h.Log.WithError(err).WithFields(logrus.Fields{"flight": flight, "passport": passport}).Warn("release holds of deleted passenger")
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats handles GET /v1/admin/stats.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	flights, err := h.Flights.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	var passengers, checkedIn, boarded, bags, fees, feesPaid, open int
	for _, f := range flights {
		if f.CheckinEnabled {
			open++
		}
		bookings, err := h.Bookings.ListByFlight(ctx, f.Number)
		if err != nil {
			return respondError(c, h.Log, err)
		}
		for _, b := range bookings {
			passengers++
			if b.CheckedIn {
				checkedIn++
			}
			if b.BoardedAt != nil {
				boarded++
			}
			bags += b.BaggageCount
			fees += b.BaggageFee
			if b.BaggagePaid {
				feesPaid += b.BaggageFee
			}
		}
	}
	rate := 0.0
	if passengers > 0 {
		rate = float64(checkedIn*10000/passengers) / 100
	}
	return c.JSON(http.StatusOK, echo.Map{
		"flights":    echo.Map{"total": len(flights), "checkin_open": open},
		"passengers": echo.Map{"total": passengers, "checked_in": checkedIn, "boarded": boarded, "check_in_rate": rate},
		"baggage":    echo.Map{"total_count": bags, "total_fees": fees, "fees_paid": feesPaid},
	})
}

type adminUserResp struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// ListUsers handles GET /v1/admin/users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	users, err := h.Admins.List(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	out := make([]adminUserResp, 0, len(users))
	for _, u := range users {
		out = append(out, adminUserResp{Username: u.Username, CreatedAt: u.CreatedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// CreateUser handles POST /v1/admin/users.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req adminLoginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return badRequest(c, "username is required")
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Admins.Create(ctx, req.Username, req.Password, h.BcryptCost)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, adminUserResp{Username: u.Username, CreatedAt: u.CreatedAt})
}

// DeleteUser handles DELETE /v1/admin/users/:username.  Admins cannot
// delete themselves; the deleted account's refresh tokens are revoked.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	username := strings.TrimSpace(c.Param("username"))
	if username == middleware.Subject(c) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "cannot delete your own account", "code": "self_delete"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Admins.Delete(ctx, username); err != nil {
		return respondError(c, h.Log, err)
	}
	if err := h.Tokens.RevokeAllFor(ctx, username, model.RoleAdmin); err != nil {
		h.Log.WithError(err).WithField("username", username).Warn("revoke tokens of deleted admin")
	}
	return c.NoContent(http.StatusNoContent)
}
