package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/middleware"
	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/service"
)

// CheckinHandler serves registration, check-in, bookings, boarding passes
// and baggage payment.
type CheckinHandler struct {
	Service  *service.CheckinService
	Bookings BookingReader
	Log      logrus.FieldLogger
}

// flexString accepts a JSON string or number.  Kiosks send legacy seats
// as bare numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type registerReq struct {
	Flight   string `json:"flight"`
	Passport string `json:"passport"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type checkinPassengerReq struct {
	Name         string     `json:"name"`
	Passport     string     `json:"passport"`
	Email        string     `json:"email"`
	TicketNumber string     `json:"ticket_number"`
	Seat         flexString `json:"seat"`
	BaggageCount int        `json:"baggage_count"`
}

type checkinReq struct {
	Flight     string                `json:"flight"`
	Passengers []checkinPassengerReq `json:"passengers"`
}

type payReq struct {
	Flight   string `json:"flight"`
	Passport string `json:"passport"`
	Amount   int    `json:"amount"`
}

// Register handles POST /v1/register.  The booking starts without a seat.
func (h *CheckinHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	b, err := h.Service.Register(ctx, service.RegisterInput{
		Flight:   strings.ToUpper(strings.TrimSpace(req.Flight)),
		Passport: req.Passport,
		Name:     req.Name,
		Email:    req.Email,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Checkin handles POST /v1/checkin.  Passengers may only check themselves
// in; an empty passenger list means "me".  Admins may check in any list of
// passengers.
func (h *CheckinHandler) Checkin(c echo.Context) error {
	var req checkinReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	flight := strings.ToUpper(strings.TrimSpace(req.Flight))

	ctx, cancel := requestContext(c)
	defer cancel()

	passengers := make([]service.CheckinPassenger, 0, len(req.Passengers))
	for _, p := range req.Passengers {
		passengers = append(passengers, service.CheckinPassenger{
			Name:         p.Name,
			Passport:     p.Passport,
			Email:        p.Email,
			TicketNumber: p.TicketNumber,
			Seat:         string(p.Seat),
			BaggageCount: p.BaggageCount,
		})
	}

	if !middleware.IsAdmin(c) {
		me := middleware.Subject(c)
		if len(passengers) == 0 {
			b, err := h.Bookings.Get(ctx, flight, me)
			if err != nil {
				return respondError(c, h.Log, err)
			}
			passengers = append(passengers, service.CheckinPassenger{Name: b.Name, Passport: me})
		}
		for i := range passengers {
			if strings.TrimSpace(passengers[i].Passport) == "" {
				passengers[i].Passport = me
			}
			if strings.TrimSpace(passengers[i].Passport) != me {
				return respondTarget(c, errForbidden)
			}
		}
	} else if len(passengers) == 0 {
		return badRequest(c, "passengers required")
	}

	results, err := h.Service.Checkin(ctx, flight, passengers)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"flight": flight, "results": results})
}

// MyBookings handles GET /v1/bookings.  Admins pass ?passport=.
func (h *CheckinHandler) MyBookings(c echo.Context) error {
	passport, err := targetPassport(c, c.QueryParam("passport"))
	if err != nil {
		return respondTarget(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	items, err := h.Bookings.ListByPassport(ctx, passport)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if items == nil {
		items = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// BoardingPass handles GET /v1/bookings/:flight/boarding-pass.
func (h *CheckinHandler) BoardingPass(c echo.Context) error {
	passport, err := targetPassport(c, c.QueryParam("passport"))
	if err != nil {
		return respondTarget(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	pass, err := h.Service.BoardingPass(ctx, strings.ToUpper(c.Param("flight")), passport)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, pass)
}

// PayBaggage handles POST /v1/baggage/pay.
func (h *CheckinHandler) PayBaggage(c echo.Context) error {
	var req payReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Amount < 0 {
		return badRequest(c, "amount must not be negative")
	}
	passport, err := targetPassport(c, req.Passport)
	if err != nil {
		return respondTarget(c, err)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	b, err := h.Service.PayBaggage(ctx, strings.ToUpper(strings.TrimSpace(req.Flight)), passport, req.Amount)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":   "paid",
		"flight":   b.Flight,
		"passport": b.Passport,
		"amount":   req.Amount,
		"fee":      b.BaggageFee,
	})
}
