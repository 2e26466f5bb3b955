// Package handler exposes the HTTP handlers of the check-in API.  Handlers
// bind and validate requests, translate identities into passports and
// delegate to the seat assignment service, the check-in service or the
// repositories.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/clock"
	"github.com/iliyamo/airport-checkin/internal/middleware"
	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/seating"
	"github.com/iliyamo/airport-checkin/internal/service"
)

const requestTimeout = 5 * time.Second

// FlightStore is the flight persistence used by the admin handlers.
type FlightStore interface {
	Get(ctx context.Context, number string) (model.Flight, error)
	List(ctx context.Context) ([]model.Flight, error)
	Create(ctx context.Context, f *model.Flight) error
	Update(ctx context.Context, number string, f *model.Flight) error
	Delete(ctx context.Context, number string) error
	SetCheckinEnabled(ctx context.Context, number string, enabled bool) error
	SetBoardingStarted(ctx context.Context, number string, started bool) error
}

// BookingReader lists and mutates bookings outside the seat core.
type BookingReader interface {
	Get(ctx context.Context, flight, passport string) (model.Booking, error)
	ListByFlight(ctx context.Context, flight string) ([]model.Booking, error)
	ListByPassport(ctx context.Context, passport string) ([]model.Booking, error)
	MarkBoarded(ctx context.Context, flight, passport string, at time.Time) error
	Delete(ctx context.Context, flight, passport string) error
}

// AdminStore manages operator accounts.
type AdminStore interface {
	Create(ctx context.Context, username, password string, cost int) (model.AdminUser, error)
	GetByUsername(ctx context.Context, username string) (model.AdminUser, error)
	List(ctx context.Context) ([]model.AdminUser, error)
	Delete(ctx context.Context, username string) error
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, subject, role, hash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, hash string) (string, string, error)
	RevokeByHash(ctx context.Context, hash string) error
	RevokeAllFor(ctx context.Context, subject, role string) error
}

// AuditReader returns recent audit events.
type AuditReader interface {
	Recent(ctx context.Context, flight string, limit int) ([]model.AuditEvent, error)
}

// CacheInvalidator drops cached public responses after a flight changes.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// requestContext bounds the request and tags it with the caller for audit
// events.
func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	if sub := middleware.Subject(c); sub != "" {
		ctx = seating.WithActor(ctx, sub)
	}
	return ctx, cancel
}

// now reads clk, falling back to the system clock when none is wired.
func now(clk clock.Clock) time.Time {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return clk.Now().UTC()
}

func recordEvent(ctx context.Context, audit seating.AuditLogger, clk clock.Clock, typ, flight, passport string, attrs map[string]string) {
	if audit == nil {
		return
	}
	audit.Record(ctx, model.AuditEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		Flight:     flight,
		Passport:   passport,
		Actor:      seating.ActorFrom(ctx),
		Attrs:      attrs,
		OccurredAt: now(clk),
	})
}

var (
	errPassportRequired = errors.New("passport is required for admin requests")
	errForbidden        = errors.New("passengers may only act on their own passport")
)

// targetPassport resolves whose seat a request acts on.  Passengers act on
// themselves; a passport in the request must match.  Admins must name the
// passport explicitly.
func targetPassport(c echo.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if middleware.IsAdmin(c) {
		if requested == "" {
			return "", errPassportRequired
		}
		return requested, nil
	}
	sub := middleware.Subject(c)
	if requested != "" && requested != sub {
		return "", errForbidden
	}
	return sub, nil
}

func respondTarget(c echo.Context, err error) error {
	if errors.Is(err, errForbidden) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error(), "code": "forbidden"})
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "code": "invalid_input"})
}

// respondError maps domain errors onto HTTP responses.  Anything it does
// not recognise is logged and reported as a 500 without detail.
func respondError(c echo.Context, log logrus.FieldLogger, err error) error {
	var se *seating.Error
	if errors.As(err, &se) {
		body := echo.Map{"error": se.Error(), "code": string(se.Kind)}
		if se.Flight != "" {
			body["flight"] = se.Flight
		}
		if se.Seat != "" {
			body["seat"] = se.Seat
		}
		return c.JSON(seatingStatus(se.Kind), body)
	}

	var ia *service.InsufficientAmountError
	switch {
	case errors.As(err, &ia):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "insufficient_amount", "code": "insufficient_amount", "required": ia.Required})
	case errors.Is(err, service.ErrCheckinClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "checkin_closed"})
	case errors.Is(err, service.ErrNotCheckedIn):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "not_checked_in"})
	case errors.Is(err, model.ErrFlightNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error(), "code": "flight_not_found"})
	case errors.Is(err, model.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error(), "code": "booking_not_found"})
	case errors.Is(err, model.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error(), "code": "user_not_found"})
	case errors.Is(err, model.ErrFlightExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "flight_exists"})
	case errors.Is(err, model.ErrBookingExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "booking_exists"})
	case errors.Is(err, model.ErrUserExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "user_exists"})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request timed out", "code": "timeout"})
	}
	log.WithError(err).WithFields(logrus.Fields{"method": c.Request().Method, "path": c.Path()}).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal"})
}

func seatingStatus(k seating.Kind) int {
	switch k {
	case seating.KindInvalidInput:
		return http.StatusBadRequest
	case seating.KindFlightNotFound, seating.KindBookingNotFound:
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "invalid_input"})
}
