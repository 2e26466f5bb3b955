package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/airport-checkin/internal/handler"
	"github.com/iliyamo/airport-checkin/internal/middleware"
	"github.com/iliyamo/airport-checkin/internal/model"
)

// RegisterPassenger registers seat and check-in endpoints.  Passengers act
// on their own passport; admins may call the same routes naming a
// passport.
func RegisterPassenger(e *echo.Echo, s *handler.SeatHandler, ch *handler.CheckinHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RolePassenger, model.RoleAdmin),
	)
	g.POST("/flights/:id/seats/select", s.Select)
	g.POST("/flights/:id/seats/autoassign", s.AutoAssign)
	g.POST("/flights/:id/seats/hold", s.Hold)
	g.DELETE("/flights/:id/seats/:seat/hold", s.ReleaseHold)
	g.DELETE("/flights/:id/holds", s.ReleaseHolds)

	g.POST("/checkin", ch.Checkin)
	g.GET("/bookings", ch.MyBookings)
	g.GET("/bookings/:flight/boarding-pass", ch.BoardingPass)
	g.POST("/baggage/pay", ch.PayBaggage)
}
