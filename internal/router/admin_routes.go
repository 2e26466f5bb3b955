package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/airport-checkin/internal/handler"
	"github.com/iliyamo/airport-checkin/internal/middleware"
	"github.com/iliyamo/airport-checkin/internal/model"
)

// RegisterAdmin registers the operator endpoints under /v1/admin.  Every
// route requires the ADMIN role.
func RegisterAdmin(e *echo.Echo, f *handler.FlightHandler, s *handler.SeatHandler, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/flights", f.Create)
	g.PUT("/flights/:id", f.Update)
	g.DELETE("/flights/:id", f.Delete)
	g.GET("/flights/:id/passengers", f.Passengers)
	g.GET("/flights/:id/audit", f.AuditTrail)
	g.POST("/flights/:id/seat-block", f.BlockSeat)
	g.POST("/flights/:id/checkin-toggle", f.ToggleCheckin)
	g.GET("/flights/:id/boarding", a.Boarding)
	g.POST("/flights/:id/boarding", a.BoardingAction)

	g.POST("/passengers/:passport/seat", s.AdminAssign)
	g.DELETE("/passengers/:passport", a.DeletePassenger)

	g.GET("/stats", a.Stats)
	g.GET("/users", a.ListUsers)
	g.POST("/users", a.CreateUser)
	g.DELETE("/users/:username", a.DeleteUser)
}
