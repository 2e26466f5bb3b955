// Package router wires handlers and middleware onto echo routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/airport-checkin/internal/handler"
	"github.com/iliyamo/airport-checkin/internal/middleware"
	"github.com/iliyamo/airport-checkin/internal/model"
)

// RegisterRoutes registers routes that need no authentication and no
// handler dependencies.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers login, refresh and logout under /v1/auth and the
// authenticated /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/passenger/login", a.PassengerLogin)
	g.POST("/admin/login", a.AdminLogin)
	g.POST("/refresh", a.Refresh)
	// Logout only needs the refresh token in the body.
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RolePassenger, model.RoleAdmin))
}

// RegisterPublic registers the kiosk-facing endpoints.  The flight listing
// goes through the response cache; the seat map never does.
func RegisterPublic(e *echo.Echo, f *handler.FlightHandler, ch *handler.CheckinHandler, cache *middleware.Cache) {
	e.GET("/v1/flights", f.List, cache.Middleware())
	e.GET("/v1/flights/:id/seats", f.SeatMap)
	e.POST("/v1/register", ch.Register)
}
