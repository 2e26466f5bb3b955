package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/airport-checkin/internal/model"
)

// Subject returns the authenticated passport or admin username, or "" for
// anonymous requests.
func Subject(c echo.Context) string {
	s, _ := c.Get(ctxSubject).(string)
	return s
}

// Role returns the authenticated role, or "".
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// IsAdmin reports whether the request carries an admin token.
func IsAdmin(c echo.Context) bool { return Role(c) == model.RoleAdmin }

// SetIdentity stores an identity in the context the way JWTAuth does.
// Handler tests use it to skip token signing.
func SetIdentity(c echo.Context, subject, role string) {
	c.Set(ctxSubject, subject)
	c.Set(ctxRole, role)
}

func subjectOrAnon(c echo.Context) string {
	if s := Subject(c); s != "" {
		return s
	}
	return "anon"
}
