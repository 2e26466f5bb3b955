package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/clock"
	"github.com/iliyamo/airport-checkin/internal/config"
	"github.com/iliyamo/airport-checkin/internal/middleware"
	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/seating"
	"github.com/iliyamo/airport-checkin/internal/utils"
)

// AuthHandler issues and rotates tokens for passengers and admins.
type AuthHandler struct {
	Cfg      config.Config
	Admins   AdminStore
	Tokens   TokenStore
	Bookings BookingReader
	Audit    seating.AuditLogger
	Clock    clock.Clock
	Log      logrus.FieldLogger
}

func NewAuthHandler(cfg config.Config, admins AdminStore, tokens TokenStore, bookings BookingReader, audit seating.AuditLogger, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Admins: admins, Tokens: tokens, Bookings: bookings, Audit: audit, Log: log}
}

// ----- DTOs -----

type passengerLoginReq struct {
	Passport string `json:"passport"`
	Name     string `json:"name"`
}
type adminLoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type identityPart struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
}
type authResp struct {
	User    identityPart `json:"user"`
	Access  tokenPart    `json:"access"`
	Refresh tokenPart    `json:"refresh"`
}

// issue creates an access/refresh pair and stores the refresh hash.
func (h *AuthHandler) issue(c echo.Context, subject, role string, status int) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, subject, role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Tokens.StoreRefresh(ctx, subject, role, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		h.Log.WithError(err).Error("store refresh token")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}
	return c.JSON(status, authResp{
		User:    identityPart{Subject: subject, Role: role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// PassengerLogin authenticates a passenger by passport and name.  The
// passport must have at least one booking under that name.
func (h *AuthHandler) PassengerLogin(c echo.Context) error {
	var req passengerLoginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Passport = strings.TrimSpace(req.Passport)
	req.Name = strings.TrimSpace(req.Name)
	if req.Passport == "" || req.Name == "" {
		return badRequest(c, "passport/name required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	bookings, err := h.Bookings.ListByPassport(ctx, req.Passport)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	matched := false
	for _, b := range bookings {
		if strings.EqualFold(strings.TrimSpace(b.Name), req.Name) {
			matched = true
			break
		}
	}
	if !matched {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	recordEvent(seating.WithActor(ctx, req.Passport), h.Audit, h.Clock, model.EventLogin, "", req.Passport, nil)
	return h.issue(c, req.Passport, model.RolePassenger, http.StatusOK)
}

// AdminLogin authenticates an operator with username and password.
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	var req adminLoginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username/password required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	u, err := h.Admins.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return respondError(c, h.Log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	recordEvent(seating.WithActor(ctx, u.Username), h.Audit, h.Clock, model.EventAdminLogin, "", "", nil)
	return h.issue(c, u.Username, model.RoleAdmin, http.StatusOK)
}

// Refresh validates a refresh token by hash, revokes it and issues a new
// pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := requestContext(c)
	defer cancel()

	subject, role, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	if role == model.RoleAdmin {
		// Deleted admins must not keep a session alive through refresh.
		if _, err := h.Admins.GetByUsername(ctx, subject); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
	}
	return h.issue(c, subject, role, http.StatusOK)
}

// Logout revokes the given refresh token.  It does not require an access
// token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's identity; passengers also get their bookings.
func (h *AuthHandler) Me(c echo.Context) error {
	resp := echo.Map{"subject": middleware.Subject(c), "role": middleware.Role(c)}
	if middleware.IsAdmin(c) {
		return c.JSON(http.StatusOK, resp)
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	bookings, err := h.Bookings.ListByPassport(ctx, middleware.Subject(c))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	resp["bookings"] = bookings
	return c.JSON(http.StatusOK, resp)
}
