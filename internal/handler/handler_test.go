package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/airport-checkin/internal/clock"
	"github.com/iliyamo/airport-checkin/internal/logger"
	"github.com/iliyamo/airport-checkin/internal/middleware"
	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/seating"
	"github.com/iliyamo/airport-checkin/internal/service"
	"github.com/iliyamo/airport-checkin/internal/testutil"
)

func newContext(subject, role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if subject != "" {
		middleware.SetIdentity(c, subject, role)
	}
	return c, rec
}

func TestRespondError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"seat taken", &seating.Error{Kind: seating.KindSeatTaken, Flight: "LH1", Seat: "1A"}, http.StatusConflict, "seat_taken"},
		{"seat held", &seating.Error{Kind: seating.KindSeatHeld, Flight: "LH1"}, http.StatusConflict, "seat_held"},
		{"blocked", &seating.Error{Kind: seating.KindSeatBlocked}, http.StatusConflict, "seat_blocked"},
		{"full", &seating.Error{Kind: seating.KindFlightFull}, http.StatusConflict, "flight_full"},
		{"no seat", &seating.Error{Kind: seating.KindNoSeatAvailable}, http.StatusConflict, "no_seat_available"},
		{"invalid", &seating.Error{Kind: seating.KindInvalidInput, Detail: "bad"}, http.StatusBadRequest, "invalid_input"},
		{"flight missing", &seating.Error{Kind: seating.KindFlightNotFound}, http.StatusNotFound, "flight_not_found"},
		{"wrapped booking missing", fmt.Errorf("load: %w", &seating.Error{Kind: seating.KindBookingNotFound}), http.StatusNotFound, "booking_not_found"},
		{"insufficient", &service.InsufficientAmountError{Required: 100, Paid: 20}, http.StatusBadRequest, "insufficient_amount"},
		{"closed", service.ErrCheckinClosed, http.StatusConflict, "checkin_closed"},
		{"not checked in", service.ErrNotCheckedIn, http.StatusConflict, "not_checked_in"},
		{"repo flight", fmt.Errorf("get: %w", model.ErrFlightNotFound), http.StatusNotFound, "flight_not_found"},
		{"repo user", model.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
		{"flight exists", model.ErrFlightExists, http.StatusConflict, "flight_exists"},
		{"booking exists", model.ErrBookingExists, http.StatusConflict, "booking_exists"},
		{"user exists", model.ErrUserExists, http.StatusConflict, "user_exists"},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, "timeout"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, rec := newContext("", "")
			if err := respondError(c, logger.Discard(), tc.err); err != nil {
				t.Fatalf("respondError: %v", err)
			}
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["code"] != tc.code {
				t.Fatalf("expected code %q, got %v", tc.code, body)
			}
		})
	}
}

func TestRespondErrorDetail(t *testing.T) {
	t.Parallel()
	c, rec := newContext("", "")
	_ = respondError(c, logger.Discard(), &service.InsufficientAmountError{Required: 100, Paid: 20})

	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["required"] != float64(100) {
		t.Fatalf("expected required amount, got %v", body)
	}

	c, rec = newContext("", "")
	_ = respondError(c, logger.Discard(), &seating.Error{Kind: seating.KindSeatTaken, Flight: "LH1", Seat: "1A"})
	body = nil
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["flight"] != "LH1" || body["seat"] != "1A" {
		t.Fatalf("expected flight and seat in body, got %v", body)
	}
}

func TestTargetPassport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		subject   string
		role      string
		requested string
		want      string
		err       error
	}{
		{"passenger implicit", "P1", model.RolePassenger, "", "P1", nil},
		{"passenger explicit self", "P1", model.RolePassenger, " P1 ", "P1", nil},
		{"passenger other", "P1", model.RolePassenger, "P2", "", errForbidden},
		{"admin named", "ops", model.RoleAdmin, "P2", "P2", nil},
		{"admin unnamed", "ops", model.RoleAdmin, "", "", errPassportRequired},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, _ := newContext(tc.subject, tc.role)
			got, err := targetPassport(c, tc.requested)
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected error %v, got %v", tc.err, err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRespondTarget(t *testing.T) {
	t.Parallel()
	c, rec := newContext("P1", model.RolePassenger)
	_ = respondTarget(c, errForbidden)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	c, rec = newContext("ops", model.RoleAdmin)
	_ = respondTarget(c, errPassportRequired)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestFlexString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`"12C"`, "12C", true},
		{`7`, "7", true},
		{`null`, "", true},
		{`""`, "", true},
		{`true`, "", false},
		{`{"a":1}`, "", false},
	}
	for _, tc := range tests {
		var got struct {
			Seat flexString `json:"seat"`
		}
		err := json.Unmarshal([]byte(`{"seat":`+tc.in+`}`), &got)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: unexpected error %v", tc.in, err)
		}
		if tc.ok && string(got.Seat) != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.in, tc.want, got.Seat)
		}
	}
}

func TestNormalizeColumns(t *testing.T) {
	t.Parallel()

	if got, ok := normalizeColumns([]string{" a", "B", "c "}); !ok || fmt.Sprint(got) != "[A B C]" {
		t.Fatalf("unexpected columns %v %v", got, ok)
	}
	for _, bad := range [][]string{{}, {"A", "a"}, {"AB"}, {"1"}, {"A", "B", "C", "D", "E", "F", "G", "H", "J", "K", "L"}} {
		if _, ok := normalizeColumns(bad); ok {
			t.Fatalf("expected %v to be rejected", bad)
		}
	}
}

func TestFlightReqApply(t *testing.T) {
	t.Parallel()

	zero := 0
	f := model.Flight{Number: "LH1", Capacity: func() *int { n := 6; return &n }()}
	req := flightReq{Flight: " lh2 ", Capacity: &zero, BlockedSeats: []string{"1a", " 2c"}}
	if msg := req.apply(&f); msg != "" {
		t.Fatalf("unexpected error %q", msg)
	}
	if f.Number != "LH2" || f.Capacity != nil || fmt.Sprint(f.BlockedSeats) != "[1A 2C]" {
		t.Fatalf("unexpected flight %+v", f)
	}
	if msg := (flightReq{BlockedSeats: []string{"A1"}}).apply(&f); msg == "" {
		t.Fatalf("expected malformed blocked seat to be rejected")
	}
}

func TestHoldTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		secs  int
		limit time.Duration
		want  time.Duration
	}{
		{secs: 120, limit: 30 * time.Minute, want: 2 * time.Minute},
		{secs: 0, limit: 30 * time.Minute, want: 0},
		{secs: 1_000_000_000_000, limit: 30 * time.Minute, want: 30 * time.Minute},
		{secs: math.MaxInt, limit: 30 * time.Minute, want: 30 * time.Minute},
		{secs: math.MaxInt, limit: 0, want: time.Duration(math.MaxInt64)},
		{secs: -5, limit: 30 * time.Minute, want: -time.Second},
		{secs: math.MinInt, limit: 30 * time.Minute, want: -time.Second},
	}
	for _, tt := range tests {
		if got := holdTTL(tt.secs, tt.limit); got != tt.want {
			t.Errorf("holdTTL(%d, %s) = %s, want %s", tt.secs, tt.limit, got, tt.want)
		}
	}
}

func TestRecordEventUsesClock(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	rec := &testutil.AuditRecorder{}
	ctx := seating.WithActor(context.Background(), "ops")
	recordEvent(ctx, rec, clock.NewFixed(at), model.EventFlightCreated, "LH1", "", nil)

	events := rec.Events()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	ev := events[0]
	if !ev.OccurredAt.Equal(at) || ev.OccurredAt.Location() != time.UTC {
		t.Fatalf("expected %s in UTC, got %s", at, ev.OccurredAt)
	}
	if ev.Actor != "ops" || ev.ID == "" {
		t.Fatalf("unexpected event %+v", ev)
	}
}
