package seating

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/airport-checkin/internal/clock"
	"github.com/iliyamo/airport-checkin/internal/logger"
	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/testutil"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	bookings *testutil.BookingRepo
	flights  *testutil.FlightRepo
	audit    *testutil.AuditRecorder
	clock    *clock.Manual
}

func newFixture(t *testing.T, flight model.Flight, bookings ...model.Booking) fixture {
	t.Helper()
	fx := fixture{
		bookings: testutil.NewBookingRepo(bookings...),
		flights:  testutil.NewFlightRepo(flight),
		audit:    &testutil.AuditRecorder{},
		clock:    clock.NewManual(testNow),
	}
	fx.svc = NewService(fx.flights, fx.bookings, NewMemoryHoldStore(),
		WithClock(fx.clock),
		WithAudit(fx.audit),
		WithLogger(logger.Discard()),
		WithMaxHoldTTL(30*time.Minute),
	)
	return fx
}

func booking(flight, passport string, seat *string) model.Booking {
	return model.Booking{Flight: flight, Passport: passport, Name: "Passenger " + passport, Seat: seat}
}

func TestAutoAssign_Deterministic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pref Preference
		want string
	}{
		{PreferWindow, "1A"},
		{PreferAisle, "1C"},
		{PreferMiddle, "1B"},
		{PreferAny, "1A"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.pref.String(), func(t *testing.T) {
			t.Parallel()
			fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)}, booking("LH1", "P1", nil))
			a, err := fx.svc.AutoAssign(context.Background(), "LH1", "P1", tt.pref)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if a.Seat != tt.want || !a.Changed {
				t.Fatalf("expected %s (changed), got %+v", tt.want, a)
			}
		})
	}
}

func TestAutoAssign_PreferenceFallback(t *testing.T) {
	t.Parallel()

	fx := newFixture(t,
		model.Flight{Number: "LH1", Capacity: intPtr(12), BlockedSeats: []string{"1C"}},
		booking("LH1", "P0", testutil.Seat("1A")),
		booking("LH1", "P1", nil),
	)
	a, err := fx.svc.AutoAssign(context.Background(), "LH1", "P1", PreferWindow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a.Seat != "1F" {
		t.Fatalf("expected 1F, got %s", a.Seat)
	}
}

func TestAutoAssign_Exhaustion(t *testing.T) {
	t.Parallel()

	fx := newFixture(t,
		model.Flight{Number: "LH1", Capacity: intPtr(2)},
		booking("LH1", "P1", testutil.Seat("1A")),
		booking("LH1", "P2", testutil.Seat("1B")),
		booking("LH1", "P3", nil),
	)
	_, err := fx.svc.AutoAssign(context.Background(), "LH1", "P3", PreferAny)
	if !errors.Is(err, ErrNoSeatAvailable) {
		t.Fatalf("expected ErrNoSeatAvailable, got %v", err)
	}
}

func TestAutoAssign_NumericWithoutCapacity(t *testing.T) {
	t.Parallel()

	fx := newFixture(t,
		model.Flight{Number: "XY9", BlockedSeats: []string{"3"}},
		booking("XY9", "P1", testutil.Seat("1")),
		booking("XY9", "P2", testutil.Seat("2")),
		booking("XY9", "P3", nil),
		booking("XY9", "P4", nil),
	)
	ctx := context.Background()
	if _, err := fx.svc.HoldSeat(ctx, "XY9", "P4", "4", time.Minute); err != nil {
		t.Fatalf("hold: %v", err)
	}
	a, err := fx.svc.AutoAssign(ctx, "XY9", "P3", PreferWindow)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a.Seat != "5" {
		t.Fatalf("expected 5, got %s", a.Seat)
	}
}

func TestSelectSeat_Errors(t *testing.T) {
	t.Parallel()

	flight := model.Flight{Number: "LH1", Capacity: intPtr(6), BlockedSeats: []string{"1B"}}
	tests := []struct {
		name     string
		flight   string
		passport string
		seat     string
		want     error
	}{
		{name: "blocked", flight: "LH1", passport: "P1", seat: "1B", want: ErrSeatBlocked},
		{name: "taken", flight: "LH1", passport: "P1", seat: "1A", want: ErrSeatTaken},
		{name: "unknown flight", flight: "ZZ0", passport: "P1", seat: "1A", want: ErrFlightNotFound},
		{name: "malformed label", flight: "LH1", passport: "P1", seat: "A1", want: ErrInvalidInput},
		{name: "off the map", flight: "LH1", passport: "P1", seat: "9A", want: ErrInvalidInput},
		{name: "missing passport", flight: "LH1", passport: " ", seat: "1C", want: ErrInvalidInput},
		{name: "no booking", flight: "LH1", passport: "NOPE", seat: "1C", want: ErrBookingNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fx := newFixture(t, flight, booking("LH1", "P0", testutil.Seat("1A")), booking("LH1", "P1", nil))
			_, err := fx.svc.SelectSeat(context.Background(), tt.flight, tt.passport, tt.seat)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var se *Error
			if !errors.As(err, &se) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if fx.bookings.Commits != 0 {
				t.Fatalf("expected no commit, got %d", fx.bookings.Commits)
			}
		})
	}
}

func TestSelectSeat_Idempotent(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)}, booking("LH1", "P1", testutil.Seat("2A")))
	a, err := fx.svc.SelectSeat(context.Background(), "LH1", "P1", "2a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a.Changed || a.Seat != "2A" {
		t.Fatalf("expected unchanged 2A, got %+v", a)
	}
	if fx.bookings.Commits != 0 {
		t.Fatalf("expected no write, got %d commits", fx.bookings.Commits)
	}
	if n := len(fx.audit.Events()); n != 0 {
		t.Fatalf("expected no audit event, got %d", n)
	}
}

func TestSelectSeat_MovesPassenger(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)}, booking("LH1", "P1", testutil.Seat("1A")))
	ctx := WithActor(context.Background(), "P1")
	a, err := fx.svc.SelectSeat(ctx, "LH1", "P1", "1D")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !a.Changed || a.Seat != "1D" {
		t.Fatalf("expected 1D, got %+v", a)
	}
	b, _ := fx.bookings.Get(ctx, "LH1", "P1")
	if b.SeatLabel() != "1D" {
		t.Fatalf("expected booking seat 1D, got %q", b.SeatLabel())
	}
	events := fx.audit.Events()
	if len(events) != 1 || events[0].Type != model.EventSeatSelected || events[0].Actor != "P1" || events[0].Attrs["seat"] != "1D" {
		t.Fatalf("unexpected audit events %+v", events)
	}
}

func TestCommit_CapacityGuard(t *testing.T) {
	t.Parallel()

	// Legacy numeric seats fill the capacity while every label on the
	// generated map is still free.
	flight := model.Flight{Number: "LH1", Capacity: intPtr(2), BlockedSeats: []string{"1B"}}
	seed := []model.Booking{
		booking("LH1", "P1", testutil.Seat("5")),
		booking("LH1", "P2", testutil.Seat("6")),
		booking("LH1", "P3", nil),
	}
	ctx := context.Background()

	fx := newFixture(t, flight, seed...)
	if _, err := fx.svc.SelectSeat(ctx, "LH1", "P3", "1A"); !errors.Is(err, ErrFlightFull) {
		t.Fatalf("available label: expected ErrFlightFull, got %v", err)
	}
	if _, err := fx.svc.SelectSeat(ctx, "LH1", "P3", "1B"); !errors.Is(err, ErrFlightFull) {
		t.Fatalf("blocked label: expected ErrFlightFull, got %v", err)
	}
	if _, err := fx.svc.AutoAssign(ctx, "LH1", "P3", PreferAny); !errors.Is(err, ErrFlightFull) {
		t.Fatalf("autoassign: expected ErrFlightFull, got %v", err)
	}

	// A passenger already seated is not counted against themselves.
	if _, err := fx.svc.SelectSeat(ctx, "LH1", "P1", "1A"); err != nil {
		t.Fatalf("reseat within capacity: %v", err)
	}
}

func TestHold_BlocksOthersNotOwner(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)},
		booking("LH1", "X", nil), booking("LH1", "Y", nil))
	ctx := context.Background()

	h, err := fx.svc.HoldSeat(ctx, "LH1", "X", "1A", 5*time.Minute)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if !h.ExpiresAt.Equal(testNow.Add(5 * time.Minute)) {
		t.Fatalf("expected expiry %v, got %v", testNow.Add(5*time.Minute), h.ExpiresAt)
	}
	if _, err := fx.svc.HoldSeat(ctx, "LH1", "Y", "1A", time.Minute); !errors.Is(err, ErrSeatHeld) {
		t.Fatalf("competing hold: expected ErrSeatHeld, got %v", err)
	}
	if _, err := fx.svc.SelectSeat(ctx, "LH1", "Y", "1A"); !errors.Is(err, ErrSeatHeld) {
		t.Fatalf("competing commit: expected ErrSeatHeld, got %v", err)
	}
	a, err := fx.svc.AutoAssign(ctx, "LH1", "Y", PreferWindow)
	if err != nil || a.Seat != "1F" {
		t.Fatalf("expected Y autoassigned 1F around the hold, got %+v, %v", a, err)
	}
	if _, err := fx.svc.SelectSeat(ctx, "LH1", "X", "1A"); err != nil {
		t.Fatalf("owner commit: %v", err)
	}

	m, err := fx.svc.SeatMap(ctx, "LH1")
	if err != nil {
		t.Fatalf("seat map: %v", err)
	}
	if m.Seats[0].Status != StatusTaken || m.Seats[0].HeldBy != "" {
		t.Fatalf("expected 1A taken with the hold cleared, got %+v", m.Seats[0])
	}
}

func TestHold_ExpiryAndZeroTTL(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)},
		booking("LH1", "X", nil), booking("LH1", "Y", nil))
	ctx := context.Background()

	if _, err := fx.svc.HoldSeat(ctx, "LH1", "X", "1A", 0); err != nil {
		t.Fatalf("zero ttl hold: %v", err)
	}
	m, _ := fx.svc.SeatMap(ctx, "LH1")
	if m.Seats[0].Status != StatusAvailable {
		t.Fatalf("expected zero ttl hold to read as absent, got %s", m.Seats[0].Status)
	}

	if _, err := fx.svc.HoldSeat(ctx, "LH1", "X", "1B", time.Minute); err != nil {
		t.Fatalf("hold: %v", err)
	}
	m, _ = fx.svc.SeatMap(ctx, "LH1")
	if m.Seats[1].Status != StatusHeld || m.Seats[1].HeldBy != "X" {
		t.Fatalf("expected 1B held by X, got %+v", m.Seats[1])
	}
	fx.clock.Advance(time.Minute + time.Second)
	if _, err := fx.svc.SelectSeat(ctx, "LH1", "Y", "1B"); err != nil {
		t.Fatalf("expected lapsed hold to be ignored, got %v", err)
	}
}

func TestHoldSeat_TTLBounds(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)})
	ctx := context.Background()

	if _, err := fx.svc.HoldSeat(ctx, "LH1", "X", "1A", -time.Second); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	h, err := fx.svc.HoldSeat(ctx, "LH1", "X", "1A", 24*time.Hour)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if !h.ExpiresAt.Equal(testNow.Add(30 * time.Minute)) {
		t.Fatalf("expected ttl capped at 30m, got expiry %v", h.ExpiresAt)
	}
	if _, err := fx.svc.HoldSeat(ctx, "LH1", "X", "1Z", time.Minute); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("off-map hold: expected ErrInvalidInput, got %v", err)
	}
}

func TestReleaseHolds(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)})
	ctx := context.Background()

	for _, seat := range []string{"1A", "1B"} {
		if _, err := fx.svc.HoldSeat(ctx, "LH1", "X", seat, time.Minute); err != nil {
			t.Fatalf("hold %s: %v", seat, err)
		}
	}
	if err := fx.svc.ReleaseHold(ctx, "LH1", "X", "1A"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := fx.svc.ReleaseHold(ctx, "LH1", "X", "1A"); err != nil {
		t.Fatalf("second release must be a no-op, got %v", err)
	}
	seats, err := fx.svc.ReleaseHolds(ctx, "LH1", "X")
	if err != nil {
		t.Fatalf("release all: %v", err)
	}
	if len(seats) != 1 || seats[0] != "1B" {
		t.Fatalf("expected [1B], got %v", seats)
	}
	m, _ := fx.svc.SeatMap(ctx, "LH1")
	for _, s := range m.Seats {
		if s.Status != StatusAvailable {
			t.Fatalf("expected every seat available, %s is %s", s.Seat, s.Status)
		}
	}
}

func TestReleaseHold_AuditsOnlyRemovedHolds(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)})
	ctx := context.Background()

	if err := fx.svc.ReleaseHold(ctx, "LH1", "X", "1C"); err != nil {
		t.Fatalf("release without hold: %v", err)
	}
	if n := len(fx.audit.Events()); n != 0 {
		t.Fatalf("expected no audit event for an absent hold, got %d", n)
	}

	if _, err := fx.svc.HoldSeat(ctx, "LH1", "X", "1C", time.Minute); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if err := fx.svc.ReleaseHold(ctx, "LH1", "X", "1C"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := fx.svc.ReleaseHold(ctx, "LH1", "X", "1C"); err != nil {
		t.Fatalf("second release: %v", err)
	}
	var released int
	for _, e := range fx.audit.Events() {
		if e.Type == model.EventSeatHoldReleased {
			released++
		}
	}
	if released != 1 {
		t.Fatalf("expected exactly one %s event, got %d", model.EventSeatHoldReleased, released)
	}
}

func TestHoldSeat_OwnCommittedSeatOffMap(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)}, booking("LH1", "P1", testutil.Seat("2A")))
	ctx := context.Background()

	if _, err := fx.svc.HoldSeat(ctx, "LH1", "P1", "2A", time.Minute); err != nil {
		t.Fatalf("expected holding own seat to succeed, got %v", err)
	}
	if _, err := fx.svc.HoldSeat(ctx, "LH1", "P2", "2A", time.Minute); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for another passenger, got %v", err)
	}
}

func TestSetSeatBlocked(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)}, booking("LH1", "P1", nil))
	ctx := context.Background()

	if err := fx.svc.SetSeatBlocked(ctx, "LH1", "1a", true); err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := fx.svc.SelectSeat(ctx, "LH1", "P1", "1A"); !errors.Is(err, ErrSeatBlocked) {
		t.Fatalf("expected ErrSeatBlocked, got %v", err)
	}
	if err := fx.svc.SetSeatBlocked(ctx, "LH1", "1A", false); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if _, err := fx.svc.SelectSeat(ctx, "LH1", "P1", "1A"); err != nil {
		t.Fatalf("expected unblocked seat to be selectable, got %v", err)
	}
	if err := fx.svc.SetSeatBlocked(ctx, "NOPE", "1A", true); !errors.Is(err, ErrFlightNotFound) {
		t.Fatalf("expected ErrFlightNotFound, got %v", err)
	}
}

func TestConcurrentSelect_NoDoubleBooking(t *testing.T) {
	t.Parallel()

	const n = 25
	var seed []model.Booking
	for i := 0; i < n; i++ {
		seed = append(seed, booking("LH1", fmt.Sprintf("P%02d", i), nil))
	}
	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(60)}, seed...)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(passport string) {
			defer wg.Done()
			_, err := fx.svc.SelectSeat(context.Background(), "LH1", passport, "3C")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, passport)
			case errors.Is(err, ErrSeatTaken), errors.Is(err, ErrSeatHeld):
			default:
				t.Errorf("unexpected error %v", err)
			}
		}(fmt.Sprintf("P%02d", i))
	}
	wg.Wait()
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %v", winners)
	}
}

func TestConcurrentAutoAssign_DistinctSeats(t *testing.T) {
	t.Parallel()

	const n = 20
	var seed []model.Booking
	for i := 0; i < n; i++ {
		seed = append(seed, booking("LH1", fmt.Sprintf("P%02d", i), nil))
	}
	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)}, seed...)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		got  = map[string]string{}
		fail int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(passport string) {
			defer wg.Done()
			a, err := fx.svc.AutoAssign(context.Background(), "LH1", passport, PreferWindow)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, ErrNoSeatAvailable) {
					t.Errorf("unexpected error %v", err)
				}
				fail++
				return
			}
			if other, dup := got[a.Seat]; dup {
				t.Errorf("seat %s given to %s and %s", a.Seat, other, passport)
			}
			got[a.Seat] = passport
		}(fmt.Sprintf("P%02d", i))
	}
	wg.Wait()
	if len(got) != 6 || fail != n-6 {
		t.Fatalf("expected 6 seated and %d refused, got %d seated and %d refused", n-6, len(got), fail)
	}
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (func(), error) { return nil, ErrLockTimeout }

func TestLockTimeoutReportsSeatHeld(t *testing.T) {
	t.Parallel()

	svc := NewService(testutil.NewFlightRepo(model.Flight{Number: "LH1", Capacity: intPtr(6)}),
		testutil.NewBookingRepo(booking("LH1", "P1", nil)), NewMemoryHoldStore(),
		WithLocker(busyLocker{}), WithLogger(logger.Discard()))
	_, err := svc.SelectSeat(context.Background(), "LH1", "P1", "1A")
	if !errors.Is(err, ErrSeatHeld) {
		t.Fatalf("expected ErrSeatHeld, got %v", err)
	}
	if KindOf(err) != KindSeatHeld {
		t.Fatalf("expected kind %s, got %s", KindSeatHeld, KindOf(err))
	}
}
