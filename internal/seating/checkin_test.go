package seating

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/testutil"
)

func TestResolveCheckinSeat(t *testing.T) {
	t.Parallel()

	managed := model.Flight{Number: "LH1", Capacity: intPtr(6), BlockedSeats: []string{"1B"}}
	legacy := model.Flight{Number: "XY9", BlockedSeats: []string{"8"}}

	tests := []struct {
		name   string
		flight model.Flight
		seed   []model.Booking
		input  string
		want   string
	}{
		{
			name:   "preference keyword autoassigns",
			flight: managed,
			seed:   []model.Booking{booking("LH1", "P1", nil)},
			input:  "aisle",
			want:   "1C",
		},
		{
			name:   "free concrete label",
			flight: managed,
			seed:   []model.Booking{booking("LH1", "P1", nil)},
			input:  "1e",
			want:   "1E",
		},
		{
			name:   "taken label falls back to first open seat",
			flight: managed,
			seed:   []model.Booking{booking("LH1", "P0", testutil.Seat("1A")), booking("LH1", "P1", nil)},
			input:  "1A",
			want:   "1C",
		},
		{
			name:   "blocked label falls back",
			flight: managed,
			seed:   []model.Booking{booking("LH1", "P1", nil)},
			input:  "1B",
			want:   "1A",
		},
		{
			name:   "empty input keeps existing seat",
			flight: managed,
			seed:   []model.Booking{booking("LH1", "P1", testutil.Seat("1D"))},
			input:  "",
			want:   "1D",
		},
		{
			name:   "next numeral after the highest numeric seat",
			flight: legacy,
			seed: []model.Booking{
				booking("XY9", "P0", testutil.Seat("3")),
				booking("XY9", "P2", testutil.Seat("7")),
				booking("XY9", "P1", nil),
			},
			input: "",
			want:  "9",
		},
		{
			name:   "numeric seats win over the seat map",
			flight: model.Flight{Number: "LH1", Capacity: intPtr(6)},
			seed:   []model.Booking{booking("LH1", "P0", testutil.Seat("2")), booking("LH1", "P1", nil)},
			input:  "",
			want:   "3",
		},
		{
			name:   "literal one when nothing else is known",
			flight: legacy,
			seed:   []model.Booking{booking("XY9", "P1", nil)},
			input:  "",
			want:   "1",
		},
		{
			name:   "unmanaged flight accepts any label",
			flight: legacy,
			seed:   []model.Booking{booking("XY9", "P1", nil)},
			input:  "14C",
			want:   "14C",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fx := newFixture(t, tt.flight, tt.seed...)
			a, err := fx.svc.ResolveCheckinSeat(context.Background(), tt.flight.Number, "P1", tt.input)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if a.Seat != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, a.Seat)
			}
			b, _ := fx.bookings.Get(context.Background(), tt.flight.Number, "P1")
			if b.SeatLabel() != tt.want {
				t.Fatalf("expected booking seat %s, got %q", tt.want, b.SeatLabel())
			}
		})
	}
}

func TestResolveCheckinSeat_HeldLabelFallsBack(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(6)},
		booking("LH1", "P1", nil), booking("LH1", "P2", nil))
	ctx := context.Background()
	if _, err := fx.svc.HoldSeat(ctx, "LH1", "P2", "1A", time.Minute); err != nil {
		t.Fatalf("hold: %v", err)
	}
	a, err := fx.svc.ResolveCheckinSeat(ctx, "LH1", "P1", "1A")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a.Seat != "1B" {
		t.Fatalf("expected 1B, got %s", a.Seat)
	}
}

func TestResolveCheckinSeat_Full(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, model.Flight{Number: "LH1", Capacity: intPtr(1)},
		booking("LH1", "P0", testutil.Seat("1A")), booking("LH1", "P1", nil))
	_, err := fx.svc.ResolveCheckinSeat(context.Background(), "LH1", "P1", "")
	if !errors.Is(err, ErrNoSeatAvailable) {
		t.Fatalf("expected ErrNoSeatAvailable, got %v", err)
	}
}
