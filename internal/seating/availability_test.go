package seating

import (
	"reflect"
	"testing"
	"time"

	"github.com/iliyamo/airport-checkin/internal/model"
)

func intPtr(n int) *int { return &n }

func TestResolve_Precedence(t *testing.T) {
	t.Parallel()

	exp := time.Date(2025, 1, 1, 12, 5, 0, 0, time.UTC)
	states := Resolve(ResolveInput{
		Capacity: intPtr(6),
		Taken:    []model.TakenSeat{{Seat: "1A", Passport: "P1", Name: "Ada"}},
		Blocked:  []string{"1A", "1B", "1C"},
		Holds: []model.SeatHold{
			{Seat: "1A", Passport: "P2", ExpiresAt: exp},
			{Seat: "1B", Passport: "P2", ExpiresAt: exp},
		},
	})

	want := map[string]Status{
		"1A": StatusTaken,
		"1B": StatusHeld,
		"1C": StatusBlocked,
		"1D": StatusAvailable,
		"1E": StatusAvailable,
		"1F": StatusAvailable,
	}
	if len(states) != 6 {
		t.Fatalf("expected 6 seats, got %d", len(states))
	}
	for _, s := range states {
		if s.Status != want[s.Seat] {
			t.Errorf("seat %s: expected %s, got %s", s.Seat, want[s.Seat], s.Status)
		}
	}
	if p := states[0].Passenger; p == nil || p.Passport != "P1" || p.Name != "Ada" {
		t.Fatalf("expected passenger on 1A, got %+v", p)
	}
	if states[1].HeldBy != "P2" || states[1].HeldExpires == nil || !states[1].HeldExpires.Equal(exp) {
		t.Fatalf("expected hold metadata on 1B, got %+v", states[1])
	}
}

func TestResolve_RequesterHoldIgnored(t *testing.T) {
	t.Parallel()

	holds := []model.SeatHold{{Seat: "1A", Passport: "ME", ExpiresAt: time.Now().Add(time.Minute)}}
	public := Resolve(ResolveInput{Capacity: intPtr(2), Holds: holds})
	if public[0].Status != StatusHeld {
		t.Fatalf("expected public view to show held, got %s", public[0].Status)
	}
	mine := Resolve(ResolveInput{Capacity: intPtr(2), Holds: holds, Requester: "ME"})
	if mine[0].Status != StatusAvailable {
		t.Fatalf("expected own hold to read as available, got %s", mine[0].Status)
	}
}

func TestResolve_NoCapacity(t *testing.T) {
	t.Parallel()

	states := Resolve(ResolveInput{
		Taken:   []model.TakenSeat{{Seat: "3", Passport: "P1"}, {Seat: "1", Passport: "P2"}},
		Blocked: []string{"2", "3"},
	})
	var got []string
	for _, s := range states {
		got = append(got, s.Seat+":"+string(s.Status))
	}
	want := []string{"3:taken", "1:taken", "2:blocked"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	states := Resolve(ResolveInput{
		Capacity: intPtr(12),
		Taken:    []model.TakenSeat{{Seat: "1A", Passport: "P1"}},
		Blocked:  []string{"1C"},
	})

	if got := Candidates(states, PreferWindow); !reflect.DeepEqual(got, []string{"1F", "2A", "2F"}) {
		t.Fatalf("window: got %v", got)
	}
	if got := Candidates(states, PreferAisle); !reflect.DeepEqual(got, []string{"1D", "2C", "2D"}) {
		t.Fatalf("aisle: got %v", got)
	}
	if got := Candidates(states, PreferAny); len(got) != 10 || got[0] != "1B" {
		t.Fatalf("any: got %v", got)
	}

	// Only middle seats left: a window request falls back to them.
	onlyMiddle := Resolve(ResolveInput{
		Capacity: intPtr(6),
		Blocked:  []string{"1A", "1C", "1D", "1F"},
	})
	if got := Candidates(onlyMiddle, PreferWindow); !reflect.DeepEqual(got, []string{"1B", "1E"}) {
		t.Fatalf("fallback: got %v", got)
	}

	full := Resolve(ResolveInput{
		Capacity: intPtr(2),
		Taken:    []model.TakenSeat{{Seat: "1A", Passport: "P1"}, {Seat: "1B", Passport: "P2"}},
	})
	if got := Candidates(full, PreferAny); len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}
