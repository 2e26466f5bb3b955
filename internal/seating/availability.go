package seating

import (
	"time"

	"github.com/iliyamo/airport-checkin/internal/model"
)

// Status is the derived state of one seat.
type Status string

const (
	StatusAvailable Status = "available"
	StatusTaken     Status = "taken"
	StatusHeld      Status = "held"
	StatusBlocked   Status = "blocked"
)

// Occupant identifies the passenger on a taken seat.
type Occupant struct {
	Name     string `json:"name"`
	Passport string `json:"passport"`
}

// SeatState is one row of a seat map.
type SeatState struct {
	Seat        string     `json:"seat"`
	Status      Status     `json:"status"`
	Category    Category   `json:"type,omitempty"`
	Passenger   *Occupant  `json:"passenger,omitempty"`
	HeldBy      string     `json:"held_by,omitempty"`
	HeldExpires *time.Time `json:"held_expires,omitempty"`
}

// ResolveInput is everything the resolver needs to derive seat states.
// Holds must already be purged of expired entries.  Holds owned by
// Requester are ignored so a passenger's own hold never blocks them;
// leave Requester empty for the public view.
type ResolveInput struct {
	Capacity  *int
	Columns   []string
	Taken     []model.TakenSeat
	Blocked   []string
	Holds     []model.SeatHold
	Requester string
}

// Resolve computes per-seat status.  With a capacity every generated label
// is reported in canonical order; without one only seats with a taken or
// blocked record are reported (taken first, then blocked).  Precedence is
// taken > held > blocked > available.
func Resolve(in ResolveInput) []SeatState {
	columns := in.Columns
	if len(columns) == 0 {
		columns = model.DefaultColumns
	}

	taken := make(map[string]model.TakenSeat, len(in.Taken))
	for _, t := range in.Taken {
		if _, dup := taken[t.Seat]; !dup {
			taken[t.Seat] = t
		}
	}
	blocked := make(map[string]bool, len(in.Blocked))
	for _, b := range in.Blocked {
		blocked[b] = true
	}
	held := make(map[string]model.SeatHold, len(in.Holds))
	for _, h := range in.Holds {
		if in.Requester != "" && h.Passport == in.Requester {
			continue
		}
		// Earliest-expiring holder wins the display when several exist.
		if cur, ok := held[h.Seat]; !ok || h.ExpiresAt.Before(cur.ExpiresAt) {
			held[h.Seat] = h
		}
	}

	state := func(label string) SeatState {
		s := SeatState{Seat: label, Category: Classify(label, columns)}
		if t, ok := taken[label]; ok {
			s.Status = StatusTaken
			s.Passenger = &Occupant{Name: t.Name, Passport: t.Passport}
			return s
		}
		if h, ok := held[label]; ok {
			exp := h.ExpiresAt
			s.Status = StatusHeld
			s.HeldBy = h.Passport
			s.HeldExpires = &exp
			return s
		}
		if blocked[label] {
			s.Status = StatusBlocked
			return s
		}
		s.Status = StatusAvailable
		return s
	}

	if in.Capacity != nil && *in.Capacity > 0 {
		labels := Labels(*in.Capacity, columns)
		out := make([]SeatState, 0, len(labels))
		for _, l := range labels {
			out = append(out, state(l))
		}
		return out
	}

	out := make([]SeatState, 0, len(in.Taken)+len(in.Blocked))
	seen := make(map[string]bool, len(in.Taken)+len(in.Blocked))
	for _, t := range in.Taken {
		if seen[t.Seat] {
			continue
		}
		seen[t.Seat] = true
		out = append(out, state(t.Seat))
	}
	for _, b := range in.Blocked {
		if seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, state(b))
	}
	return out
}

// Candidates returns the available seats matching pref in canonical
// order.  When nothing of the preferred category is open it falls back to
// every available seat, so it only comes back empty when the flight has
// no open seat at all.
func Candidates(states []SeatState, pref Preference) []string {
	var all, matching []string
	want := pref.category()
	for _, s := range states {
		if s.Status != StatusAvailable {
			continue
		}
		all = append(all, s.Seat)
		if want != "" && s.Category == want {
			matching = append(matching, s.Seat)
		}
	}
	if pref == PreferAny || len(matching) == 0 {
		return all
	}
	return matching
}
