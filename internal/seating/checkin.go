package seating

import (
	"context"
	"strconv"
	"strings"

	"github.com/iliyamo/airport-checkin/internal/model"
)

// ResolveCheckinSeat picks and commits a seat for a passenger who is
// checking in with input that may be a preference keyword, a concrete
// label or nothing.  Resolution order:
//
//  1. a preference keyword auto-assigns;
//  2. a concrete label is used when passport can take it;
//  3. otherwise the next numeral after the highest numeric seat on the
//     flight, else the first open label of the seat map, else "1".
//
// An empty input keeps a seat the passenger already has.  The passenger's
// booking must already exist.
func (s *Service) ResolveCheckinSeat(ctx context.Context, flight, passport, input string) (Assignment, error) {
	flight, passport, err := requireIDs(flight, passport)
	if err != nil {
		return Assignment{}, err
	}
	input = strings.TrimSpace(input)

	unlock, err := s.enter(ctx, flight)
	if err != nil {
		return Assignment{}, err
	}
	st, err := s.load(ctx, flight)
	if err != nil {
		unlock()
		return Assignment{}, err
	}
	a, err := s.resolveCheckinLocked(ctx, st, passport, input)
	unlock()
	if err != nil {
		return Assignment{}, err
	}
	if a.Changed {
		s.record(ctx, checkinEvent(input), flight, passport, map[string]string{"seat": a.Seat, "source": "checkin"})
	}
	return a, nil
}

func (s *Service) resolveCheckinLocked(ctx context.Context, st flightState, passport, input string) (Assignment, error) {
	if IsPreferenceKeyword(input) {
		pref, _ := ParsePreference(input)
		return s.autoassignLocked(ctx, st, passport, pref)
	}
	if input == "" {
		if cur := st.seatOf(passport); cur != "" {
			return Assignment{Flight: st.flight.Number, Passport: passport, Seat: cur}, nil
		}
	}
	if label, ok := NormalizeLabel(input); ok && st.onMap(label) && st.usable(label, passport) {
		return s.commit(ctx, st, passport, label)
	}
	label, err := st.fallbackSeat(passport)
	if err != nil {
		return Assignment{}, err
	}
	return s.commit(ctx, st, passport, label)
}

// fallbackSeat is step 3 of check-in resolution.
func (st flightState) fallbackSeat(passport string) (string, error) {
	highest := 0
	for _, t := range st.taken {
		if !IsNumeric(t.Seat) {
			continue
		}
		if n, err := strconv.Atoi(t.Seat); err == nil && n > highest {
			highest = n
		}
	}
	if highest > 0 {
		for n := highest + 1; ; n++ {
			label := strconv.Itoa(n)
			if st.usable(label, passport) {
				return label, nil
			}
		}
	}
	if st.flight.HasCapacity() {
		cands := Candidates(st.resolve(passport), PreferAny)
		if len(cands) == 0 {
			return "", newError(KindNoSeatAvailable, st.flight.Number, "")
		}
		return cands[0], nil
	}
	return st.lowestFreeNumber(passport), nil
}

func checkinEvent(input string) string {
	if IsPreferenceKeyword(input) {
		return model.EventSeatAutoassigned
	}
	return model.EventSeatSelected
}
