package seating

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/airport-checkin/internal/clock"
	"github.com/iliyamo/airport-checkin/internal/model"
)

// HoldStore persists seat holds.  Implementations need not be safe for
// concurrent mutation of the same flight; the HoldManager's callers hold
// the flight's critical section.
type HoldStore interface {
	// PurgeExpired removes holds on flight whose expiry is at or before now
	// and returns the number removed.
	PurgeExpired(ctx context.Context, flight string, now time.Time) (int, error)
	// ListByFlight returns every stored hold for flight.
	ListByFlight(ctx context.Context, flight string) ([]model.SeatHold, error)
	// Upsert creates the hold or replaces the one with the same
	// (flight, seat, passport).
	Upsert(ctx context.Context, h model.SeatHold) error
	// Delete removes the hold for (flight, seat, passport) and reports
	// whether one existed.  Absent is not an error.
	Delete(ctx context.Context, flight, seat, passport string) (bool, error)
	// DeleteByPassport removes every hold passport has on flight and
	// returns the released seat labels.
	DeleteByPassport(ctx context.Context, flight, passport string) ([]string, error)
}

// HoldManager owns the hold lifecycle: absent → held → expired, released
// or committed.  Expiry is lazy; Active purges before every read so no
// background sweep is needed for correctness.
type HoldManager struct {
	store HoldStore
	clock clock.Clock
}

// NewHoldManager returns a HoldManager over store.
func NewHoldManager(store HoldStore, clk clock.Clock) *HoldManager {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &HoldManager{store: store, clock: clk}
}

// Purge drops lapsed holds for flight.  It is idempotent and is the only
// place expiry is enforced.
func (m *HoldManager) Purge(ctx context.Context, flight string) error {
	_, err := m.store.PurgeExpired(ctx, flight, m.clock.Now())
	return err
}

// Active purges lapsed holds and returns the remaining ones for flight.
func (m *HoldManager) Active(ctx context.Context, flight string) ([]model.SeatHold, error) {
	if err := m.Purge(ctx, flight); err != nil {
		return nil, err
	}
	holds, err := m.store.ListByFlight(ctx, flight)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	out := holds[:0]
	for _, h := range holds {
		if h.Active(now) {
			out = append(out, h)
		}
	}
	return out, nil
}

// Place validates and stores a hold for passport on seat.  The caller must
// be inside the flight's critical section and pass the flight, its
// committed seats and the current active holds.  It fails with
// SeatBlocked, SeatTaken (another passport committed the seat) or
// SeatHeld (another passport holds it).  A repeat hold by the same
// passport replaces the previous one.
func (m *HoldManager) Place(ctx context.Context, f model.Flight, taken []model.TakenSeat, active []model.SeatHold, seat, passport string, ttl time.Duration) (model.SeatHold, error) {
	for _, b := range f.BlockedSeats {
		if b == seat {
			return model.SeatHold{}, newError(KindSeatBlocked, f.Number, seat)
		}
	}
	for _, t := range taken {
		if t.Seat == seat && t.Passport != passport {
			return model.SeatHold{}, newError(KindSeatTaken, f.Number, seat)
		}
	}
	if other := heldByOther(active, seat, passport); other != nil {
		return model.SeatHold{}, newError(KindSeatHeld, f.Number, seat)
	}

	now := m.clock.Now()
	h := model.SeatHold{
		Flight:    f.Number,
		Seat:      seat,
		Passport:  passport,
		HoldToken: uuid.NewString(),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := m.store.Upsert(ctx, h); err != nil {
		return model.SeatHold{}, err
	}
	return h, nil
}

// Release removes passport's hold on seat and reports whether a hold was
// removed.  Releasing an absent hold is a no-op.
func (m *HoldManager) Release(ctx context.Context, flight, seat, passport string) (bool, error) {
	return m.store.Delete(ctx, flight, seat, passport)
}

// ReleaseAll removes every hold passport has on flight.
func (m *HoldManager) ReleaseAll(ctx context.Context, flight, passport string) ([]string, error) {
	return m.store.DeleteByPassport(ctx, flight, passport)
}

func heldByOther(active []model.SeatHold, seat, passport string) *model.SeatHold {
	for i := range active {
		if active[i].Seat == seat && active[i].Passport != passport {
			return &active[i]
		}
	}
	return nil
}

// MemoryHoldStore keeps holds in process memory.  It is the default for
// single-instance deployments and for tests.
type MemoryHoldStore struct {
	mu    sync.Mutex
	holds map[string]map[holdKey]model.SeatHold
}

type holdKey struct {
	seat     string
	passport string
}

// NewMemoryHoldStore returns an empty MemoryHoldStore.
func NewMemoryHoldStore() *MemoryHoldStore {
	return &MemoryHoldStore{holds: make(map[string]map[holdKey]model.SeatHold)}
}

func (s *MemoryHoldStore) PurgeExpired(_ context.Context, flight string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, h := range s.holds[flight] {
		if !h.Active(now) {
			delete(s.holds[flight], k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryHoldStore) ListByFlight(_ context.Context, flight string) ([]model.SeatHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SeatHold, 0, len(s.holds[flight]))
	for _, h := range s.holds[flight] {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seat != out[j].Seat {
			return out[i].Seat < out[j].Seat
		}
		return out[i].Passport < out[j].Passport
	})
	return out, nil
}

func (s *MemoryHoldStore) Upsert(_ context.Context, h model.SeatHold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.holds[h.Flight]
	if !ok {
		m = make(map[holdKey]model.SeatHold)
		s.holds[h.Flight] = m
	}
	m[holdKey{seat: h.Seat, passport: h.Passport}] = h
	return nil
}

func (s *MemoryHoldStore) Delete(_ context.Context, flight, seat, passport string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := holdKey{seat: seat, passport: passport}
	if _, ok := s.holds[flight][k]; !ok {
		return false, nil
	}
	delete(s.holds[flight], k)
	return true, nil
}

func (s *MemoryHoldStore) DeleteByPassport(_ context.Context, flight, passport string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var seats []string
	for k := range s.holds[flight] {
		if k.passport == passport {
			seats = append(seats, k.seat)
			delete(s.holds[flight], k)
		}
	}
	sort.Strings(seats)
	return seats, nil
}
