// Package testutil provides in-memory stand-ins for the MySQL
// repositories so services and handlers can be tested without a database.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/airport-checkin/internal/model"
)

// FlightRepo is an in-memory flight store.
type FlightRepo struct {
	mu      sync.Mutex
	flights map[string]model.Flight
}

// NewFlightRepo returns a store seeded with flights.
func NewFlightRepo(flights ...model.Flight) *FlightRepo {
	r := &FlightRepo{flights: make(map[string]model.Flight)}
	for _, f := range flights {
		r.flights[f.Number] = cloneFlight(f)
	}
	return r
}

func cloneFlight(f model.Flight) model.Flight {
	f.Columns = append([]string(nil), f.Columns...)
	f.BlockedSeats = append([]string(nil), f.BlockedSeats...)
	if f.Capacity != nil {
		c := *f.Capacity
		f.Capacity = &c
	}
	return f
}

func (r *FlightRepo) Get(_ context.Context, number string) (model.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[number]
	if !ok {
		return model.Flight{}, model.ErrFlightNotFound
	}
	return cloneFlight(f), nil
}

func (r *FlightRepo) List(_ context.Context) ([]model.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Flight, 0, len(r.flights))
	for _, f := range r.flights {
		out = append(out, cloneFlight(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *FlightRepo) Create(_ context.Context, f *model.Flight) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flights[f.Number]; ok {
		return model.ErrFlightExists
	}
	now := time.Now().UTC()
	f.CreatedAt, f.UpdatedAt = now, now
	r.flights[f.Number] = cloneFlight(*f)
	return nil
}

func (r *FlightRepo) Update(_ context.Context, number string, f *model.Flight) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.flights[number]
	if !ok {
		return model.ErrFlightNotFound
	}
	if f.Number != number {
		if _, taken := r.flights[f.Number]; taken {
			return model.ErrFlightExists
		}
		delete(r.flights, number)
	}
	f.CreatedAt = cur.CreatedAt
	f.UpdatedAt = time.Now().UTC()
	r.flights[f.Number] = cloneFlight(*f)
	return nil
}

func (r *FlightRepo) Delete(_ context.Context, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flights[number]; !ok {
		return model.ErrFlightNotFound
	}
	delete(r.flights, number)
	return nil
}

func (r *FlightRepo) SetSeatBlocked(_ context.Context, number, seat string, blocked bool) error {
	return r.mutate(number, func(f *model.Flight) {
		kept := f.BlockedSeats[:0]
		for _, b := range f.BlockedSeats {
			if b != seat {
				kept = append(kept, b)
			}
		}
		if blocked {
			kept = append(kept, seat)
		}
		f.BlockedSeats = kept
	})
}

func (r *FlightRepo) SetCheckinEnabled(_ context.Context, number string, enabled bool) error {
	return r.mutate(number, func(f *model.Flight) { f.CheckinEnabled = enabled })
}

func (r *FlightRepo) SetBoardingStarted(_ context.Context, number string, started bool) error {
	return r.mutate(number, func(f *model.Flight) { f.BoardingStarted = started })
}

func (r *FlightRepo) mutate(number string, fn func(*model.Flight)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.flights[number]
	if !ok {
		return model.ErrFlightNotFound
	}
	fn(&f)
	f.UpdatedAt = time.Now().UTC()
	r.flights[number] = f
	return nil
}
