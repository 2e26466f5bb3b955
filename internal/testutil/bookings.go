package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/airport-checkin/internal/model"
)

// BookingRepo is an in-memory booking store.  CommitSeat enforces the
// same (flight, seat) uniqueness the MySQL schema does.
type BookingRepo struct {
	mu       sync.Mutex
	nextID   uint64
	bookings []*model.Booking
	// Commits counts successful CommitSeat calls.
	Commits int
}

// NewBookingRepo returns a store seeded with bookings.
func NewBookingRepo(bookings ...model.Booking) *BookingRepo {
	r := &BookingRepo{}
	for i := range bookings {
		b := bookings[i]
		r.nextID++
		b.ID = r.nextID
		r.bookings = append(r.bookings, &b)
	}
	return r
}

// Seat returns a pointer for literal seat values in test tables.
func Seat(s string) *string { return &s }

// Capacity returns a pointer for literal capacities in test tables.
func Capacity(n int) *int { return &n }

func (r *BookingRepo) find(flight, passport string) *model.Booking {
	for _, b := range r.bookings {
		if b.Flight == flight && b.Passport == passport {
			return b
		}
	}
	return nil
}

func (r *BookingRepo) SeatsTaken(_ context.Context, flight string) ([]model.TakenSeat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.TakenSeat
	for _, b := range r.bookings {
		if b.Flight == flight && b.Seat != nil {
			out = append(out, model.TakenSeat{Seat: *b.Seat, Passport: b.Passport, Name: b.Name})
		}
	}
	return out, nil
}

func (r *BookingRepo) CommitSeat(_ context.Context, flight, passport, seat string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target := r.find(flight, passport)
	if target == nil {
		return model.ErrBookingNotFound
	}
	for _, b := range r.bookings {
		if b != target && b.Flight == flight && b.Seat != nil && *b.Seat == seat {
			return model.ErrSeatConflict
		}
	}
	s := seat
	target.Seat = &s
	target.UpdatedAt = time.Now().UTC()
	r.Commits++
	return nil
}

func (r *BookingRepo) Create(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(b.Flight, b.Passport) != nil {
		return model.ErrBookingExists
	}
	r.nextID++
	b.ID = r.nextID
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	r.bookings = append(r.bookings, &cp)
	return nil
}

func (r *BookingRepo) Get(_ context.Context, flight, passport string) (model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.find(flight, passport)
	if b == nil {
		return model.Booking{}, model.ErrBookingNotFound
	}
	return *b, nil
}

func (r *BookingRepo) ListByFlight(_ context.Context, flight string) ([]model.Booking, error) {
	return r.filter(func(b *model.Booking) bool { return b.Flight == flight }), nil
}

func (r *BookingRepo) ListByPassport(_ context.Context, passport string) ([]model.Booking, error) {
	return r.filter(func(b *model.Booking) bool { return b.Passport == passport }), nil
}

func (r *BookingRepo) CountByFlight(_ context.Context, flight string) (int, error) {
	return len(r.filter(func(b *model.Booking) bool { return b.Flight == flight })), nil
}

func (r *BookingRepo) CheckIn(_ context.Context, b *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.find(b.Flight, b.Passport)
	if cur == nil {
		return model.ErrBookingNotFound
	}
	cur.Name = b.Name
	cur.TicketNumber = b.TicketNumber
	cur.BaggageCount = b.BaggageCount
	cur.BaggageFee = b.BaggageFee
	cur.CheckedIn = true
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *BookingRepo) PayBaggage(_ context.Context, flight, passport string) error {
	return r.mutate(flight, passport, func(b *model.Booking) { b.BaggagePaid = true })
}

func (r *BookingRepo) MarkBoarded(_ context.Context, flight, passport string, at time.Time) error {
	return r.mutate(flight, passport, func(b *model.Booking) { b.BoardedAt = &at })
}

func (r *BookingRepo) Delete(_ context.Context, flight, passport string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.bookings {
		if b.Flight == flight && b.Passport == passport {
			r.bookings = append(r.bookings[:i], r.bookings[i+1:]...)
			return nil
		}
	}
	return model.ErrBookingNotFound
}

func (r *BookingRepo) mutate(flight, passport string, fn func(*model.Booking)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.find(flight, passport)
	if b == nil {
		return model.ErrBookingNotFound
	}
	fn(b)
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *BookingRepo) filter(keep func(*model.Booking) bool) []model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Booking
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, *b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
