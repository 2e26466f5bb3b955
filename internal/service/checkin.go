package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/clock"
	"github.com/iliyamo/airport-checkin/internal/logger"
	"github.com/iliyamo/airport-checkin/internal/model"
	"github.com/iliyamo/airport-checkin/internal/queue"
	"github.com/iliyamo/airport-checkin/internal/seating"
)

// FlightReader loads flights.
type FlightReader interface {
	Get(ctx context.Context, number string) (model.Flight, error)
}

// BookingStore is the booking persistence the check-in flow needs.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	Get(ctx context.Context, flight, passport string) (model.Booking, error)
	CountByFlight(ctx context.Context, flight string) (int, error)
	CheckIn(ctx context.Context, b *model.Booking) error
	PayBaggage(ctx context.Context, flight, passport string) error
	Delete(ctx context.Context, flight, passport string) error
}

// SeatResolver commits the seat for a passenger checking in.
type SeatResolver interface {
	ResolveCheckinSeat(ctx context.Context, flight, passport, input string) (seating.Assignment, error)
}

// Fees for checked baggage: the first bag is free, each extra bag costs
// ExtraBagFee.
const ExtraBagFee = 50

// BaggageFee returns the fee owed for count checked bags.
func BaggageFee(count int) int {
	if count <= 1 {
		return 0
	}
	return ExtraBagFee * (count - 1)
}

// CheckinService runs registration, check-in and baggage payment.
// Booking creation runs inside the flight's critical section so the
// capacity guard cannot be raced past.
type CheckinService struct {
	flights  FlightReader
	bookings BookingStore
	seats    SeatResolver
	locker   seating.Locker
	audit    seating.AuditLogger
	events   EventPublisher
	clock    clock.Clock
	log      logrus.FieldLogger
}

// CheckinDeps groups the collaborators of a CheckinService.  Events may be
// nil, in which case boarding passes are never queued.
type CheckinDeps struct {
	Flights  FlightReader
	Bookings BookingStore
	Seats    SeatResolver
	Locker   seating.Locker
	Audit    seating.AuditLogger
	Events   EventPublisher
	Clock    clock.Clock
	Log      logrus.FieldLogger
}

// NewCheckinService wires a CheckinService.  The locker must be the same
// one the seat assignment service uses.
func NewCheckinService(d CheckinDeps) *CheckinService {
	s := &CheckinService{
		flights:  d.Flights,
		bookings: d.Bookings,
		seats:    d.Seats,
		locker:   d.Locker,
		audit:    d.Audit,
		events:   d.Events,
		clock:    d.Clock,
		log:      d.Log,
	}
	if s.locker == nil {
		s.locker = seating.NewLocalLocker()
	}
	if s.clock == nil {
		s.clock = clock.NewSystem()
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	return s
}

// RegisterInput is a new booking request.
type RegisterInput struct {
	Flight   string
	Passport string
	Name     string
	Email    string
}

// Register creates a booking with no seat.  It fails with FlightFull when
// bookings on the flight already reach capacity and model.ErrBookingExists
// when the passport is already booked on the flight.
func (s *CheckinService) Register(ctx context.Context, in RegisterInput) (model.Booking, error) {
	in.Flight = strings.TrimSpace(in.Flight)
	in.Passport = strings.TrimSpace(in.Passport)
	in.Name = strings.TrimSpace(in.Name)
	if in.Flight == "" || in.Passport == "" || in.Name == "" {
		return model.Booking{}, &seating.Error{Kind: seating.KindInvalidInput, Detail: "flight, passport and name are required"}
	}
	f, err := s.flight(ctx, in.Flight)
	if err != nil {
		return model.Booking{}, err
	}

	b := model.Booking{Flight: f.Number, Passport: in.Passport, Name: in.Name, Email: optional(in.Email)}
	err = s.withFlight(ctx, f.Number, func() error {
		if err := s.guardCapacity(ctx, f); err != nil {
			return err
		}
		return s.bookings.Create(ctx, &b)
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.record(ctx, model.EventBookingCreated, f.Number, b.Passport, nil)
	return b, nil
}

// CheckinPassenger is one passenger in a check-in request.  Seat may be a
// label, a preference keyword or empty.
type CheckinPassenger struct {
	Name         string
	Passport     string
	Email        string
	TicketNumber string
	Seat         string
	BaggageCount int
}

// CheckinResult reports the outcome for one passenger.  Failures of one
// passenger do not affect the others.
type CheckinResult struct {
	Passport   string `json:"passport"`
	Status     string `json:"status"`
	Seat       string `json:"seat,omitempty"`
	BaggageFee *int   `json:"baggage_fee,omitempty"`
	PassQueued bool   `json:"boarding_pass_queued,omitempty"`
	Code       string `json:"code,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Checkin checks in every passenger on flight.  The returned error is only
// set for failures that apply to the whole request (unknown flight or
// check-in closed); per-passenger failures are reported in the results.
func (s *CheckinService) Checkin(ctx context.Context, flight string, passengers []CheckinPassenger) ([]CheckinResult, error) {
	flight = strings.TrimSpace(flight)
	if flight == "" {
		return nil, &seating.Error{Kind: seating.KindInvalidInput, Detail: "flight is required"}
	}
	f, err := s.flight(ctx, flight)
	if err != nil {
		return nil, err
	}
	if !f.CheckinEnabled {
		return nil, ErrCheckinClosed
	}

	results := make([]CheckinResult, 0, len(passengers))
	for _, p := range passengers {
		res, err := s.checkinOne(ctx, f, p)
		if err != nil {
			code, detail := describe(err)
			s.log.WithError(err).WithFields(logrus.Fields{"flight": f.Number, "passport": p.Passport}).Info("check-in rejected")
			results = append(results, CheckinResult{Passport: strings.TrimSpace(p.Passport), Status: "error", Code: code, Detail: detail})
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *CheckinService) checkinOne(ctx context.Context, f model.Flight, p CheckinPassenger) (CheckinResult, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Passport = strings.TrimSpace(p.Passport)
	if p.Name == "" || p.Passport == "" {
		return CheckinResult{}, &seating.Error{Kind: seating.KindInvalidInput, Flight: f.Number, Detail: "passport and name are required"}
	}
	if p.BaggageCount < 0 {
		return CheckinResult{}, &seating.Error{Kind: seating.KindInvalidInput, Flight: f.Number, Detail: "baggage_count must not be negative"}
	}

	b, created, err := s.findOrCreate(ctx, f, p)
	if err != nil {
		return CheckinResult{}, err
	}

	a, err := s.seats.ResolveCheckinSeat(ctx, f.Number, p.Passport, p.Seat)
	if err != nil {
		if created {
			s.discard(ctx, f.Number, p.Passport)
		}
		return CheckinResult{}, err
	}
	if created {
		s.record(ctx, model.EventBookingCreated, f.Number, p.Passport, map[string]string{"source": "checkin"})
	}

	b.Name = p.Name
	if p.TicketNumber != "" {
		b.TicketNumber = optional(p.TicketNumber)
	}
	b.BaggageCount = p.BaggageCount
	b.BaggageFee = BaggageFee(p.BaggageCount)
	b.Seat = &a.Seat
	if err := s.bookings.CheckIn(ctx, &b); err != nil {
		return CheckinResult{}, err
	}
	s.record(ctx, model.EventCheckin, f.Number, p.Passport, map[string]string{
		"seat":          a.Seat,
		"baggage_count": strconv.Itoa(p.BaggageCount),
	})

	fee := b.BaggageFee
	res := CheckinResult{Passport: p.Passport, Status: "ok", Seat: a.Seat, BaggageFee: &fee}
	if b.Email != nil && *b.Email != "" && s.events != nil {
		pass := boardingPass(f, b)
		if err := s.events.Publish(ctx, queue.BoardingPassMessage(*b.Email, pass)); err != nil {
			s.log.WithError(err).WithField("passport", p.Passport).Warn("boarding pass not queued")
		} else {
			res.PassQueued = true
		}
	}
	return res, nil
}

// findOrCreate returns the passenger's booking on f, creating it under the
// capacity guard when it does not exist yet.  created reports whether this
// call inserted the booking.
func (s *CheckinService) findOrCreate(ctx context.Context, f model.Flight, p CheckinPassenger) (b model.Booking, created bool, err error) {
	b, err = s.bookings.Get(ctx, f.Number, p.Passport)
	if err == nil {
		return b, false, nil
	}
	if !errors.Is(err, model.ErrBookingNotFound) {
		return model.Booking{}, false, err
	}
	b = model.Booking{Flight: f.Number, Passport: p.Passport, Name: p.Name, Email: optional(p.Email), TicketNumber: optional(p.TicketNumber)}
	err = s.withFlight(ctx, f.Number, func() error {
		if err := s.guardCapacity(ctx, f); err != nil {
			return err
		}
		return s.bookings.Create(ctx, &b)
	})
	if errors.Is(err, model.ErrBookingExists) {
		// Lost a race with a concurrent registration of the same passport.
		b, err = s.bookings.Get(ctx, f.Number, p.Passport)
		return b, false, err
	}
	if err != nil {
		return model.Booking{}, false, err
	}
	return b, true, nil
}

// discard removes a booking created by a check-in that then failed to get
// a seat, so it does not count against capacity.
func (s *CheckinService) discard(ctx context.Context, flight, passport string) {
	err := s.withFlight(ctx, flight, func() error {
		return s.bookings.Delete(ctx, flight, passport)
	})
	if err != nil && !errors.Is(err, model.ErrBookingNotFound) {
		s.log.WithError(err).WithFields(logrus.Fields{"flight": flight, "passport": passport}).
			Warn("roll back booking after failed check-in")
	}
}

// PayBaggage marks the baggage fee of passport on flight as paid when
// amount covers it.
func (s *CheckinService) PayBaggage(ctx context.Context, flight, passport string, amount int) (model.Booking, error) {
	flight, passport = strings.TrimSpace(flight), strings.TrimSpace(passport)
	if flight == "" || passport == "" {
		return model.Booking{}, &seating.Error{Kind: seating.KindInvalidInput, Detail: "flight and passport are required"}
	}
	b, err := s.bookings.Get(ctx, flight, passport)
	if err != nil {
		return model.Booking{}, err
	}
	if amount < b.BaggageFee {
		return model.Booking{}, &InsufficientAmountError{Required: b.BaggageFee, Paid: amount}
	}
	if err := s.bookings.PayBaggage(ctx, flight, passport); err != nil {
		return model.Booking{}, err
	}
	b.BaggagePaid = true
	s.record(ctx, model.EventBaggagePayment, flight, passport, map[string]string{"amount": strconv.Itoa(amount)})
	return b, nil
}

// BoardingPass returns the boarding pass of a checked-in passenger.
func (s *CheckinService) BoardingPass(ctx context.Context, flight, passport string) (model.BoardingPass, error) {
	f, err := s.flight(ctx, strings.TrimSpace(flight))
	if err != nil {
		return model.BoardingPass{}, err
	}
	b, err := s.bookings.Get(ctx, f.Number, strings.TrimSpace(passport))
	if err != nil {
		return model.BoardingPass{}, err
	}
	if !b.CheckedIn || b.SeatLabel() == "" {
		return model.BoardingPass{}, ErrNotCheckedIn
	}
	return boardingPass(f, b), nil
}

func boardingPass(f model.Flight, b model.Booking) model.BoardingPass {
	pass := model.BoardingPass{
		Name:      b.Name,
		Passport:  b.Passport,
		Flight:    f.Number,
		Seat:      b.SeatLabel(),
		DepartsAt: f.ScheduledAt,
		QR:        model.BoardingPassQR(b.Passport, f.Number, b.SeatLabel()),
	}
	if f.Gate != nil {
		pass.Gate = *f.Gate
	}
	return pass
}

func (s *CheckinService) flight(ctx context.Context, number string) (model.Flight, error) {
	if number == "" {
		return model.Flight{}, &seating.Error{Kind: seating.KindInvalidInput, Detail: "flight is required"}
	}
	f, err := s.flights.Get(ctx, number)
	if errors.Is(err, model.ErrFlightNotFound) {
		return model.Flight{}, &seating.Error{Kind: seating.KindFlightNotFound, Flight: number}
	}
	return f, err
}

func (s *CheckinService) guardCapacity(ctx context.Context, f model.Flight) error {
	if !f.HasCapacity() {
		return nil
	}
	n, err := s.bookings.CountByFlight(ctx, f.Number)
	if err != nil {
		return err
	}
	if n >= *f.Capacity {
		return &seating.Error{Kind: seating.KindFlightFull, Flight: f.Number}
	}
	return nil
}

func (s *CheckinService) withFlight(ctx context.Context, flight string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, flight)
	if err != nil {
		return &seating.Error{Kind: seating.KindSeatHeld, Flight: flight, Detail: "flight is busy, retry"}
	}
	defer unlock()
	return fn()
}

func (s *CheckinService) record(ctx context.Context, typ, flight, passport string, attrs map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, model.AuditEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		Flight:     flight,
		Passport:   passport,
		Actor:      seating.ActorFrom(ctx),
		Attrs:      attrs,
		OccurredAt: s.clock.Now().UTC(),
	})
}

// describe turns err into the code and message of a per-passenger result.
func describe(err error) (string, string) {
	if k := seating.KindOf(err); k != "" {
		return string(k), err.Error()
	}
	switch {
	case errors.Is(err, model.ErrBookingExists):
		return "booking_exists", err.Error()
	case errors.Is(err, model.ErrBookingNotFound):
		return "booking_not_found", err.Error()
	}
	return "internal", "internal error"
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
