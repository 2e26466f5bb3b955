package seating

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/clock"
	"github.com/iliyamo/airport-checkin/internal/logger"
	"github.com/iliyamo/airport-checkin/internal/model"
)

// FlightRepository is the read side of the flight store the core needs,
// plus the blocked-seat mutation that must run inside the flight's
// critical section.
type FlightRepository interface {
	Get(ctx context.Context, number string) (model.Flight, error)
	List(ctx context.Context) ([]model.Flight, error)
	SetSeatBlocked(ctx context.Context, number, seat string, blocked bool) error
}

// BookingRepository exposes committed seats and the atomic seat commit.
// CommitSeat must fail with model.ErrSeatConflict when another booking on
// the flight already owns seat and model.ErrBookingNotFound when passport
// has no booking on the flight.
type BookingRepository interface {
	SeatsTaken(ctx context.Context, flight string) ([]model.TakenSeat, error)
	CommitSeat(ctx context.Context, flight, passport, seat string) error
}

// AuditLogger accepts append-only events.  Record must not block and its
// failures stay inside the implementation.
type AuditLogger interface {
	Record(ctx context.Context, ev model.AuditEvent)
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, model.AuditEvent) {}

// Assignment is the outcome of a successful seat operation.  Changed is
// false when the passenger already had the seat.
type Assignment struct {
	Flight   string `json:"flight"`
	Passport string `json:"passport"`
	Seat     string `json:"seat"`
	Changed  bool   `json:"changed"`
}

// SeatMap is the derived seat view of one flight.
type SeatMap struct {
	Flight   string      `json:"flight"`
	Capacity *int        `json:"capacity"`
	Columns  []string    `json:"columns"`
	Seats    []SeatState `json:"seats"`
}

// Service is the seat assignment service.  Every mutation of a flight's
// seats runs inside that flight's critical section.
type Service struct {
	flights  FlightRepository
	bookings BookingRepository
	holds    *HoldManager
	audit    AuditLogger
	locker   Locker
	clock    clock.Clock
	log      logrus.FieldLogger
	maxTTL   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source used for hold expiry.
func WithClock(c clock.Clock) Option { return func(s *Service) { s.clock = c } }

// WithLocker replaces the default in-process LocalLocker.
func WithLocker(l Locker) Option { return func(s *Service) { s.locker = l } }

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

// WithAudit sets the audit sink.
func WithAudit(a AuditLogger) Option { return func(s *Service) { s.audit = a } }

// WithMaxHoldTTL caps the TTL a caller may request.  Zero disables the cap.
func WithMaxHoldTTL(d time.Duration) Option { return func(s *Service) { s.maxTTL = d } }

// NewService wires the seat assignment service.
func NewService(flights FlightRepository, bookings BookingRepository, holds HoldStore, opts ...Option) *Service {
	s := &Service{
		flights:  flights,
		bookings: bookings,
		audit:    nopAudit{},
		locker:   NewLocalLocker(),
		clock:    clock.NewSystem(),
		log:      logger.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.holds = NewHoldManager(holds, s.clock)
	return s
}

type actorKey struct{}

// WithActor records who is acting (passport or admin username) for audit
// events emitted by calls made with the returned context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by WithActor, or "".
func ActorFrom(ctx context.Context) string {
	a, _ := ctx.Value(actorKey{}).(string)
	return a
}

// flightState is everything read inside the critical section.
type flightState struct {
	flight model.Flight
	taken  []model.TakenSeat
	holds  []model.SeatHold
}

func (st flightState) seatOf(passport string) string {
	for _, t := range st.taken {
		if t.Passport == passport {
			return t.Seat
		}
	}
	return ""
}

func (st flightState) takenBy(seat string) (model.TakenSeat, bool) {
	for _, t := range st.taken {
		if t.Seat == seat {
			return t, true
		}
	}
	return model.TakenSeat{}, false
}

func (st flightState) blocked(seat string) bool {
	for _, b := range st.flight.BlockedSeats {
		if b == seat {
			return true
		}
	}
	return false
}

func (st flightState) onMap(seat string) bool {
	if !st.flight.HasCapacity() {
		return true
	}
	for _, l := range Labels(*st.flight.Capacity, st.flight.SeatColumns()) {
		if l == seat {
			return true
		}
	}
	return false
}

func (st flightState) resolve(requester string) []SeatState {
	return Resolve(ResolveInput{
		Capacity:  st.flight.Capacity,
		Columns:   st.flight.SeatColumns(),
		Taken:     st.taken,
		Blocked:   st.flight.BlockedSeats,
		Holds:     st.holds,
		Requester: requester,
	})
}

func (s *Service) loadFlight(ctx context.Context, number string) (model.Flight, error) {
	f, err := s.flights.Get(ctx, number)
	if errors.Is(err, model.ErrFlightNotFound) {
		return model.Flight{}, newError(KindFlightNotFound, number, "")
	}
	return f, err
}

// load reads the flight, its committed seats and active holds.  Expired
// holds are purged on the way.
func (s *Service) load(ctx context.Context, number string) (flightState, error) {
	f, err := s.loadFlight(ctx, number)
	if err != nil {
		return flightState{}, err
	}
	taken, err := s.bookings.SeatsTaken(ctx, number)
	if err != nil {
		return flightState{}, err
	}
	holds, err := s.holds.Active(ctx, number)
	if err != nil {
		return flightState{}, err
	}
	return flightState{flight: f, taken: taken, holds: holds}, nil
}

// enter takes the flight's critical section.  A caller that cannot get in
// within the locker's wait sees SeatHeld: someone else is mid-decision.
func (s *Service) enter(ctx context.Context, flight string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, flight)
	if err == nil {
		return unlock, nil
	}
	if errors.Is(err, ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return nil, &Error{Kind: KindSeatHeld, Flight: flight, Detail: "flight is busy, retry"}
	}
	return nil, err
}

func requireIDs(flight, passport string) (string, string, error) {
	flight = strings.TrimSpace(flight)
	passport = strings.TrimSpace(passport)
	if flight == "" {
		return "", "", invalid("flight is required")
	}
	if passport == "" {
		return "", "", invalid("passport is required")
	}
	return flight, passport, nil
}

// SeatMap returns the public seat view of a flight.  Expired holds are
// purged first.
func (s *Service) SeatMap(ctx context.Context, flight string) (SeatMap, error) {
	flight = strings.TrimSpace(flight)
	if flight == "" {
		return SeatMap{}, invalid("flight is required")
	}
	st, err := s.load(ctx, flight)
	if err != nil {
		return SeatMap{}, err
	}
	return SeatMap{
		Flight:   st.flight.Number,
		Capacity: st.flight.Capacity,
		Columns:  st.flight.SeatColumns(),
		Seats:    st.resolve(""),
	}, nil
}

// SelectSeat commits an explicit seat for passport without requiring a
// prior hold.  Re-requesting the seat the passenger already has succeeds
// with Changed=false.
func (s *Service) SelectSeat(ctx context.Context, flight, passport, seat string) (Assignment, error) {
	flight, passport, err := requireIDs(flight, passport)
	if err != nil {
		return Assignment{}, err
	}
	label, ok := NormalizeLabel(seat)
	if !ok {
		return Assignment{}, invalid("malformed seat label %q", seat)
	}

	unlock, err := s.enter(ctx, flight)
	if err != nil {
		return Assignment{}, err
	}
	st, err := s.load(ctx, flight)
	if err != nil {
		unlock()
		return Assignment{}, err
	}
	if st.seatOf(passport) == label {
		unlock()
		return Assignment{Flight: st.flight.Number, Passport: passport, Seat: label}, nil
	}
	if !st.onMap(label) {
		unlock()
		return Assignment{}, &Error{Kind: KindInvalidInput, Flight: flight, Seat: label, Detail: "seat is not on this flight's seat map"}
	}
	a, err := s.commit(ctx, st, passport, label)
	unlock()
	if err != nil {
		return Assignment{}, err
	}
	if a.Changed {
		s.record(ctx, model.EventSeatSelected, flight, passport, map[string]string{"seat": label})
	}
	return a, nil
}

// AutoAssign picks and commits the canonically first available seat
// matching pref.  Flights without capacity get the lowest free numeric
// seat instead.
func (s *Service) AutoAssign(ctx context.Context, flight, passport string, pref Preference) (Assignment, error) {
	flight, passport, err := requireIDs(flight, passport)
	if err != nil {
		return Assignment{}, err
	}
	unlock, err := s.enter(ctx, flight)
	if err != nil {
		return Assignment{}, err
	}
	st, err := s.load(ctx, flight)
	if err != nil {
		unlock()
		return Assignment{}, err
	}
	a, err := s.autoassignLocked(ctx, st, passport, pref)
	unlock()
	if err != nil {
		return Assignment{}, err
	}
	s.record(ctx, model.EventSeatAutoassigned, flight, passport, map[string]string{"seat": a.Seat, "preference": pref.String()})
	return a, nil
}

func (s *Service) autoassignLocked(ctx context.Context, st flightState, passport string, pref Preference) (Assignment, error) {
	if !st.flight.HasCapacity() {
		return s.commit(ctx, st, passport, st.lowestFreeNumber(passport))
	}
	cands := Candidates(st.resolve(passport), pref)
	if len(cands) == 0 {
		return Assignment{}, newError(KindNoSeatAvailable, st.flight.Number, "")
	}
	return s.commit(ctx, st, passport, cands[0])
}

// lowestFreeNumber scans 1, 2, 3... for the first numeral not used as a
// seat on the flight, not blocked and not held by someone else.
func (st flightState) lowestFreeNumber(passport string) string {
	for n := 1; ; n++ {
		label := strconv.Itoa(n)
		if st.usable(label, passport) {
			if _, used := st.takenBy(label); !used {
				return label
			}
		}
	}
}

// usable reports whether passport could take label right now: not
// blocked, not committed to someone else, not held by someone else.
func (st flightState) usable(label, passport string) bool {
	if st.blocked(label) {
		return false
	}
	if t, ok := st.takenBy(label); ok && t.Passport != passport {
		return false
	}
	return heldByOther(st.holds, label, passport) == nil
}

// commit is the shared commit step.  Checks run in a fixed order: same
// seat (idempotent), capacity, blocked, taken, held.  Only then is the
// seat written; the store's own conflict detection backs up the
// collision check.
func (s *Service) commit(ctx context.Context, st flightState, passport, label string) (Assignment, error) {
	flight := st.flight.Number
	a := Assignment{Flight: flight, Passport: passport, Seat: label}
	if st.seatOf(passport) == label {
		return a, nil
	}
	if st.flight.HasCapacity() {
		others := 0
		for _, t := range st.taken {
			if t.Passport != passport {
				others++
			}
		}
		if others >= *st.flight.Capacity {
			return Assignment{}, newError(KindFlightFull, flight, label)
		}
	}
	if st.blocked(label) {
		return Assignment{}, newError(KindSeatBlocked, flight, label)
	}
	if t, ok := st.takenBy(label); ok && t.Passport != passport {
		return Assignment{}, newError(KindSeatTaken, flight, label)
	}
	if heldByOther(st.holds, label, passport) != nil {
		return Assignment{}, newError(KindSeatHeld, flight, label)
	}

	if err := s.bookings.CommitSeat(ctx, flight, passport, label); err != nil {
		switch {
		case errors.Is(err, model.ErrSeatConflict):
			return Assignment{}, newError(KindSeatTaken, flight, label)
		case errors.Is(err, model.ErrBookingNotFound):
			return Assignment{}, &Error{Kind: KindBookingNotFound, Flight: flight, Detail: "no booking for passport " + passport}
		}
		return Assignment{}, err
	}
	if _, err := s.holds.Release(ctx, flight, label, passport); err != nil {
		s.log.WithFields(logrus.Fields{"flight": flight, "seat": label, "passport": passport}).
			WithError(err).Warn("release hold after commit")
	}
	a.Changed = true
	return a, nil
}

// HoldSeat places or renews passport's hold on seat.  A zero ttl yields a
// hold that is already expired; ttl above the configured maximum is
// capped.
func (s *Service) HoldSeat(ctx context.Context, flight, passport, seat string, ttl time.Duration) (model.SeatHold, error) {
	flight, passport, err := requireIDs(flight, passport)
	if err != nil {
		return model.SeatHold{}, err
	}
	label, ok := NormalizeLabel(seat)
	if !ok {
		return model.SeatHold{}, invalid("malformed seat label %q", seat)
	}
	if ttl < 0 {
		return model.SeatHold{}, invalid("ttl must not be negative")
	}
	if s.maxTTL > 0 && ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	unlock, err := s.enter(ctx, flight)
	if err != nil {
		return model.SeatHold{}, err
	}
	st, err := s.load(ctx, flight)
	if err != nil {
		unlock()
		return model.SeatHold{}, err
	}
	if !st.onMap(label) && st.seatOf(passport) != label {
		unlock()
		return model.SeatHold{}, &Error{Kind: KindInvalidInput, Flight: flight, Seat: label, Detail: "seat is not on this flight's seat map"}
	}
	h, err := s.holds.Place(ctx, st.flight, st.taken, st.holds, label, passport, ttl)
	unlock()
	if err != nil {
		return model.SeatHold{}, err
	}
	s.record(ctx, model.EventSeatHeld, flight, passport, map[string]string{
		"seat":    label,
		"expires": h.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return h, nil
}

// ReleaseHold drops passport's hold on seat.  Releasing a hold that does
// not exist is not an error.
func (s *Service) ReleaseHold(ctx context.Context, flight, passport, seat string) error {
	flight, passport, err := requireIDs(flight, passport)
	if err != nil {
		return err
	}
	label, ok := NormalizeLabel(seat)
	if !ok {
		return invalid("malformed seat label %q", seat)
	}
	unlock, err := s.enter(ctx, flight)
	if err != nil {
		return err
	}
	released, err := s.holds.Release(ctx, flight, label, passport)
	unlock()
	if err != nil {
		return err
	}
	if released {
		s.record(ctx, model.EventSeatHoldReleased, flight, passport, map[string]string{"seat": label})
	}
	return nil
}

// ReleaseHolds drops every hold passport has on flight and returns the
// seats released.
func (s *Service) ReleaseHolds(ctx context.Context, flight, passport string) ([]string, error) {
	flight, passport, err := requireIDs(flight, passport)
	if err != nil {
		return nil, err
	}
	unlock, err := s.enter(ctx, flight)
	if err != nil {
		return nil, err
	}
	seats, err := s.holds.ReleaseAll(ctx, flight, passport)
	unlock()
	if err != nil {
		return nil, err
	}
	if len(seats) > 0 {
		s.record(ctx, model.EventSeatHoldReleased, flight, passport, map[string]string{"seats": strings.Join(seats, ",")})
	}
	return seats, nil
}

// SetSeatBlocked blocks or unblocks a seat.  A committed seat stays
// reported as taken after being blocked.
func (s *Service) SetSeatBlocked(ctx context.Context, flight, seat string, blocked bool) error {
	flight = strings.TrimSpace(flight)
	if flight == "" {
		return invalid("flight is required")
	}
	label, ok := NormalizeLabel(seat)
	if !ok {
		return invalid("malformed seat label %q", seat)
	}
	unlock, err := s.enter(ctx, flight)
	if err != nil {
		return err
	}
	err = s.flights.SetSeatBlocked(ctx, flight, label, blocked)
	unlock()
	if errors.Is(err, model.ErrFlightNotFound) {
		return newError(KindFlightNotFound, flight, "")
	}
	if err != nil {
		return err
	}
	action := "unblock"
	if blocked {
		action = "block"
	}
	s.record(ctx, model.EventSeatBlock, flight, "", map[string]string{"seat": label, "action": action})
	return nil
}

// Exclusive runs fn inside flight's critical section.  Admin writes that
// change a flight's layout or its bookings use it so they never interleave
// with a seat decision.
func (s *Service) Exclusive(ctx context.Context, flight string, fn func(ctx context.Context) error) error {
	unlock, err := s.enter(ctx, strings.TrimSpace(flight))
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

// PurgeAll drops lapsed holds on every flight.
func (s *Service) PurgeAll(ctx context.Context) error {
	flights, err := s.flights.List(ctx)
	if err != nil {
		return err
	}
	for _, f := range flights {
		if err := s.holds.Purge(ctx, f.Number); err != nil {
			return err
		}
	}
	return nil
}

// StartSweeper runs PurgeAll every interval until ctx is done.  Lazy
// purge on read stays correct without it; the sweeper only keeps the
// hold store small.
func (s *Service) StartSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := s.PurgeAll(ctx); err != nil {
					s.log.WithError(err).Warn("hold sweep failed")
				}
			}
		}
	}()
}

func (s *Service) record(ctx context.Context, typ, flight, passport string, attrs map[string]string) {
	s.audit.Record(ctx, model.AuditEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		Flight:     flight,
		Passport:   passport,
		Actor:      ActorFrom(ctx),
		Attrs:      attrs,
		OccurredAt: s.clock.Now().UTC(),
	})
}
