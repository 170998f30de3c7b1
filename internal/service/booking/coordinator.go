package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reservo/backend/internal/availability"
	"reservo/backend/internal/domain"
	"reservo/backend/internal/events"
	"reservo/backend/internal/lock"
	"reservo/backend/internal/metrics"
	"reservo/backend/internal/store"
)

type Catalog interface {
	Service(ctx context.Context, id string) (domain.Service, error)
	Staff(ctx context.Context, id string) (domain.StaffMember, error)
}

type Engine interface {
	Day(ctx context.Context, durationMinutes int, date, today domain.Date) (availability.Day, error)
	Days(ctx context.Context, durationMinutes int, from, to, today domain.Date) ([]availability.Day, error)
}

// Coordinator layers reservations on top of the availability engine and is
// the only writer of the reservation log.
type Coordinator struct {
	catalog      Catalog
	engine       Engine
	reservations store.ReservationRepository
	locker       lock.Locker
	publisher    events.Publisher
	log          zerolog.Logger

	now func() time.Time
	loc *time.Location
}

type Option func(*Coordinator)

// WithClock overrides the wall clock used for "today" and cancellation times.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLocation sets the business time zone that defines "today".
func WithLocation(loc *time.Location) Option {
	return func(c *Coordinator) {
		if loc != nil {
			c.loc = loc
		}
	}
}

func NewCoordinator(
	catalog Catalog,
	engine Engine,
	reservations store.ReservationRepository,
	locker lock.Locker,
	publisher events.Publisher,
	log zerolog.Logger,
	opts ...Option,
) *Coordinator {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if publisher == nil {
		publisher = events.NewBus()
	}
	c := &Coordinator{
		catalog:      catalog,
		engine:       engine,
		reservations: reservations,
		locker:       locker,
		publisher:    publisher,
		log:          log.With().Str("component", "booking").Logger(),
		now:          time.Now,
		loc:          time.UTC,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Today is the current calendar date in the business time zone.
func (c *Coordinator) Today() domain.Date {
	return domain.Today(c.now(), c.loc)
}

type SlotQuery struct {
	ServiceID string
	Date      string
	StaffID   string
}

// AvailableSlots returns the engine's slots for the query minus every slot
// that overlaps a confirmed reservation for the same service (and the same
// staff member when one is given). Slots of today that already started are
// dropped. Closed and out-of-horizon days are empty, not errors.
func (c *Coordinator) AvailableSlots(ctx context.Context, q SlotQuery) (availability.Day, error) {
	date, err := domain.ParseDate(q.Date)
	if err != nil {
		return availability.Day{}, err
	}
	svc, staffID, err := c.resolve(ctx, q.ServiceID, q.StaffID, false)
	if err != nil {
		return availability.Day{}, err
	}
	day, err := c.availableDay(ctx, svc, staffID, date)
	if err != nil {
		return availability.Day{}, err
	}
	metrics.IncSlotQuery(string(day.Status))
	return day, nil
}

// AvailableDays computes availability for every date in [from, to].
func (c *Coordinator) AvailableDays(ctx context.Context, serviceID, from, to, staffID string) ([]availability.Day, error) {
	fromDate, err := domain.ParseDate(from)
	if err != nil {
		return nil, err
	}
	toDate, err := domain.ParseDate(to)
	if err != nil {
		return nil, err
	}
	svc, staffID, err := c.resolve(ctx, serviceID, staffID, false)
	if err != nil {
		return nil, err
	}

	today := c.Today()
	days, err := c.engine.Days(ctx, svc.DurationMinutes, fromDate, toDate, today)
	if err != nil {
		if errors.Is(err, availability.ErrRangeTooLarge) {
			return nil, validationError(err.Error())
		}
		return nil, err
	}
	booked, err := c.confirmed(ctx, store.ReservationFilter{
		Dates:     store.DateRange{From: fromDate, To: toDate},
		ServiceID: svc.ID,
		StaffID:   staffID,
	})
	if err != nil {
		return nil, err
	}
	byDate := make(map[domain.Date][]domain.Reservation)
	for _, r := range booked {
		byDate[r.Date] = append(byDate[r.Date], r)
	}
	for i := range days {
		days[i].Slots = c.freeSlots(days[i].Date, today, days[i].Slots, byDate[days[i].Date])
	}
	return days, nil
}

func (c *Coordinator) availableDay(ctx context.Context, svc domain.Service, staffID string, date domain.Date) (availability.Day, error) {
	today := c.Today()
	day, err := c.engine.Day(ctx, svc.DurationMinutes, date, today)
	if err != nil {
		return availability.Day{}, err
	}
	if len(day.Slots) == 0 {
		return day, nil
	}
	booked, err := c.confirmed(ctx, store.ReservationFilter{
		Dates:     store.DateRange{From: date, To: date},
		ServiceID: svc.ID,
		StaffID:   staffID,
	})
	if err != nil {
		return availability.Day{}, err
	}
	day.Slots = c.freeSlots(date, today, day.Slots, booked)
	return day, nil
}

func (c *Coordinator) confirmed(ctx context.Context, f store.ReservationFilter) ([]domain.Reservation, error) {
	f.Status = domain.ReservationConfirmed
	rs, err := c.reservations.Reservations(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return rs, nil
}

func (c *Coordinator) freeSlots(date, today domain.Date, slots []domain.TimeSlot, booked []domain.Reservation) []domain.TimeSlot {
	nowMinute := domain.ClockTime(-1)
	if date == today {
		now := c.now().In(c.loc)
		nowMinute = domain.NewClockTime(now.Hour(), now.Minute())
	}
	out := make([]domain.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Start < nowMinute {
			continue
		}
		if store.Overlapping(booked, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// resolve loads the service and, for staff-bound services, the staff member.
// For services without staff the staff id is dropped. When requireStaff is
// set a staff-bound service without a staff id is rejected.
func (c *Coordinator) resolve(ctx context.Context, serviceID, staffID string, requireStaff bool) (domain.Service, string, error) {
	serviceID = strings.TrimSpace(serviceID)
	staffID = strings.TrimSpace(staffID)
	if serviceID == "" {
		return domain.Service{}, "", validationError("service_id is required")
	}
	svc, err := c.catalog.Service(ctx, serviceID)
	if err != nil {
		return domain.Service{}, "", err
	}
	if !svc.Active {
		return domain.Service{}, "", ErrServiceInactive
	}
	if !svc.RequiresStaff {
		return svc, "", nil
	}
	if staffID == "" {
		if requireStaff {
			return domain.Service{}, "", ErrStaffRequired
		}
		return svc, "", nil
	}
	m, err := c.catalog.Staff(ctx, staffID)
	if err != nil {
		return domain.Service{}, "", err
	}
	if !m.Active {
		return domain.Service{}, "", ErrStaffInactive
	}
	if !m.CanPerform(svc.ID) {
		return domain.Service{}, "", ErrStaffNotCapable
	}
	return svc, m.ID, nil
}

type CreateInput struct {
	ServiceID      string
	StaffID        string
	Date           string
	Start          string
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	Notes          string
	IdempotencyKey string
}

// CreateReservation books the slot starting at in.Start. The availability
// check and the write run under the slot key's lock, and the repository
// re-checks for overlaps in the same transaction as the insert.
func (c *Coordinator) CreateReservation(ctx context.Context, in CreateInput) (domain.Reservation, error) {
	res, outcome, err := c.createReservation(ctx, in)
	metrics.IncReservation(outcome)
	if err != nil {
		return domain.Reservation{}, err
	}
	if outcome == "created" {
		c.publish(ctx, events.TypeReservationCreated, res)
	}
	return res, nil
}

func (c *Coordinator) createReservation(ctx context.Context, in CreateInput) (domain.Reservation, string, error) {
	date, err := domain.ParseDate(in.Date)
	if err != nil {
		return domain.Reservation{}, "rejected", err
	}
	start, err := domain.ParseClockTime(in.Start)
	if err != nil {
		return domain.Reservation{}, "rejected", validationError("start must be HH:MM")
	}
	svc, staffID, err := c.resolve(ctx, in.ServiceID, in.StaffID, true)
	if err != nil {
		return domain.Reservation{}, "rejected", err
	}
	name := strings.TrimSpace(in.ClientName)
	if name == "" {
		return domain.Reservation{}, "rejected", validationError("client_name is required")
	}
	if svc.DurationMinutes > domain.MinutesPerDay {
		// no day can hold such a slot, and start+duration would overflow
		return domain.Reservation{}, "conflict", ErrSlotNoLongerAvailable
	}

	r := domain.Reservation{
		ServiceID:   svc.ID,
		StaffID:     staffID,
		Date:        date,
		Start:       start,
		End:         start.Add(svc.DurationMinutes),
		ClientName:  name,
		ClientEmail: strings.TrimSpace(in.ClientEmail),
		ClientPhone: strings.TrimSpace(in.ClientPhone),
		Notes:       strings.TrimSpace(in.Notes),
		Status:      domain.ReservationConfirmed,
	}
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		if len(key) > 256 {
			return domain.Reservation{}, "rejected", validationError("idempotency_key too long")
		}
		r.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("reservo:create_reservation:"+key))
	}

	slotKey := domain.SlotKey{ServiceID: svc.ID, StaffID: staffID, Date: date}
	waitStart := time.Now()
	release, err := c.locker.Lock(ctx, slotKey.String())
	metrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		return domain.Reservation{}, "error", fmt.Errorf("acquire %s: %w", slotKey, err)
	}
	defer release()

	if r.ID != uuid.Nil {
		existing, err := c.reservations.Reservation(ctx, r.ID)
		switch {
		case err == nil:
			if !existing.SameBooking(r) {
				return domain.Reservation{}, "rejected", store.ErrIdempotencyConflict
			}
			return existing, "replayed", nil
		case !errors.Is(err, store.ErrNotFound):
			return domain.Reservation{}, "error", fmt.Errorf("load reservation %s: %w", r.ID, err)
		}
	}

	day, err := c.availableDay(ctx, svc, staffID, date)
	if err != nil {
		return domain.Reservation{}, "error", err
	}
	if !hasSlotAt(day.Slots, start) {
		c.log.Info().
			Str("service_id", svc.ID).
			Str("staff_id", staffID).
			Stringer("date", date).
			Stringer("start", start).
			Str("day_status", string(day.Status)).
			Msg("requested slot not available")
		return domain.Reservation{}, "conflict", ErrSlotNoLongerAvailable
	}

	out, err := c.reservations.CreateReservation(ctx, r)
	switch {
	case errors.Is(err, store.ErrConflict):
		return domain.Reservation{}, "conflict", ErrSlotNoLongerAvailable
	case errors.Is(err, store.ErrIdempotencyConflict):
		return domain.Reservation{}, "rejected", err
	case err != nil:
		return domain.Reservation{}, "error", fmt.Errorf("create reservation: %w", err)
	}

	c.log.Info().
		Str("reservation_id", out.ID.String()).
		Str("service_id", out.ServiceID).
		Str("staff_id", out.StaffID).
		Stringer("date", out.Date).
		Stringer("start", out.Start).
		Msg("reservation created")
	return out, "created", nil
}

func hasSlotAt(slots []domain.TimeSlot, start domain.ClockTime) bool {
	for _, s := range slots {
		if s.Start == start {
			return true
		}
	}
	return false
}

// CancelReservation moves a confirmed reservation to cancelled. The record is
// kept for audit.
func (c *Coordinator) CancelReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	if id == uuid.Nil {
		return domain.Reservation{}, validationError("reservation_id is required")
	}
	out, err := c.reservations.CancelReservation(ctx, id, c.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.Reservation{}, ErrReservationNotFound
	case errors.Is(err, store.ErrConflict):
		return domain.Reservation{}, ErrAlreadyCancelled
	case err != nil:
		return domain.Reservation{}, fmt.Errorf("cancel reservation %s: %w", id, err)
	}
	metrics.IncReservationCancelled()
	c.log.Info().Str("reservation_id", id.String()).Msg("reservation cancelled")
	c.publish(ctx, events.TypeReservationCancelled, out)
	return out, nil
}

func (c *Coordinator) Reservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	r, err := c.reservations.Reservation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Reservation{}, ErrReservationNotFound
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("load reservation %s: %w", id, err)
	}
	return r, nil
}

type ListInput struct {
	From      string
	To        string
	ServiceID string
	StaffID   string
	Status    string
	Limit     int
}

func (c *Coordinator) Reservations(ctx context.Context, in ListInput) ([]domain.Reservation, error) {
	var f store.ReservationFilter
	var err error
	if in.From != "" {
		if f.Dates.From, err = domain.ParseDate(in.From); err != nil {
			return nil, err
		}
	}
	if in.To != "" {
		if f.Dates.To, err = domain.ParseDate(in.To); err != nil {
			return nil, err
		}
	}
	switch s := domain.ReservationStatus(in.Status); s {
	case "", domain.ReservationConfirmed, domain.ReservationCancelled:
		f.Status = s
	default:
		return nil, validationError(fmt.Sprintf("unknown status %q", in.Status))
	}
	if in.Limit < 0 {
		return nil, validationError("limit must not be negative")
	}
	f.ServiceID = strings.TrimSpace(in.ServiceID)
	f.StaffID = strings.TrimSpace(in.StaffID)
	f.Limit = in.Limit

	out, err := c.reservations.Reservations(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

func (c *Coordinator) publish(ctx context.Context, eventType string, r domain.Reservation) {
	e, err := events.NewReservationEnvelope(eventType, r, c.now())
	if err == nil {
		err = c.publisher.Publish(ctx, e)
	}
	metrics.IncEventPublished(eventType, err == nil)
	if err != nil {
		c.log.Warn().Err(err).Str("event", eventType).Str("reservation_id", r.ID.String()).Msg("event publish failed")
	}
}
