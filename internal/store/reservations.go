package store

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"reservo/backend/internal/domain"
)

type ReservationFilter struct {
	Dates     DateRange
	ServiceID string
	StaffID   string
	Status    domain.ReservationStatus
	Limit     int
}

func (f ReservationFilter) Match(r domain.Reservation) bool {
	if !f.Dates.Contains(r.Date) {
		return false
	}
	if f.ServiceID != "" && r.ServiceID != f.ServiceID {
		return false
	}
	if f.StaffID != "" && r.StaffID != f.StaffID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

type ReservationRepository interface {
	// CreateReservation inserts r unless a confirmed reservation for the same
	// service, staff key and date overlaps it (ErrConflict). The check and the
	// insert are atomic. Re-inserting an existing id returns the stored row
	// when it describes the same booking and ErrIdempotencyConflict otherwise.
	CreateReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error)
	Reservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	// Reservations returns matches ordered by date, start time and id.
	Reservations(ctx context.Context, f ReservationFilter) ([]domain.Reservation, error)
	// CancelReservation moves a confirmed reservation to cancelled. It returns
	// ErrNotFound for an unknown id and ErrConflict when already cancelled.
	CancelReservation(ctx context.Context, id uuid.UUID, at time.Time) (domain.Reservation, error)
}

// ReservationTx is the view of a reservation transaction scoped to one slot key.
type ReservationTx interface {
	ReservationByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	ActiveReservations(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error)
	InsertReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error)
}

// CreateInTx runs the shared create protocol against tx: idempotent replay by
// id, overlap check against active reservations, insert.
func CreateInTx(ctx context.Context, tx ReservationTx, r domain.Reservation) (domain.Reservation, error) {
	if r.ID != uuid.Nil {
		existing, err := tx.ReservationByID(ctx, r.ID)
		switch {
		case err == nil:
			if !existing.SameBooking(r) {
				return domain.Reservation{}, ErrIdempotencyConflict
			}
			return existing, nil
		case !errors.Is(err, ErrNotFound):
			return domain.Reservation{}, err
		}
	}

	active, err := tx.ActiveReservations(ctx, domain.SlotKey{ServiceID: r.ServiceID, StaffID: r.StaffID, Date: r.Date})
	if err != nil {
		return domain.Reservation{}, err
	}
	if Overlapping(active, r.Slot()) {
		return domain.Reservation{}, ErrConflict
	}
	return tx.InsertReservation(ctx, r)
}

// Overlapping reports whether any confirmed reservation in rs overlaps slot.
func Overlapping(rs []domain.Reservation, slot domain.TimeSlot) bool {
	for _, r := range rs {
		if r.Active() && r.Slot().Overlaps(slot) {
			return true
		}
	}
	return false
}

// SortReservations orders by date, start and id.
func SortReservations(rs []domain.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if c := rs[i].Date.Compare(rs[j].Date); c != 0 {
			return c < 0
		}
		if rs[i].Start != rs[j].Start {
			return rs[i].Start < rs[j].Start
		}
		return bytes.Compare(rs[i].ID[:], rs[j].ID[:]) < 0
	})
}
