package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/backend/internal/domain"
)

type fakeReservationTx struct {
	byIDFn   func(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	activeFn func(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error)
	insertFn func(ctx context.Context, r domain.Reservation) (domain.Reservation, error)
}

func (f *fakeReservationTx) ReservationByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	if f.byIDFn == nil {
		return domain.Reservation{}, ErrNotFound
	}
	return f.byIDFn(ctx, id)
}

func (f *fakeReservationTx) ActiveReservations(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error) {
	if f.activeFn == nil {
		return nil, nil
	}
	return f.activeFn(ctx, key)
}

func (f *fakeReservationTx) InsertReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	if f.insertFn == nil {
		panic("InsertReservation not configured")
	}
	return f.insertFn(ctx, r)
}

func reservationAt(start, end string) domain.Reservation {
	return domain.Reservation{
		ServiceID:  "padel",
		Date:       domain.MustParseDate("2026-04-01"),
		Start:      domain.MustParseClockTime(start),
		End:        domain.MustParseClockTime(end),
		ClientName: "Lucia",
		Status:     domain.ReservationConfirmed,
	}
}

func TestCreateInTx_RejectsOverlap(t *testing.T) {
	var gotKey domain.SlotKey
	tx := &fakeReservationTx{
		activeFn: func(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error) {
			gotKey = key
			return []domain.Reservation{reservationAt("10:00", "11:00")}, nil
		},
	}

	_, err := CreateInTx(context.Background(), tx, reservationAt("10:30", "11:30"))
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "reservation:padel:-:2026-04-01", gotKey.String())
}

func TestCreateInTx_IgnoresCancelledAndAdjacent(t *testing.T) {
	cancelled := reservationAt("10:00", "11:00")
	cancelled.Status = domain.ReservationCancelled

	inserted := false
	tx := &fakeReservationTx{
		activeFn: func(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error) {
			return []domain.Reservation{cancelled, reservationAt("09:00", "10:00")}, nil
		},
		insertFn: func(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
			inserted = true
			return r, nil
		},
	}

	_, err := CreateInTx(context.Background(), tx, reservationAt("10:00", "11:00"))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestCreateInTx_IdempotentReplay(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000042")
	stored := reservationAt("10:00", "11:00")
	stored.ID = id

	tx := &fakeReservationTx{
		byIDFn: func(ctx context.Context, got uuid.UUID) (domain.Reservation, error) {
			require.Equal(t, id, got)
			return stored, nil
		},
	}

	replay := reservationAt("10:00", "11:00")
	replay.ID = id
	got, err := CreateInTx(context.Background(), tx, replay)
	require.NoError(t, err)
	assert.Equal(t, stored, got)

	different := reservationAt("12:00", "13:00")
	different.ID = id
	_, err = CreateInTx(context.Background(), tx, different)
	require.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestReservationFilterMatch(t *testing.T) {
	r := reservationAt("10:00", "11:00")
	r.StaffID = "ana"

	assert.True(t, ReservationFilter{}.Match(r))
	assert.True(t, ReservationFilter{ServiceID: "padel", StaffID: "ana"}.Match(r))
	assert.False(t, ReservationFilter{StaffID: "bruno"}.Match(r))
	assert.False(t, ReservationFilter{Status: domain.ReservationCancelled}.Match(r))
	assert.True(t, ReservationFilter{Dates: DateRange{From: r.Date, To: r.Date}}.Match(r))
	assert.False(t, ReservationFilter{Dates: DateRange{From: r.Date.AddDays(1)}}.Match(r))
	assert.False(t, ReservationFilter{Dates: DateRange{To: r.Date.AddDays(-1)}}.Match(r))
}

func TestSortReservations(t *testing.T) {
	a := reservationAt("11:00", "12:00")
	b := reservationAt("09:00", "10:00")
	c := reservationAt("08:00", "09:00")
	c.Date = c.Date.AddDays(1)

	rs := []domain.Reservation{c, a, b}
	SortReservations(rs)
	assert.Equal(t, []domain.Reservation{b, a, c}, rs)
}
