package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "reservo.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reservo.db")
	ctx := context.Background()

	s, err := Open(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Schedule.SaveHorizon(ctx, 10))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	h, err := s.Schedule.Horizon(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, h)
}

func TestScheduleRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.Schedule

	_, err := repo.DaySchedule(ctx, domain.Tuesday)
	require.ErrorIs(t, err, store.ErrNotFound)

	day := domain.DaySchedule{
		Weekday: domain.Tuesday,
		IsOpen:  true,
		Blocks: []domain.TimeBlock{
			{Open: domain.MustParseClockTime("09:00"), Close: domain.MustParseClockTime("12:00")},
			{Open: domain.MustParseClockTime("14:00"), Close: domain.MustParseClockTime("18:00")},
		},
	}
	require.NoError(t, repo.SaveDaySchedule(ctx, day))
	require.NoError(t, repo.SaveDaySchedule(ctx, domain.DaySchedule{Weekday: domain.Monday}))

	got, err := repo.DaySchedule(ctx, domain.Tuesday)
	require.NoError(t, err)
	assert.True(t, got.IsOpen)
	assert.Equal(t, day.Blocks, got.Blocks)
	assert.False(t, got.UpdatedAt.IsZero())

	all, err := repo.DaySchedules(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.Monday, all[0].Weekday)
	assert.Empty(t, all[0].Blocks)

	d1 := domain.MustParseDate("2026-05-01")
	d2 := domain.MustParseDate("2026-04-20")
	require.NoError(t, repo.UpsertOverride(ctx, domain.DateOverride{Date: d1, Kind: domain.OverrideClosed, Reason: "holiday"}))
	require.NoError(t, repo.UpsertOverride(ctx, domain.DateOverride{Date: d2, Kind: domain.OverrideClosed}))
	require.NoError(t, repo.UpsertOverride(ctx, domain.DateOverride{Date: d1, Kind: domain.OverrideSpecial}))

	o, err := repo.Override(ctx, d1)
	require.NoError(t, err)
	assert.Equal(t, domain.OverrideSpecial, o.Kind)
	assert.Equal(t, d1, o.Date)

	overrides, err := repo.Overrides(ctx, store.DateRange{})
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, d2, overrides[0].Date)

	overrides, err = repo.Overrides(ctx, store.DateRange{To: d2})
	require.NoError(t, err)
	require.Len(t, overrides, 1)

	require.NoError(t, repo.DeleteOverride(ctx, d1))
	require.NoError(t, repo.DeleteOverride(ctx, d1))
	_, err = repo.Override(ctx, d1)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = repo.Horizon(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, repo.SaveHorizon(ctx, 0))
	h, err := repo.Horizon(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, h)
}

func TestCatalogRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.Catalog

	svc, err := repo.CreateService(ctx, domain.Service{ID: "cut", Name: "Cut", Kind: domain.ServiceKindService, DurationMinutes: 30, Active: true})
	require.NoError(t, err)
	_, err = repo.CreateService(ctx, svc)
	require.ErrorIs(t, err, store.ErrConflict)
	_, err = repo.CreateService(ctx, domain.Service{ID: "color", Name: "Color", Kind: domain.ServiceKindService, DurationMinutes: 90, PriceCents: 4500})
	require.NoError(t, err)

	svc.Name = "Haircut"
	svc.RequiresStaff = true
	updated, err := repo.UpdateService(ctx, svc)
	require.NoError(t, err)
	assert.Equal(t, "Haircut", updated.Name)
	assert.True(t, updated.RequiresStaff)

	_, err = repo.UpdateService(ctx, domain.Service{ID: "ghost", Name: "x", DurationMinutes: 30})
	require.ErrorIs(t, err, store.ErrNotFound)

	services, err := repo.Services(ctx)
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, "Color", services[0].Name)
	assert.Equal(t, int64(4500), services[0].PriceCents)

	m, err := repo.CreateStaff(ctx, domain.StaffMember{ID: "ana", Name: "Ana", Active: true, Services: []string{"color"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"color"}, m.Services)

	m, err = repo.AssignService(ctx, "ana", "cut")
	require.NoError(t, err)
	assert.Equal(t, []string{"color", "cut"}, m.Services)

	require.NoError(t, repo.DeleteService(ctx, "cut"))
	require.ErrorIs(t, repo.DeleteService(ctx, "cut"), store.ErrNotFound)

	m, err = repo.Staff(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, []string{"color"}, m.Services)

	_, err = repo.AssignService(ctx, "ana", "cut")
	require.ErrorIs(t, err, store.ErrUnknownService)
	_, err = repo.UpdateStaff(ctx, domain.StaffMember{ID: "ana", Name: "Ana", Services: []string{"color", "cut"}})
	require.ErrorIs(t, err, store.ErrUnknownService)
	_, err = repo.CreateStaff(ctx, domain.StaffMember{ID: "leo", Name: "Leo", Services: []string{"cut"}})
	require.ErrorIs(t, err, store.ErrUnknownService)
	_, err = repo.Staff(ctx, "leo")
	require.ErrorIs(t, err, store.ErrNotFound)

	m, err = repo.UnassignService(ctx, "ana", "color")
	require.NoError(t, err)
	assert.Empty(t, m.Services)

	m.Phone = "+34 600 000 000"
	m, err = repo.UpdateStaff(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, "+34 600 000 000", m.Phone)

	_, err = repo.AssignService(ctx, "ghost", "color")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, repo.DeleteStaff(ctx, "ana"))
	require.ErrorIs(t, repo.DeleteStaff(ctx, "ana"), store.ErrNotFound)
	staff, err := repo.StaffMembers(ctx)
	require.NoError(t, err)
	assert.Empty(t, staff)
}

func newReservation(staffID, start, end string) domain.Reservation {
	return domain.Reservation{
		ServiceID:  "court",
		StaffID:    staffID,
		Date:       domain.MustParseDate("2026-04-07"),
		Start:      domain.MustParseClockTime(start),
		End:        domain.MustParseClockTime(end),
		ClientName: "Lucia",
		Status:     domain.ReservationConfirmed,
	}
}

func TestReservationRepo_ConcurrentCreateSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Reservations.CreateReservation(ctx, newReservation("", "10:00", "11:00"))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, store.ErrConflict)
	}
	assert.Equal(t, 1, wins)
}

func TestReservationRepo_LifeCycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.Reservations

	a, err := repo.CreateReservation(ctx, newReservation("ana", "10:00", "11:00"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, a.ID)

	_, err = repo.CreateReservation(ctx, newReservation("ana", "10:30", "11:30"))
	require.ErrorIs(t, err, store.ErrConflict)

	// different staff member, same time
	_, err = repo.CreateReservation(ctx, newReservation("bruno", "10:30", "11:30"))
	require.NoError(t, err)

	got, err := repo.Reservation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Date, got.Date)
	assert.Equal(t, a.Start, got.Start)
	assert.Equal(t, "ana", got.StaffID)
	assert.Nil(t, got.CancelledAt)

	at := time.Date(2026, 4, 6, 12, 0, 0, 0, time.UTC)
	cancelled, err := repo.CancelReservation(ctx, a.ID, at)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, cancelled.Status)

	got, err = repo.Reservation(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CancelledAt)
	assert.True(t, at.Equal(*got.CancelledAt))

	_, err = repo.CancelReservation(ctx, a.ID, at)
	require.ErrorIs(t, err, store.ErrConflict)
	_, err = repo.CancelReservation(ctx, uuid.New(), at)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = repo.CreateReservation(ctx, newReservation("ana", "10:00", "11:00"))
	require.NoError(t, err)

	confirmed, err := repo.Reservations(ctx, store.ReservationFilter{StaffID: "ana", Status: domain.ReservationConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)

	all, err := repo.Reservations(ctx, store.ReservationFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReservationRepo_IdempotentReplay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := newReservation("", "09:00", "10:00")
	r.ID = uuid.MustParse("00000000-0000-0000-0000-000000000042")

	first, err := s.Reservations.CreateReservation(ctx, r)
	require.NoError(t, err)
	again, err := s.Reservations.CreateReservation(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	r.ClientName = "someone else"
	_, err = s.Reservations.CreateReservation(ctx, r)
	require.ErrorIs(t, err, store.ErrIdempotencyConflict)
}

func TestReservationQuery(t *testing.T) {
	q, args := reservationQuery(store.ReservationFilter{
		Dates:     store.DateRange{From: domain.MustParseDate("2026-04-01"), To: domain.MustParseDate("2026-04-30")},
		ServiceID: "court",
		Limit:     10,
	})
	assert.Contains(t, q, "WHERE date >= ? AND date <= ? AND service_id = ?")
	assert.Contains(t, q, "LIMIT ?")
	assert.Equal(t, []any{"2026-04-01", "2026-04-30", "court", 10}, args)
}
