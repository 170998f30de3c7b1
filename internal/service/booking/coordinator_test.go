package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/backend/internal/availability"
	"reservo/backend/internal/domain"
	"reservo/backend/internal/events"
	"reservo/backend/internal/lock"
	"reservo/backend/internal/service/catalog"
	"reservo/backend/internal/service/schedule"
	"reservo/backend/internal/store"
	"reservo/backend/internal/store/memory"
)

// 2026-04-06 is a Monday.
var testNow = time.Date(2026, 4, 6, 7, 0, 0, 0, time.UTC)

const tuesday = "2026-04-07"

type fixture struct {
	coord    *Coordinator
	catalog  *catalog.Service
	schedule *schedule.Service
	repo     *memory.ReservationRepo
	bus      *events.Bus
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	sched := schedule.NewService(memory.NewScheduleRepo(), domain.DefaultHorizon, zerolog.Nop())
	for _, w := range []domain.Weekday{domain.Monday, domain.Tuesday, domain.Wednesday, domain.Thursday, domain.Friday} {
		_, err := sched.SetDaySchedule(ctx, w, domain.DaySchedule{
			IsOpen: true,
			Blocks: []domain.TimeBlock{{Open: domain.MustParseClockTime("09:00"), Close: domain.MustParseClockTime("13:00")}},
		})
		require.NoError(t, err)
	}

	cat := catalog.NewService(memory.NewCatalogRepo(), zerolog.Nop())
	_, err := cat.CreateService(ctx, catalog.ServiceInput{ID: "court", Name: "Court", DurationMinutes: 60})
	require.NoError(t, err)
	_, err = cat.CreateService(ctx, catalog.ServiceInput{ID: "massage", Name: "Massage", DurationMinutes: 60, RequiresStaff: true})
	require.NoError(t, err)
	_, err = cat.CreateStaff(ctx, catalog.StaffInput{ID: "ana", Name: "Ana", Services: []string{"massage"}})
	require.NoError(t, err)
	_, err = cat.CreateStaff(ctx, catalog.StaffInput{ID: "bruno", Name: "Bruno", Services: []string{"massage"}})
	require.NoError(t, err)
	_, err = cat.CreateStaff(ctx, catalog.StaffInput{ID: "carla", Name: "Carla"})
	require.NoError(t, err)

	f := &fixture{
		catalog:  cat,
		schedule: sched,
		repo:     memory.NewReservationRepo(),
		bus:      events.NewBus(),
		now:      testNow,
	}
	f.coord = NewCoordinator(
		cat,
		availability.NewEngine(sched),
		f.repo,
		lock.NewKeyedMutex(),
		f.bus,
		zerolog.Nop(),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func starts(slots []domain.TimeSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.String())
	}
	return out
}

func courtAt(start string) CreateInput {
	return CreateInput{ServiceID: "court", Date: tuesday, Start: start, ClientName: "Lucia"}
}

func TestAvailableSlots_RemovesBookedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day, err := f.coord.AvailableSlots(ctx, SlotQuery{ServiceID: "court", Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, availability.DayOpen, day.Status)
	assert.Equal(t, []string{"09:00", "10:00", "11:00", "12:00"}, starts(day.Slots))

	res, err := f.coord.CreateReservation(ctx, courtAt("10:00"))
	require.NoError(t, err)
	assert.Equal(t, "11:00", res.End.String())
	assert.Equal(t, domain.ReservationConfirmed, res.Status)

	day, err = f.coord.AvailableSlots(ctx, SlotQuery{ServiceID: "court", Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00", "12:00"}, starts(day.Slots))
}

func TestAvailableSlots_DropsStartedSlotsToday(t *testing.T) {
	f := newFixture(t)
	f.now = time.Date(2026, 4, 6, 10, 30, 0, 0, time.UTC)

	day, err := f.coord.AvailableSlots(context.Background(), SlotQuery{ServiceID: "court", Date: "2026-04-06"})
	require.NoError(t, err)
	assert.Equal(t, []string{"11:00", "12:00"}, starts(day.Slots))
}

func TestAvailableSlots_ClosedAndOutOfHorizonAreEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day, err := f.coord.AvailableSlots(ctx, SlotQuery{ServiceID: "court", Date: "2026-04-12"})
	require.NoError(t, err)
	assert.Equal(t, availability.DayClosed, day.Status)
	assert.Empty(t, day.Slots)

	day, err = f.coord.AvailableSlots(ctx, SlotQuery{ServiceID: "court", Date: "2026-06-02"})
	require.NoError(t, err)
	assert.Equal(t, availability.DayOutOfHorizon, day.Status)
	assert.Empty(t, day.Slots)

	_, err = f.coord.CreateReservation(ctx, CreateInput{ServiceID: "court", Date: "2026-06-02", Start: "09:00", ClientName: "x"})
	require.ErrorIs(t, err, ErrSlotNoLongerAvailable)
}

func TestAvailableSlots_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.AvailableSlots(ctx, SlotQuery{ServiceID: "court", Date: "07/04/2026"})
	require.ErrorIs(t, err, ErrInvalidDate)

	_, err = f.coord.AvailableSlots(ctx, SlotQuery{ServiceID: "nope", Date: tuesday})
	require.ErrorIs(t, err, ErrServiceNotFound)

	_, err = f.coord.AvailableSlots(ctx, SlotQuery{ServiceID: "massage", Date: tuesday, StaffID: "ghost"})
	require.ErrorIs(t, err, ErrStaffNotFound)
}

func TestCreateReservation_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 24
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := courtAt("09:00")
			in.ClientName = fmt.Sprintf("client-%d", i)
			_, err := f.coord.CreateReservation(ctx, in)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			if errors.Is(err, ErrSlotNoLongerAvailable) {
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, conflicts)

	rs, err := f.repo.Reservations(ctx, store.ReservationFilter{Status: domain.ReservationConfirmed})
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}

func TestCreateReservation_RejectsMisalignedStart(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.CreateReservation(context.Background(), courtAt("09:15"))
	require.ErrorIs(t, err, ErrSlotNoLongerAvailable)

	_, err = f.coord.CreateReservation(context.Background(), courtAt("9am"))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestCreateReservation_DurationLongerThanDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.catalog.CreateService(ctx, catalog.ServiceInput{ID: "retreat", Name: "Retreat", DurationMinutes: math.MaxInt})
	require.NoError(t, err)

	day, err := f.coord.AvailableSlots(ctx, SlotQuery{ServiceID: "retreat", Date: tuesday})
	require.NoError(t, err)
	assert.Empty(t, day.Slots)

	_, err = f.coord.CreateReservation(ctx, CreateInput{ServiceID: "retreat", Date: tuesday, Start: "09:00", ClientName: "Lucia"})
	require.ErrorIs(t, err, ErrSlotNoLongerAvailable)

	all, err := f.repo.Reservations(ctx, store.ReservationFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateReservation_StaffRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	massage := func(staff string) CreateInput {
		return CreateInput{ServiceID: "massage", StaffID: staff, Date: tuesday, Start: "09:00", ClientName: "Lucia"}
	}

	_, err := f.coord.CreateReservation(ctx, massage(""))
	require.ErrorIs(t, err, ErrStaffRequired)

	_, err = f.coord.CreateReservation(ctx, massage("carla"))
	require.ErrorIs(t, err, ErrStaffNotCapable)

	_, err = f.coord.CreateReservation(ctx, massage("ana"))
	require.NoError(t, err)

	// another staff member is still free at the same time
	_, err = f.coord.CreateReservation(ctx, massage("bruno"))
	require.NoError(t, err)

	_, err = f.coord.CreateReservation(ctx, massage("ana"))
	require.ErrorIs(t, err, ErrSlotNoLongerAvailable)

	day, err := f.coord.AvailableSlots(ctx, SlotQuery{ServiceID: "massage", Date: tuesday, StaffID: "ana"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00", "12:00"}, starts(day.Slots))

	// without a staff filter every reservation of the service blocks
	day, err = f.coord.AvailableSlots(ctx, SlotQuery{ServiceID: "massage", Date: tuesday})
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00", "12:00"}, starts(day.Slots))
}

func TestCreateReservation_StaffIgnoredForServiceWithoutStaff(t *testing.T) {
	f := newFixture(t)
	res, err := f.coord.CreateReservation(context.Background(), CreateInput{
		ServiceID: "court", StaffID: "ana", Date: tuesday, Start: "09:00", ClientName: "Lucia",
	})
	require.NoError(t, err)
	assert.Empty(t, res.StaffID)
}

func TestCreateReservation_InactiveService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inactive := false
	_, err := f.catalog.UpdateService(ctx, "court", catalog.ServiceInput{Name: "Court", DurationMinutes: 60, Active: &inactive})
	require.NoError(t, err)

	_, err = f.coord.CreateReservation(ctx, courtAt("09:00"))
	require.ErrorIs(t, err, ErrServiceInactive)
}

func TestCreateReservation_ClosedOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.schedule.AddOverride(ctx, tuesday, domain.OverrideClosed, "maintenance")
	require.NoError(t, err)

	_, err = f.coord.CreateReservation(ctx, courtAt("09:00"))
	require.ErrorIs(t, err, ErrSlotNoLongerAvailable)
}

func TestCreateReservation_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := courtAt("11:00")
	in.IdempotencyKey = "req-1"
	first, err := f.coord.CreateReservation(ctx, in)
	require.NoError(t, err)

	again, err := f.coord.CreateReservation(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other := courtAt("12:00")
	other.IdempotencyKey = "req-1"
	_, err = f.coord.CreateReservation(ctx, other)
	require.ErrorIs(t, err, store.ErrIdempotencyConflict)

	rs, err := f.coord.Reservations(ctx, ListInput{})
	require.NoError(t, err)
	assert.Len(t, rs, 1)
}

func TestCancelReservation_FreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.coord.CreateReservation(ctx, courtAt("09:00"))
	require.NoError(t, err)

	cancelled, err := f.coord.CancelReservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.coord.CancelReservation(ctx, res.ID)
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = f.coord.CancelReservation(ctx, uuid.New())
	require.ErrorIs(t, err, ErrReservationNotFound)

	_, err = f.coord.CreateReservation(ctx, courtAt("09:00"))
	require.NoError(t, err)

	got, err := f.coord.Reservation(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, got.Status)
}

func TestReservations_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.CreateReservation(ctx, courtAt("09:00"))
	require.NoError(t, err)
	_, err = f.coord.CreateReservation(ctx, CreateInput{ServiceID: "court", Date: "2026-04-08", Start: "09:00", ClientName: "Lucia"})
	require.NoError(t, err)

	rs, err := f.coord.Reservations(ctx, ListInput{From: "2026-04-08"})
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "2026-04-08", rs[0].Date.String())

	_, err = f.coord.Reservations(ctx, ListInput{Status: "pending"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestAvailableDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.CreateReservation(ctx, courtAt("12:00"))
	require.NoError(t, err)

	days, err := f.coord.AvailableDays(ctx, "court", "2026-04-06", "2026-04-12", "")
	require.NoError(t, err)
	require.Len(t, days, 7)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, starts(days[1].Slots))
	assert.Equal(t, availability.DayClosed, days[6].Status)

	_, err = f.coord.AvailableDays(ctx, "court", "2026-04-06", "2026-12-31", "")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestEventsPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var got []string
	f.bus.Subscribe("", func(ctx context.Context, e events.Envelope) error {
		got = append(got, e.Type)
		return nil
	})

	res, err := f.coord.CreateReservation(ctx, courtAt("09:00"))
	require.NoError(t, err)
	_, err = f.coord.CancelReservation(ctx, res.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{events.TypeReservationCreated, events.TypeReservationCancelled}, got)
}

func TestEventPublishFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.bus.Subscribe(events.TypeReservationCreated, func(ctx context.Context, e events.Envelope) error {
		return fmt.Errorf("broker down")
	})

	_, err := f.coord.CreateReservation(context.Background(), courtAt("09:00"))
	require.NoError(t, err)
}
