package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/service/catalog"
	"reservo/backend/internal/service/schedule"
	"reservo/backend/internal/store/memory"
)

const sampleSeed = `
horizon_days: 21
week:
  monday:
    - {open: "09:00", close: "13:00"}
    - {open: "15:00", close: "19:00"}
  "2":
    - {open: "10:00", close: "14:00"}
  saturday: []
services:
  - id: padel
    name: Padel court
    kind: sport
    price_cents: 2500
    duration_minutes: 90
  - id: massage
    name: Massage
    duration_minutes: 60
    requires_staff: true
staff:
  - id: ana
    name: Ana
    services: [massage]
holidays:
  - {date: "2026-12-25", reason: Christmas}
special_days:
  - {date: "2026-12-31", reason: Short day}
`

func newApplier() (*Applier, *schedule.Service, *catalog.Service) {
	sched := schedule.NewService(memory.NewScheduleRepo(), domain.DefaultHorizon, zerolog.Nop())
	cat := catalog.NewService(memory.NewCatalogRepo(), zerolog.Nop())
	return NewApplier(sched, cat, zerolog.Nop()), sched, cat
}

func TestParse_ResolvesWeek(t *testing.T) {
	f, err := Parse([]byte(sampleSeed))
	require.NoError(t, err)

	days := f.Days()
	require.Len(t, days, 7)
	assert.Equal(t, domain.Monday, days[0].Weekday)
	assert.True(t, days[0].IsOpen)
	assert.Len(t, days[0].Blocks, 2)
	assert.True(t, days[1].IsOpen)
	assert.Equal(t, "10:00", days[1].Blocks[0].Open.String())
	assert.False(t, days[2].IsOpen, "weekdays missing from week are closed")
	assert.False(t, days[5].IsOpen, "saturday listed without blocks is closed")
}

func TestParse_NoWeekLeavesScheduleAlone(t *testing.T) {
	f, err := Parse([]byte("services: []\n"))
	require.NoError(t, err)
	assert.Empty(t, f.Days())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{name: "bad yaml", doc: "week: [", wantMsg: "parse seed file"},
		{name: "horizon", doc: "horizon_days: 0", wantMsg: "horizon_days"},
		{name: "weekday", doc: "week:\n  funday: []", wantMsg: "week.funday"},
		{name: "same weekday twice", doc: "week:\n  monday: []\n  \"1\": []", wantMsg: "listed twice"},
		{name: "block order", doc: "week:\n  monday:\n    - {open: \"12:00\", close: \"09:00\"}", wantMsg: "week.monday[0]"},
		{name: "overlapping blocks", doc: "week:\n  monday:\n    - {open: \"09:00\", close: \"12:00\"}\n    - {open: \"11:00\", close: \"13:00\"}", wantMsg: "week.monday"},
		{name: "service id", doc: "services:\n  - name: x\n    duration_minutes: 30", wantMsg: "services[0]: id is required"},
		{name: "duplicate service", doc: "services:\n  - {id: a, name: A, duration_minutes: 30}\n  - {id: a, name: B, duration_minutes: 30}", wantMsg: "services[1]: duplicate id"},
		{name: "duration", doc: "services:\n  - {id: a, name: A, duration_minutes: 45}", wantMsg: "duration_minutes"},
		{name: "kind", doc: "services:\n  - {id: a, name: A, duration_minutes: 30, kind: party}", wantMsg: "unknown kind"},
		{name: "staff service", doc: "staff:\n  - {id: ana, name: Ana, services: [ghost]}", wantMsg: "staff[0]: unknown service"},
		{name: "holiday date", doc: "holidays:\n  - {date: \"2026-02-30\"}", wantMsg: "holidays[0]"},
		{name: "date twice", doc: "holidays:\n  - {date: \"2026-12-25\"}\nspecial_days:\n  - {date: \"2026-12-25\"}", wantMsg: "already listed in holidays"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestApply_WritesEverything(t *testing.T) {
	ctx := context.Background()
	a, sched, cat := newApplier()

	f, err := Parse([]byte(sampleSeed))
	require.NoError(t, err)
	sum, err := a.Apply(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, Summary{Days: 7, Services: 2, Staff: 1, Overrides: 2}, sum)

	h, err := sched.Horizon(ctx)
	require.NoError(t, err)
	assert.Equal(t, 21, h)

	mon, err := sched.DaySchedule(ctx, domain.Monday)
	require.NoError(t, err)
	assert.Len(t, mon.Blocks, 2)

	o, ok, err := sched.OverrideFor(ctx, domain.MustParseDate("2026-12-25"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.OverrideClosed, o.Kind)
	assert.Equal(t, "Christmas", o.Reason)

	padel, err := cat.Service(ctx, "padel")
	require.NoError(t, err)
	assert.Equal(t, 90, padel.DurationMinutes)
	assert.Equal(t, domain.ServiceKindSport, padel.Kind)

	capable, err := cat.CapableStaff(ctx, "massage")
	require.NoError(t, err)
	require.Len(t, capable, 1)
	assert.Equal(t, "ana", capable[0].ID)
}

func TestApply_UpdatesExisting(t *testing.T) {
	ctx := context.Background()
	a, _, cat := newApplier()

	f, err := Parse([]byte(sampleSeed))
	require.NoError(t, err)
	_, err = a.Apply(ctx, f)
	require.NoError(t, err)

	f.Services[0].Name = "Padel court 1"
	f.Staff[0].Services = nil
	_, err = a.Apply(ctx, f)
	require.NoError(t, err)

	padel, err := cat.Service(ctx, "padel")
	require.NoError(t, err)
	assert.Equal(t, "Padel court 1", padel.Name)

	ana, err := cat.Staff(ctx, "ana")
	require.NoError(t, err)
	assert.Empty(t, ana.Services)

	services, err := cat.Services(ctx)
	require.NoError(t, err)
	assert.Len(t, services, 2)
}

func TestWatch_ReappliesOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSeed), 0o600))

	a, _, cat := newApplier()
	require.NoError(t, a.Watch(ctx, path, 10*time.Millisecond))

	_, err := cat.Service(ctx, "padel")
	require.NoError(t, err)

	updated := "services:\n  - {id: yoga, name: Yoga, duration_minutes: 60}\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		_, err := cat.Service(ctx, "yoga")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_MissingFile(t *testing.T) {
	a, _, _ := newApplier()
	err := a.Watch(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), time.Second)
	require.Error(t, err)
}
