package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(open, close string) TimeBlock {
	return TimeBlock{Open: MustParseClockTime(open), Close: MustParseClockTime(close)}
}

func TestDayScheduleValidate(t *testing.T) {
	tests := []struct {
		name    string
		day     DaySchedule
		wantErr error
	}{
		{
			name: "two disjoint blocks",
			day:  DaySchedule{Weekday: Monday, IsOpen: true, Blocks: []TimeBlock{block("14:00", "18:00"), block("09:00", "12:00")}},
		},
		{
			name: "touching blocks",
			day:  DaySchedule{Weekday: Monday, IsOpen: true, Blocks: []TimeBlock{block("09:00", "12:00"), block("12:00", "13:00")}},
		},
		{
			name: "closed day keeps blocks",
			day:  DaySchedule{Weekday: Sunday, Blocks: []TimeBlock{block("09:00", "12:00")}},
		},
		{
			name:    "bad weekday",
			day:     DaySchedule{Weekday: 8},
			wantErr: ErrInvalidWeekday,
		},
		{
			name:    "open equals close",
			day:     DaySchedule{Weekday: Monday, Blocks: []TimeBlock{block("09:00", "09:00")}},
			wantErr: ErrInvalidBlock,
		},
		{
			name:    "close before open",
			day:     DaySchedule{Weekday: Monday, Blocks: []TimeBlock{block("18:00", "09:00")}},
			wantErr: ErrInvalidBlock,
		},
		{
			name:    "overlap",
			day:     DaySchedule{Weekday: Monday, Blocks: []TimeBlock{block("09:00", "12:00"), block("11:00", "13:00")}},
			wantErr: ErrInvalidBlock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.day.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDayScheduleClone_DoesNotShareBlocks(t *testing.T) {
	orig := DaySchedule{Weekday: Friday, IsOpen: true, Blocks: []TimeBlock{block("09:00", "12:00")}}
	c := orig.Clone()
	c.Blocks[0].Close = MustParseClockTime("13:00")

	assert.Equal(t, "12:00", orig.Blocks[0].Close.String())
}

func TestParseWeekday(t *testing.T) {
	wd, err := ParseWeekday("7")
	require.NoError(t, err)
	assert.Equal(t, Sunday, wd)

	wd, err = ParseWeekday("tuesday")
	require.NoError(t, err)
	assert.Equal(t, Tuesday, wd)

	_, err = ParseWeekday("0")
	require.ErrorIs(t, err, ErrInvalidWeekday)
	_, err = ParseWeekday("funday")
	require.ErrorIs(t, err, ErrInvalidWeekday)
}

func TestCapabilitySetHelpers(t *testing.T) {
	set := WithService(nil, "a")
	set = WithService(set, "b")
	set = WithService(set, "a")
	assert.Equal(t, []string{"a", "b"}, set)

	m := StaffMember{Services: set}
	assert.True(t, m.CanPerform("b"))
	assert.False(t, m.CanPerform("c"))

	assert.Equal(t, []string{"b"}, WithoutService(set, "a"))
	assert.Equal(t, []string{"a", "b"}, WithoutService(set, "zzz"))
}

func TestSlotKeyString(t *testing.T) {
	d := MustParseDate("2026-02-02")
	assert.Equal(t, "reservation:svc:-:2026-02-02", SlotKey{ServiceID: "svc", Date: d}.String())
	assert.Equal(t, "reservation:svc:ana:2026-02-02", SlotKey{ServiceID: "svc", StaffID: "ana", Date: d}.String())
}

func TestSlotKeyString_DistinctKeysNeverCollide(t *testing.T) {
	d := MustParseDate("2026-02-02")
	keys := []SlotKey{
		{ServiceID: "a:b", StaffID: "c", Date: d},
		{ServiceID: "a", StaffID: "b:c", Date: d},
		{ServiceID: "a", Date: d},
		{ServiceID: "a", StaffID: "-", Date: d},
		{ServiceID: "a", StaffID: "%2D", Date: d},
		{ServiceID: "a", StaffID: "%3A", Date: d},
		{ServiceID: "a", StaffID: ":", Date: d},
	}
	seen := map[string]SlotKey{}
	for _, k := range keys {
		s := k.String()
		prev, dup := seen[s]
		require.False(t, dup, "%+v and %+v both render %s", prev, k, s)
		seen[s] = k
	}
	assert.Equal(t, "reservation:a%3Ab:c:2026-02-02", keys[0].String())
}
