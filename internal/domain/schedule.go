package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// DefaultHorizon is the number of days ahead a client may book when nothing
// else has been configured.
const DefaultHorizon = 30

// Weekday uses ISO-8601 numbering: 1=Monday ... 7=Sunday.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var ErrInvalidWeekday = errors.New("invalid weekday")

var weekdayNames = [...]string{"", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func WeekdayOf(d Date) Weekday {
	wd := d.midnight().Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(wd)
}

func ParseWeekday(s string) (Weekday, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		for i := 1; i < len(weekdayNames); i++ {
			if weekdayNames[i] == s {
				return Weekday(i), nil
			}
		}
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
	}
	wd := Weekday(n)
	if !wd.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWeekday, n)
	}
	return wd, nil
}

func (w Weekday) Valid() bool {
	return w >= Monday && w <= Sunday
}

func (w Weekday) String() string {
	if !w.Valid() {
		return "weekday(" + strconv.Itoa(int(w)) + ")"
	}
	return weekdayNames[w]
}

func Weekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

var ErrInvalidBlock = errors.New("invalid time block")

// TimeBlock is one contiguous open interval within a day.
type TimeBlock struct {
	Open  ClockTime `json:"open" yaml:"open"`
	Close ClockTime `json:"close" yaml:"close"`
}

func (b TimeBlock) Validate() error {
	if !b.Open.Valid() || !b.Close.Valid() {
		return fmt.Errorf("%w: %s-%s out of day range", ErrInvalidBlock, b.Open, b.Close)
	}
	if b.Open >= b.Close {
		return fmt.Errorf("%w: open %s must be before close %s", ErrInvalidBlock, b.Open, b.Close)
	}
	return nil
}

// DaySchedule is the recurring schedule of one weekday. Blocks are kept when
// IsOpen is false but are ignored for availability.
type DaySchedule struct {
	bun.BaseModel `bun:"table:day_schedules"`

	Weekday   Weekday     `bun:"weekday,pk" json:"weekday"`
	IsOpen    bool        `bun:"is_open,notnull" json:"isOpen"`
	Blocks    []TimeBlock `bun:"blocks,type:jsonb,notnull" json:"blocks"`
	UpdatedAt time.Time   `bun:"updated_at,notnull" json:"updatedAt"`
}

func (s *DaySchedule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		s.UpdatedAt = time.Now().UTC()
		if s.Blocks == nil {
			s.Blocks = []TimeBlock{}
		}
	}
	return nil
}

// Validate checks the weekday and every block. Overlaps are rejected here;
// the availability engine still tolerates overlapping data that reached
// storage by other paths.
func (s DaySchedule) Validate() error {
	if !s.Weekday.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidWeekday, int(s.Weekday))
	}
	for _, b := range s.Blocks {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	sorted := append([]TimeBlock(nil), s.Blocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Open < sorted[j].Open })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Open < sorted[i-1].Close {
			return fmt.Errorf("%w: %s-%s overlaps %s-%s", ErrInvalidBlock,
				sorted[i].Open, sorted[i].Close, sorted[i-1].Open, sorted[i-1].Close)
		}
	}
	return nil
}

// Clone returns a copy that shares no block storage with s.
func (s DaySchedule) Clone() DaySchedule {
	out := DaySchedule{
		Weekday:   s.Weekday,
		IsOpen:    s.IsOpen,
		UpdatedAt: s.UpdatedAt,
		Blocks:    make([]TimeBlock, len(s.Blocks)),
	}
	copy(out.Blocks, s.Blocks)
	return out
}

// ClosedDay is what an unconfigured weekday resolves to.
func ClosedDay(w Weekday) DaySchedule {
	return DaySchedule{Weekday: w, Blocks: []TimeBlock{}}
}

type OverrideKind string

const (
	OverrideClosed  OverrideKind = "closed"
	OverrideSpecial OverrideKind = "special"
)

var ErrInvalidOverrideKind = errors.New("invalid override kind")

func ParseOverrideKind(s string) (OverrideKind, error) {
	switch OverrideKind(s) {
	case OverrideClosed, OverrideSpecial:
		return OverrideKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOverrideKind, s)
	}
}

// DateOverride supersedes the weekly schedule for one date. A special override
// carries no hours of its own: it opens the day using the weekday's blocks.
type DateOverride struct {
	bun.BaseModel `bun:"table:date_overrides"`

	Date      Date         `bun:"date,pk,type:date" json:"date"`
	Kind      OverrideKind `bun:"kind,notnull" json:"kind"`
	Reason    string       `bun:"reason,notnull" json:"reason,omitempty"`
	CreatedAt time.Time    `bun:"created_at,notnull" json:"createdAt"`
}

func (o *DateOverride) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BookingSettings is the single-row scalar configuration of the schedule.
type BookingSettings struct {
	bun.BaseModel `bun:"table:booking_settings"`

	ID          int       `bun:"id,pk"`
	HorizonDays int       `bun:"horizon_days,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}
