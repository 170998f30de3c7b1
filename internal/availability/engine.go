package availability

import (
	"context"
	"errors"
	"fmt"

	"reservo/backend/internal/domain"
)

// MaxRangeDays caps a Days query.
const MaxRangeDays = 62

var ErrRangeTooLarge = errors.New("date range too large")

// ScheduleReader is the read side of the schedule the engine needs.
// DaySchedule reports an unconfigured weekday as a closed day, not an error.
type ScheduleReader interface {
	DaySchedule(ctx context.Context, weekday domain.Weekday) (domain.DaySchedule, error)
	OverrideFor(ctx context.Context, date domain.Date) (domain.DateOverride, bool, error)
	Horizon(ctx context.Context) (int, error)
}

type DayStatus string

const (
	DayOpen         DayStatus = "open"
	DayClosed       DayStatus = "closed"
	DayOutOfHorizon DayStatus = "out_of_horizon"
)

// Day is the computed availability of one date for one duration.
type Day struct {
	Date     domain.Date         `json:"date"`
	Weekday  domain.Weekday      `json:"weekday"`
	Status   DayStatus           `json:"status"`
	Override domain.OverrideKind `json:"override,omitempty"`
	Slots    []domain.TimeSlot   `json:"slots"`
}

// Engine computes slots from the current schedule on every call. It keeps no
// state of its own and is safe for concurrent use.
type Engine struct {
	schedule ScheduleReader
}

func NewEngine(schedule ScheduleReader) *Engine {
	return &Engine{schedule: schedule}
}

// Slots returns the slots of svc on date. Dates outside the horizon and closed
// days yield an empty result, not an error.
func (e *Engine) Slots(ctx context.Context, svc domain.Service, date, today domain.Date) ([]domain.TimeSlot, error) {
	day, err := e.Day(ctx, svc.DurationMinutes, date, today)
	if err != nil {
		return nil, err
	}
	return day.Slots, nil
}

func (e *Engine) Day(ctx context.Context, durationMinutes int, date, today domain.Date) (Day, error) {
	horizon, err := e.schedule.Horizon(ctx)
	if err != nil {
		return Day{}, fmt.Errorf("load horizon: %w", err)
	}
	return e.day(ctx, durationMinutes, date, today, horizon)
}

// Days computes every date in [from, to].
func (e *Engine) Days(ctx context.Context, durationMinutes int, from, to, today domain.Date) ([]Day, error) {
	if to.Before(from) {
		return []Day{}, nil
	}
	if n := from.DaysUntil(to) + 1; n > MaxRangeDays {
		return nil, fmt.Errorf("%w: %d days, max %d", ErrRangeTooLarge, n, MaxRangeDays)
	}
	horizon, err := e.schedule.Horizon(ctx)
	if err != nil {
		return nil, fmt.Errorf("load horizon: %w", err)
	}

	out := make([]Day, 0, from.DaysUntil(to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		day, err := e.day(ctx, durationMinutes, d, today, horizon)
		if err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return out, nil
}

func (e *Engine) day(ctx context.Context, durationMinutes int, date, today domain.Date, horizon int) (Day, error) {
	day := Day{Date: date, Weekday: date.Weekday(), Status: DayClosed, Slots: []domain.TimeSlot{}}

	if !InHorizon(date, today, horizon) {
		day.Status = DayOutOfHorizon
		return day, nil
	}

	override, hasOverride, err := e.schedule.OverrideFor(ctx, date)
	if err != nil {
		return Day{}, fmt.Errorf("load override %s: %w", date, err)
	}
	if hasOverride {
		day.Override = override.Kind
		if override.Kind == domain.OverrideClosed {
			return day, nil
		}
	}

	schedule, err := e.schedule.DaySchedule(ctx, day.Weekday)
	if err != nil {
		return Day{}, fmt.Errorf("load %s schedule: %w", day.Weekday, err)
	}
	// special opens the day regardless of the weekday's flag
	open := schedule.IsOpen || (hasOverride && override.Kind == domain.OverrideSpecial)
	if !open {
		return day, nil
	}

	day.Status = DayOpen
	day.Slots = GenerateSlots(schedule.Blocks, durationMinutes)
	return day, nil
}
