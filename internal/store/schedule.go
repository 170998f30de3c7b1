package store

import (
	"context"

	"reservo/backend/internal/domain"
)

// DateRange bounds a date query. Zero bounds are open.
type DateRange struct {
	From domain.Date
	To   domain.Date
}

func (r DateRange) Contains(d domain.Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

type ScheduleRepository interface {
	// DaySchedule returns ErrNotFound for a weekday that was never configured.
	DaySchedule(ctx context.Context, weekday domain.Weekday) (domain.DaySchedule, error)
	DaySchedules(ctx context.Context) ([]domain.DaySchedule, error)
	SaveDaySchedule(ctx context.Context, day domain.DaySchedule) error

	// Override returns ErrNotFound when the date has no override.
	Override(ctx context.Context, date domain.Date) (domain.DateOverride, error)
	// Overrides returns the overrides within r ordered by date.
	Overrides(ctx context.Context, r DateRange) ([]domain.DateOverride, error)
	// UpsertOverride replaces any override already stored for the same date.
	UpsertOverride(ctx context.Context, o domain.DateOverride) error
	// DeleteOverride is a no-op when the date has no override.
	DeleteOverride(ctx context.Context, date domain.Date) error

	// Horizon returns ErrNotFound until a horizon has been saved.
	Horizon(ctx context.Context) (int, error)
	SaveHorizon(ctx context.Context, days int) error
}
