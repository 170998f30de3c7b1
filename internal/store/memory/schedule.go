package memory

import (
	"context"
	"sort"
	"sync"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

// ScheduleRepo keeps the weekly schedule, overrides and horizon in memory.
type ScheduleRepo struct {
	mu        sync.RWMutex
	days      map[domain.Weekday]domain.DaySchedule
	overrides map[domain.Date]domain.DateOverride
	horizon   *int
}

func NewScheduleRepo() *ScheduleRepo {
	return &ScheduleRepo{
		days:      make(map[domain.Weekday]domain.DaySchedule),
		overrides: make(map[domain.Date]domain.DateOverride),
	}
}

func (r *ScheduleRepo) DaySchedule(ctx context.Context, weekday domain.Weekday) (domain.DaySchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	day, ok := r.days[weekday]
	if !ok {
		return domain.DaySchedule{}, store.ErrNotFound
	}
	return day.Clone(), nil
}

func (r *ScheduleRepo) DaySchedules(ctx context.Context) ([]domain.DaySchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.DaySchedule, 0, len(r.days))
	for _, day := range r.days {
		out = append(out, day.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func (r *ScheduleRepo) SaveDaySchedule(ctx context.Context, day domain.DaySchedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	day = day.Clone()
	day.UpdatedAt = now()
	r.days[day.Weekday] = day
	return nil
}

func (r *ScheduleRepo) Override(ctx context.Context, date domain.Date) (domain.DateOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.overrides[date]
	if !ok {
		return domain.DateOverride{}, store.ErrNotFound
	}
	return o, nil
}

func (r *ScheduleRepo) Overrides(ctx context.Context, rng store.DateRange) ([]domain.DateOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.DateOverride, 0, len(r.overrides))
	for _, o := range r.overrides {
		if rng.Contains(o.Date) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *ScheduleRepo) UpsertOverride(ctx context.Context, o domain.DateOverride) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now()
	}
	r.overrides[o.Date] = o
	return nil
}

func (r *ScheduleRepo) DeleteOverride(ctx context.Context, date domain.Date) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overrides, date)
	return nil
}

func (r *ScheduleRepo) Horizon(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.horizon == nil {
		return 0, store.ErrNotFound
	}
	return *r.horizon, nil
}

func (r *ScheduleRepo) SaveHorizon(ctx context.Context, days int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.horizon = &days
	return nil
}
