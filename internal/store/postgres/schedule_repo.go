package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

type ScheduleRepo struct {
	db *bun.DB
}

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

func (r *ScheduleRepo) DaySchedule(ctx context.Context, weekday domain.Weekday) (domain.DaySchedule, error) {
	var day domain.DaySchedule
	err := r.db.NewSelect().
		Model(&day).
		Where("weekday = ?", int(weekday)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.DaySchedule{}, notFound(err)
	}
	return day, nil
}

func (r *ScheduleRepo) DaySchedules(ctx context.Context) ([]domain.DaySchedule, error) {
	rows := make([]domain.DaySchedule, 0, 7)
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("weekday ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) SaveDaySchedule(ctx context.Context, day domain.DaySchedule) error {
	if day.Blocks == nil {
		day.Blocks = []domain.TimeBlock{}
	}
	_, err := r.db.NewInsert().
		Model(&day).
		On("CONFLICT (weekday) DO UPDATE").
		Set("is_open = EXCLUDED.is_open").
		Set("blocks = EXCLUDED.blocks").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *ScheduleRepo) Override(ctx context.Context, date domain.Date) (domain.DateOverride, error) {
	var o domain.DateOverride
	err := r.db.NewSelect().
		Model(&o).
		Where("date = ?", date).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.DateOverride{}, notFound(err)
	}
	return o, nil
}

func (r *ScheduleRepo) Overrides(ctx context.Context, rng store.DateRange) ([]domain.DateOverride, error) {
	rows := make([]domain.DateOverride, 0)
	err := r.db.NewSelect().
		Model(&rows).
		Apply(dateRange("date", rng)).
		OrderExpr("date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) UpsertOverride(ctx context.Context, o domain.DateOverride) error {
	_, err := r.db.NewInsert().
		Model(&o).
		On("CONFLICT (date) DO UPDATE").
		Set("kind = EXCLUDED.kind").
		Set("reason = EXCLUDED.reason").
		Exec(ctx)
	return err
}

func (r *ScheduleRepo) DeleteOverride(ctx context.Context, date domain.Date) error {
	_, err := r.db.NewDelete().
		Model((*domain.DateOverride)(nil)).
		Where("date = ?", date).
		Exec(ctx)
	return err
}

func (r *ScheduleRepo) Horizon(ctx context.Context) (int, error) {
	var s domain.BookingSettings
	err := r.db.NewSelect().
		Model(&s).
		Where("id = 1").
		Scan(ctx)
	if err != nil {
		return 0, notFound(err)
	}
	return s.HorizonDays, nil
}

func (r *ScheduleRepo) SaveHorizon(ctx context.Context, days int) error {
	s := domain.BookingSettings{ID: 1, HorizonDays: days, UpdatedAt: time.Now().UTC()}
	_, err := r.db.NewInsert().
		Model(&s).
		On("CONFLICT (id) DO UPDATE").
		Set("horizon_days = EXCLUDED.horizon_days").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// dateRange restricts column to rng. Zero bounds are open.
func dateRange(column string, rng store.DateRange) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if !rng.From.IsZero() {
			q = q.Where("? >= ?", bun.Ident(column), rng.From)
		}
		if !rng.To.IsZero() {
			q = q.Where("? <= ?", bun.Ident(column), rng.To)
		}
		return q
	}
}
