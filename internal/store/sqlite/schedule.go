package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

type ScheduleRepo struct {
	db *sql.DB
}

const dayScheduleColumns = `weekday, is_open, blocks, updated_at`

func scanDaySchedule(row rowScanner) (domain.DaySchedule, error) {
	var (
		day     domain.DaySchedule
		weekday int
		blocks  string
	)
	if err := row.Scan(&weekday, &day.IsOpen, &blocks, &day.UpdatedAt); err != nil {
		return domain.DaySchedule{}, err
	}
	day.Weekday = domain.Weekday(weekday)
	if err := json.Unmarshal([]byte(blocks), &day.Blocks); err != nil {
		return domain.DaySchedule{}, fmt.Errorf("decode blocks of %s: %w", day.Weekday, err)
	}
	if day.Blocks == nil {
		day.Blocks = []domain.TimeBlock{}
	}
	return day, nil
}

func (r *ScheduleRepo) DaySchedule(ctx context.Context, weekday domain.Weekday) (domain.DaySchedule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+dayScheduleColumns+` FROM day_schedules WHERE weekday = ?`, int(weekday))
	day, err := scanDaySchedule(row)
	if err != nil {
		return domain.DaySchedule{}, notFound(err)
	}
	return day, nil
}

func (r *ScheduleRepo) DaySchedules(ctx context.Context) ([]domain.DaySchedule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+dayScheduleColumns+` FROM day_schedules ORDER BY weekday`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DaySchedule, 0, 7)
	for rows.Next() {
		day, err := scanDaySchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return out, rows.Err()
}

func (r *ScheduleRepo) SaveDaySchedule(ctx context.Context, day domain.DaySchedule) error {
	if day.Blocks == nil {
		day.Blocks = []domain.TimeBlock{}
	}
	blocks, err := json.Marshal(day.Blocks)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO day_schedules (weekday, is_open, blocks, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (weekday) DO UPDATE SET
			is_open = excluded.is_open,
			blocks = excluded.blocks,
			updated_at = excluded.updated_at`,
		int(day.Weekday), day.IsOpen, string(blocks), time.Now().UTC())
	return err
}

func scanOverride(row rowScanner) (domain.DateOverride, error) {
	var (
		o    domain.DateOverride
		kind string
	)
	if err := row.Scan(&o.Date, &kind, &o.Reason, &o.CreatedAt); err != nil {
		return domain.DateOverride{}, err
	}
	o.Kind = domain.OverrideKind(kind)
	return o, nil
}

func (r *ScheduleRepo) Override(ctx context.Context, date domain.Date) (domain.DateOverride, error) {
	row := r.db.QueryRowContext(ctx, `SELECT date, kind, reason, created_at FROM date_overrides WHERE date = ?`, date.String())
	o, err := scanOverride(row)
	if err != nil {
		return domain.DateOverride{}, notFound(err)
	}
	return o, nil
}

func (r *ScheduleRepo) Overrides(ctx context.Context, rng store.DateRange) ([]domain.DateOverride, error) {
	where, args := dateRangeClause("date", rng)
	q := `SELECT date, kind, reason, created_at FROM date_overrides`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY date`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DateOverride, 0)
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *ScheduleRepo) UpsertOverride(ctx context.Context, o domain.DateOverride) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO date_overrides (date, kind, reason, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			kind = excluded.kind,
			reason = excluded.reason`,
		o.Date.String(), string(o.Kind), o.Reason, o.CreatedAt)
	return err
}

func (r *ScheduleRepo) DeleteOverride(ctx context.Context, date domain.Date) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM date_overrides WHERE date = ?`, date.String())
	return err
}

func (r *ScheduleRepo) Horizon(ctx context.Context) (int, error) {
	var days int
	err := r.db.QueryRowContext(ctx, `SELECT horizon_days FROM booking_settings WHERE id = 1`).Scan(&days)
	if err != nil {
		return 0, notFound(err)
	}
	return days, nil
}

func (r *ScheduleRepo) SaveHorizon(ctx context.Context, days int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO booking_settings (id, horizon_days, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			horizon_days = excluded.horizon_days,
			updated_at = excluded.updated_at`,
		days, time.Now().UTC())
	return err
}

// dateRangeClause renders rng as SQL conditions on a YYYY-MM-DD text column,
// which orders lexically like the dates it holds.
func dateRangeClause(column string, rng store.DateRange) ([]string, []any) {
	var (
		where []string
		args  []any
	)
	if !rng.From.IsZero() {
		where = append(where, column+" >= ?")
		args = append(args, rng.From.String())
	}
	if !rng.To.IsZero() {
		where = append(where, column+" <= ?")
		args = append(args, rng.To.String())
	}
	return where, args
}
