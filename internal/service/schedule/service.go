package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Service owns the weekly schedule, the date overrides and the booking
// horizon. Every mutation is written through to the repository before it
// returns.
type Service struct {
	repo           store.ScheduleRepository
	defaultHorizon int
	log            zerolog.Logger
}

func NewService(repo store.ScheduleRepository, defaultHorizon int, log zerolog.Logger) *Service {
	if defaultHorizon <= 0 {
		defaultHorizon = domain.DefaultHorizon
	}
	return &Service{
		repo:           repo,
		defaultHorizon: defaultHorizon,
		log:            log.With().Str("component", "schedule").Logger(),
	}
}

// DaySchedule returns the schedule of weekday. A weekday that was never
// configured is reported closed with no blocks.
func (s *Service) DaySchedule(ctx context.Context, weekday domain.Weekday) (domain.DaySchedule, error) {
	if !weekday.Valid() {
		return domain.DaySchedule{}, validationError(fmt.Sprintf("weekday must be 1..7, got %d", int(weekday)))
	}
	day, err := s.repo.DaySchedule(ctx, weekday)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ClosedDay(weekday), nil
	}
	if err != nil {
		return domain.DaySchedule{}, fmt.Errorf("load %s schedule: %w", weekday, err)
	}
	return day, nil
}

// WeekSchedule returns all seven days, Monday first.
func (s *Service) WeekSchedule(ctx context.Context) ([]domain.DaySchedule, error) {
	stored, err := s.repo.DaySchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load week schedule: %w", err)
	}
	byDay := make(map[domain.Weekday]domain.DaySchedule, len(stored))
	for _, d := range stored {
		byDay[d.Weekday] = d
	}
	out := make([]domain.DaySchedule, 0, 7)
	for _, w := range domain.Weekdays() {
		if d, ok := byDay[w]; ok {
			out = append(out, d)
			continue
		}
		out = append(out, domain.ClosedDay(w))
	}
	return out, nil
}

// SetDaySchedule replaces the whole schedule of weekday.
func (s *Service) SetDaySchedule(ctx context.Context, weekday domain.Weekday, day domain.DaySchedule) (domain.DaySchedule, error) {
	day.Weekday = weekday
	if day.Blocks == nil {
		day.Blocks = []domain.TimeBlock{}
	}
	if err := day.Validate(); err != nil {
		return domain.DaySchedule{}, validationError(err.Error())
	}
	if err := s.repo.SaveDaySchedule(ctx, day); err != nil {
		return domain.DaySchedule{}, fmt.Errorf("save %s schedule: %w", weekday, err)
	}
	s.log.Info().
		Stringer("weekday", weekday).
		Bool("is_open", day.IsOpen).
		Int("blocks", len(day.Blocks)).
		Msg("day schedule replaced")
	return s.DaySchedule(ctx, weekday)
}

// CopyDaySchedule replaces the schedule of to with a copy of from.
func (s *Service) CopyDaySchedule(ctx context.Context, from, to domain.Weekday) (domain.DaySchedule, error) {
	if !to.Valid() {
		return domain.DaySchedule{}, validationError(fmt.Sprintf("weekday must be 1..7, got %d", int(to)))
	}
	src, err := s.DaySchedule(ctx, from)
	if err != nil {
		return domain.DaySchedule{}, err
	}
	if from == to {
		return src, nil
	}
	return s.SetDaySchedule(ctx, to, src.Clone())
}

// Overrides returns every override ordered by date.
func (s *Service) Overrides(ctx context.Context) ([]domain.DateOverride, error) {
	return s.OverridesBetween(ctx, domain.Date{}, domain.Date{})
}

// OverridesBetween returns the overrides in [from, to]. Zero bounds are open.
func (s *Service) OverridesBetween(ctx context.Context, from, to domain.Date) ([]domain.DateOverride, error) {
	out, err := s.repo.Overrides(ctx, store.DateRange{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return out, nil
}

// OverrideFor returns the override of date, if any.
func (s *Service) OverrideFor(ctx context.Context, date domain.Date) (domain.DateOverride, bool, error) {
	o, err := s.repo.Override(ctx, date)
	if errors.Is(err, store.ErrNotFound) {
		return domain.DateOverride{}, false, nil
	}
	if err != nil {
		return domain.DateOverride{}, false, fmt.Errorf("load override %s: %w", date, err)
	}
	return o, true, nil
}

// AddOverride records an override for date, replacing any existing one. The
// date must be a canonical YYYY-MM-DD calendar date.
func (s *Service) AddOverride(ctx context.Context, date string, kind domain.OverrideKind, reason string) (domain.DateOverride, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return domain.DateOverride{}, err
	}
	if _, err := domain.ParseOverrideKind(string(kind)); err != nil {
		return domain.DateOverride{}, validationError(err.Error())
	}
	o := domain.DateOverride{Date: d, Kind: kind, Reason: reason}
	if err := s.repo.UpsertOverride(ctx, o); err != nil {
		return domain.DateOverride{}, fmt.Errorf("save override %s: %w", d, err)
	}
	s.log.Info().Stringer("date", d).Str("kind", string(kind)).Msg("override set")

	stored, _, err := s.OverrideFor(ctx, d)
	if err != nil {
		return domain.DateOverride{}, err
	}
	return stored, nil
}

// RemoveOverride deletes the override of date. Removing an absent override is
// not an error.
func (s *Service) RemoveOverride(ctx context.Context, date string) error {
	d, err := domain.ParseDate(date)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteOverride(ctx, d); err != nil {
		return fmt.Errorf("delete override %s: %w", d, err)
	}
	s.log.Info().Stringer("date", d).Msg("override removed")
	return nil
}

// Horizon returns the booking horizon in days, falling back to the configured
// default until one has been saved.
func (s *Service) Horizon(ctx context.Context) (int, error) {
	h, err := s.repo.Horizon(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return s.defaultHorizon, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load horizon: %w", err)
	}
	return h, nil
}

func (s *Service) SetHorizon(ctx context.Context, days int) error {
	if days <= 0 {
		return validationError("horizon must be a positive number of days")
	}
	if err := s.repo.SaveHorizon(ctx, days); err != nil {
		return fmt.Errorf("save horizon: %w", err)
	}
	s.log.Info().Int("days", days).Msg("horizon set")
	return nil
}
