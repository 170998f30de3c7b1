// Package seed loads a business description from YAML and writes it into the
// schedule and catalog stores.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/service/catalog"
)

type Block struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}

type Service struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	Category        string `yaml:"category"`
	Kind            string `yaml:"kind"`
	PriceCents      int64  `yaml:"price_cents"`
	DurationMinutes int    `yaml:"duration_minutes"`
	RequiresStaff   bool   `yaml:"requires_staff"`
	Active          *bool  `yaml:"active,omitempty"`
}

type Staff struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Position string   `yaml:"position"`
	Phone    string   `yaml:"phone"`
	Email    string   `yaml:"email"`
	Active   *bool    `yaml:"active,omitempty"`
	Services []string `yaml:"services"`
}

type Day struct {
	Date   string `yaml:"date"`
	Reason string `yaml:"reason"`
}

// File is the root of a seed YAML document. Weekdays in Week are keyed by
// ISO number or English name. A weekday listed with no blocks is closed.
// When Week is present, weekdays it does not list are stored closed.
type File struct {
	HorizonDays *int               `yaml:"horizon_days,omitempty"`
	Week        map[string][]Block `yaml:"week"`
	Services    []Service          `yaml:"services"`
	Staff       []Staff            `yaml:"staff"`
	Holidays    []Day              `yaml:"holidays"`
	SpecialDays []Day              `yaml:"special_days"`

	days map[domain.Weekday]domain.DaySchedule
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("validate seed file: %w", err)
	}
	return &f, nil
}

// Validate checks the document and resolves the weekly schedule.
func (f *File) Validate() error {
	if f.HorizonDays != nil && *f.HorizonDays <= 0 {
		return fmt.Errorf("horizon_days must be positive, got %d", *f.HorizonDays)
	}

	f.days = nil
	if f.Week != nil {
		f.days = make(map[domain.Weekday]domain.DaySchedule, 7)
		for key, blocks := range f.Week {
			wd, err := domain.ParseWeekday(strings.ToLower(strings.TrimSpace(key)))
			if err != nil {
				return fmt.Errorf("week.%s: %w", key, err)
			}
			if _, dup := f.days[wd]; dup {
				return fmt.Errorf("week.%s: %s listed twice", key, wd)
			}
			day := domain.DaySchedule{Weekday: wd, IsOpen: len(blocks) > 0, Blocks: make([]domain.TimeBlock, 0, len(blocks))}
			for i, b := range blocks {
				tb, err := b.parse()
				if err != nil {
					return fmt.Errorf("week.%s[%d]: %w", key, i, err)
				}
				day.Blocks = append(day.Blocks, tb)
			}
			if err := day.Validate(); err != nil {
				return fmt.Errorf("week.%s: %w", key, err)
			}
			f.days[wd] = day
		}
		for _, wd := range domain.Weekdays() {
			if _, ok := f.days[wd]; !ok {
				f.days[wd] = domain.ClosedDay(wd)
			}
		}
	}

	services := make(map[string]bool, len(f.Services))
	for i, s := range f.Services {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return fmt.Errorf("services[%d]: id is required", i)
		}
		if services[id] {
			return fmt.Errorf("services[%d]: duplicate id %q", i, id)
		}
		services[id] = true
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("services[%d]: name is required", i)
		}
		if !domain.IsDurationOption(s.DurationMinutes) {
			return fmt.Errorf("services[%d]: duration_minutes must be one of %v, got %d", i, domain.DurationOptions, s.DurationMinutes)
		}
		if s.Kind != "" && !domain.ServiceKind(s.Kind).Valid() {
			return fmt.Errorf("services[%d]: unknown kind %q", i, s.Kind)
		}
	}

	staff := make(map[string]bool, len(f.Staff))
	for i, m := range f.Staff {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return fmt.Errorf("staff[%d]: id is required", i)
		}
		if staff[id] {
			return fmt.Errorf("staff[%d]: duplicate id %q", i, id)
		}
		staff[id] = true
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("staff[%d]: name is required", i)
		}
		for _, svc := range m.Services {
			if !services[svc] {
				return fmt.Errorf("staff[%d]: unknown service %q", i, svc)
			}
		}
	}

	dates := make(map[domain.Date]string)
	check := func(list string, days []Day) error {
		for i, d := range days {
			date, err := domain.ParseDate(d.Date)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", list, i, err)
			}
			if prev, ok := dates[date]; ok {
				return fmt.Errorf("%s[%d]: %s already listed in %s", list, i, date, prev)
			}
			dates[date] = list
		}
		return nil
	}
	if err := check("holidays", f.Holidays); err != nil {
		return err
	}
	return check("special_days", f.SpecialDays)
}

func (b Block) parse() (domain.TimeBlock, error) {
	open, err := domain.ParseClockTime(b.Open)
	if err != nil {
		return domain.TimeBlock{}, err
	}
	closeAt, err := domain.ParseClockTime(b.Close)
	if err != nil {
		return domain.TimeBlock{}, err
	}
	tb := domain.TimeBlock{Open: open, Close: closeAt}
	return tb, tb.Validate()
}

// Days returns the resolved weekly schedule, Monday first. It is empty when
// the file has no week section.
func (f *File) Days() []domain.DaySchedule {
	out := make([]domain.DaySchedule, 0, len(f.days))
	for _, d := range f.days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out
}

type ScheduleWriter interface {
	SetDaySchedule(ctx context.Context, weekday domain.Weekday, day domain.DaySchedule) (domain.DaySchedule, error)
	AddOverride(ctx context.Context, date string, kind domain.OverrideKind, reason string) (domain.DateOverride, error)
	SetHorizon(ctx context.Context, days int) error
}

type CatalogWriter interface {
	Service(ctx context.Context, id string) (domain.Service, error)
	CreateService(ctx context.Context, in catalog.ServiceInput) (domain.Service, error)
	UpdateService(ctx context.Context, id string, in catalog.ServiceInput) (domain.Service, error)
	Staff(ctx context.Context, id string) (domain.StaffMember, error)
	CreateStaff(ctx context.Context, in catalog.StaffInput) (domain.StaffMember, error)
	UpdateStaff(ctx context.Context, id string, in catalog.StaffInput) (domain.StaffMember, error)
}

type Summary struct {
	Days      int
	Services  int
	Staff     int
	Overrides int
}

// Applier writes seed files into the stores. Applying the same file twice
// leaves the stores unchanged.
type Applier struct {
	schedule ScheduleWriter
	catalog  CatalogWriter
	log      zerolog.Logger
}

func NewApplier(schedule ScheduleWriter, catalog CatalogWriter, log zerolog.Logger) *Applier {
	return &Applier{schedule: schedule, catalog: catalog, log: log.With().Str("component", "seed").Logger()}
}

// Apply upserts services before staff so that capability sets resolve.
// Entities the file does not mention are left alone.
func (a *Applier) Apply(ctx context.Context, f *File) (Summary, error) {
	var sum Summary

	if f.HorizonDays != nil {
		if err := a.schedule.SetHorizon(ctx, *f.HorizonDays); err != nil {
			return sum, err
		}
	}
	for _, day := range f.Days() {
		if _, err := a.schedule.SetDaySchedule(ctx, day.Weekday, day); err != nil {
			return sum, fmt.Errorf("seed %s: %w", day.Weekday, err)
		}
		sum.Days++
	}

	for _, s := range f.Services {
		if err := a.upsertService(ctx, s); err != nil {
			return sum, fmt.Errorf("seed service %s: %w", s.ID, err)
		}
		sum.Services++
	}
	for _, m := range f.Staff {
		if err := a.upsertStaff(ctx, m); err != nil {
			return sum, fmt.Errorf("seed staff %s: %w", m.ID, err)
		}
		sum.Staff++
	}

	for _, d := range f.Holidays {
		if _, err := a.schedule.AddOverride(ctx, d.Date, domain.OverrideClosed, d.Reason); err != nil {
			return sum, fmt.Errorf("seed holiday %s: %w", d.Date, err)
		}
		sum.Overrides++
	}
	for _, d := range f.SpecialDays {
		if _, err := a.schedule.AddOverride(ctx, d.Date, domain.OverrideSpecial, d.Reason); err != nil {
			return sum, fmt.Errorf("seed special day %s: %w", d.Date, err)
		}
		sum.Overrides++
	}

	a.log.Info().
		Int("days", sum.Days).
		Int("services", sum.Services).
		Int("staff", sum.Staff).
		Int("overrides", sum.Overrides).
		Msg("seed applied")
	return sum, nil
}

func (a *Applier) upsertService(ctx context.Context, s Service) error {
	in := catalog.ServiceInput{
		ID:              strings.TrimSpace(s.ID),
		Name:            s.Name,
		Description:     s.Description,
		Category:        s.Category,
		Kind:            domain.ServiceKind(s.Kind),
		PriceCents:      s.PriceCents,
		DurationMinutes: s.DurationMinutes,
		RequiresStaff:   s.RequiresStaff,
		Active:          s.Active,
	}
	_, err := a.catalog.Service(ctx, in.ID)
	switch {
	case errors.Is(err, catalog.ErrServiceNotFound):
		_, err = a.catalog.CreateService(ctx, in)
	case err == nil:
		_, err = a.catalog.UpdateService(ctx, in.ID, in)
	}
	return err
}

func (a *Applier) upsertStaff(ctx context.Context, m Staff) error {
	services := m.Services
	if services == nil {
		services = []string{}
	}
	in := catalog.StaffInput{
		ID:       strings.TrimSpace(m.ID),
		Name:     m.Name,
		Position: m.Position,
		Phone:    m.Phone,
		Email:    m.Email,
		Active:   m.Active,
		Services: services,
	}
	_, err := a.catalog.Staff(ctx, in.ID)
	switch {
	case errors.Is(err, catalog.ErrStaffNotFound):
		_, err = a.catalog.CreateStaff(ctx, in)
	case err == nil:
		_, err = a.catalog.UpdateStaff(ctx, in.ID, in)
	}
	return err
}

// LoadAndApply reads path and applies it.
func (a *Applier) LoadAndApply(ctx context.Context, path string) (Summary, error) {
	f, err := Load(path)
	if err != nil {
		return Summary{}, err
	}
	return a.Apply(ctx, f)
}
