package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrStaffNotFound   = errors.New("staff member not found")
	ErrDuplicateID     = errors.New("id already exists")
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

// Service manages bookable services and staff capability sets.
type Service struct {
	repo store.CatalogRepository
	log  zerolog.Logger
}

func NewService(repo store.CatalogRepository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log.With().Str("component", "catalog").Logger()}
}

type ServiceInput struct {
	ID              string
	Name            string
	Description     string
	Category        string
	Kind            domain.ServiceKind
	PriceCents      int64
	DurationMinutes int
	RequiresStaff   bool
	Active          *bool
}

func (in ServiceInput) build() (domain.Service, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Service{}, validationError("name is required")
	}
	if in.DurationMinutes <= 0 {
		return domain.Service{}, validationError("duration_minutes must be positive")
	}
	if in.PriceCents < 0 {
		return domain.Service{}, validationError("price must not be negative")
	}
	kind := in.Kind
	if kind == "" {
		kind = domain.ServiceKindService
	}
	if !kind.Valid() {
		return domain.Service{}, validationError(fmt.Sprintf("unknown service kind %q", kind))
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return domain.Service{
		ID:              strings.TrimSpace(in.ID),
		Name:            name,
		Description:     strings.TrimSpace(in.Description),
		Category:        strings.TrimSpace(in.Category),
		Kind:            kind,
		PriceCents:      in.PriceCents,
		DurationMinutes: in.DurationMinutes,
		RequiresStaff:   in.RequiresStaff,
		Active:          active,
	}, nil
}

func (s *Service) CreateService(ctx context.Context, in ServiceInput) (domain.Service, error) {
	svc, err := in.build()
	if err != nil {
		return domain.Service{}, err
	}
	out, err := s.repo.CreateService(ctx, svc)
	if err != nil {
		return domain.Service{}, mapErr(err, ErrServiceNotFound)
	}
	s.log.Info().Str("service_id", out.ID).Int("duration_minutes", out.DurationMinutes).Msg("service created")
	return out, nil
}

func (s *Service) Service(ctx context.Context, id string) (domain.Service, error) {
	svc, err := s.repo.Service(ctx, id)
	if err != nil {
		return domain.Service{}, mapErr(err, ErrServiceNotFound)
	}
	return svc, nil
}

func (s *Service) Services(ctx context.Context) ([]domain.Service, error) {
	out, err := s.repo.Services(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return out, nil
}

func (s *Service) UpdateService(ctx context.Context, id string, in ServiceInput) (domain.Service, error) {
	svc, err := in.build()
	if err != nil {
		return domain.Service{}, err
	}
	svc.ID = id
	out, err := s.repo.UpdateService(ctx, svc)
	if err != nil {
		return domain.Service{}, mapErr(err, ErrServiceNotFound)
	}
	s.log.Info().Str("service_id", id).Msg("service updated")
	return out, nil
}

// DeleteService removes the service and drops it from every staff member's
// capability set. Reservations that reference it are kept.
func (s *Service) DeleteService(ctx context.Context, id string) error {
	if err := s.repo.DeleteService(ctx, id); err != nil {
		return mapErr(err, ErrServiceNotFound)
	}
	s.log.Info().Str("service_id", id).Msg("service deleted")
	return nil
}

type StaffInput struct {
	ID       string
	Name     string
	Position string
	Phone    string
	Email    string
	Active   *bool
	Services []string
}

func (s *Service) buildStaff(ctx context.Context, in StaffInput) (domain.StaffMember, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.StaffMember{}, validationError("name is required")
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	services := []string{}
	for _, id := range in.Services {
		if _, err := s.Service(ctx, id); err != nil {
			return domain.StaffMember{}, err
		}
		services = domain.WithService(services, id)
	}
	return domain.StaffMember{
		ID:       strings.TrimSpace(in.ID),
		Name:     name,
		Position: strings.TrimSpace(in.Position),
		Phone:    strings.TrimSpace(in.Phone),
		Email:    strings.TrimSpace(in.Email),
		Active:   active,
		Services: services,
	}, nil
}

func (s *Service) CreateStaff(ctx context.Context, in StaffInput) (domain.StaffMember, error) {
	m, err := s.buildStaff(ctx, in)
	if err != nil {
		return domain.StaffMember{}, err
	}
	out, err := s.repo.CreateStaff(ctx, m)
	if err != nil {
		return domain.StaffMember{}, mapErr(err, ErrStaffNotFound)
	}
	s.log.Info().Str("staff_id", out.ID).Int("services", len(out.Services)).Msg("staff member created")
	return out, nil
}

func (s *Service) Staff(ctx context.Context, id string) (domain.StaffMember, error) {
	m, err := s.repo.Staff(ctx, id)
	if err != nil {
		return domain.StaffMember{}, mapErr(err, ErrStaffNotFound)
	}
	return m, nil
}

func (s *Service) StaffMembers(ctx context.Context) ([]domain.StaffMember, error) {
	out, err := s.repo.StaffMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return out, nil
}

// UpdateStaff replaces the staff member's details. A nil Services keeps the
// current capability set.
func (s *Service) UpdateStaff(ctx context.Context, id string, in StaffInput) (domain.StaffMember, error) {
	current, err := s.Staff(ctx, id)
	if err != nil {
		return domain.StaffMember{}, err
	}
	if in.Services == nil {
		in.Services = current.Services
	}
	m, err := s.buildStaff(ctx, in)
	if err != nil {
		return domain.StaffMember{}, err
	}
	m.ID = id
	out, err := s.repo.UpdateStaff(ctx, m)
	if err != nil {
		return domain.StaffMember{}, mapErr(err, ErrStaffNotFound)
	}
	s.log.Info().Str("staff_id", id).Msg("staff member updated")
	return out, nil
}

func (s *Service) DeleteStaff(ctx context.Context, id string) error {
	if err := s.repo.DeleteStaff(ctx, id); err != nil {
		return mapErr(err, ErrStaffNotFound)
	}
	s.log.Info().Str("staff_id", id).Msg("staff member deleted")
	return nil
}

// AssignService adds serviceID to the staff member's capability set.
// Assigning twice is a no-op.
func (s *Service) AssignService(ctx context.Context, staffID, serviceID string) (domain.StaffMember, error) {
	if _, err := s.Staff(ctx, staffID); err != nil {
		return domain.StaffMember{}, err
	}
	if _, err := s.Service(ctx, serviceID); err != nil {
		return domain.StaffMember{}, err
	}
	m, err := s.repo.AssignService(ctx, staffID, serviceID)
	if err != nil {
		return domain.StaffMember{}, mapErr(err, ErrStaffNotFound)
	}
	s.log.Debug().Str("staff_id", staffID).Str("service_id", serviceID).Msg("service assigned")
	return m, nil
}

// UnassignService removes serviceID from the capability set. Removing an
// absent link is a no-op, including a link to a service that no longer
// exists.
func (s *Service) UnassignService(ctx context.Context, staffID, serviceID string) (domain.StaffMember, error) {
	m, err := s.repo.UnassignService(ctx, staffID, serviceID)
	if err != nil {
		return domain.StaffMember{}, mapErr(err, ErrStaffNotFound)
	}
	s.log.Debug().Str("staff_id", staffID).Str("service_id", serviceID).Msg("service unassigned")
	return m, nil
}

// CapableStaff lists the active staff members who can perform serviceID.
func (s *Service) CapableStaff(ctx context.Context, serviceID string) ([]domain.StaffMember, error) {
	if _, err := s.Service(ctx, serviceID); err != nil {
		return nil, err
	}
	all, err := s.StaffMembers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StaffMember, 0, len(all))
	for _, m := range all {
		if m.Active && m.CanPerform(serviceID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func mapErr(err error, notFound error) error {
	switch {
	case errors.Is(err, store.ErrUnknownService):
		return ErrServiceNotFound
	case errors.Is(err, store.ErrNotFound):
		return notFound
	case errors.Is(err, store.ErrConflict):
		return ErrDuplicateID
	default:
		return err
	}
}
