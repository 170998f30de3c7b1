package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

// CatalogRepo keeps services and staff in memory. One mutex covers both maps
// so that deleting a service and cleaning capability sets is atomic.
type CatalogRepo struct {
	mu       sync.RWMutex
	services map[string]domain.Service
	staff    map[string]domain.StaffMember
}

func NewCatalogRepo() *CatalogRepo {
	return &CatalogRepo{
		services: make(map[string]domain.Service),
		staff:    make(map[string]domain.StaffMember),
	}
}

func (r *CatalogRepo) CreateService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	if _, ok := r.services[svc.ID]; ok {
		return domain.Service{}, store.ErrConflict
	}
	ts := now()
	svc.CreatedAt, svc.UpdatedAt = ts, ts
	r.services[svc.ID] = svc
	return svc, nil
}

func (r *CatalogRepo) Service(ctx context.Context, id string) (domain.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[id]
	if !ok {
		return domain.Service{}, store.ErrNotFound
	}
	return svc, nil
}

func (r *CatalogRepo) Services(ctx context.Context) ([]domain.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Service, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *CatalogRepo) UpdateService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.services[svc.ID]
	if !ok {
		return domain.Service{}, store.ErrNotFound
	}
	svc.CreatedAt = existing.CreatedAt
	svc.UpdatedAt = now()
	r.services[svc.ID] = svc
	return svc, nil
}

func (r *CatalogRepo) DeleteService(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.services[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.services, id)
	for staffID, m := range r.staff {
		if m.CanPerform(id) {
			m.Services = domain.WithoutService(m.Services, id)
			m.UpdatedAt = now()
			r.staff[staffID] = m
		}
	}
	return nil
}

func (r *CatalogRepo) CreateStaff(ctx context.Context, m domain.StaffMember) (domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, ok := r.staff[m.ID]; ok {
		return domain.StaffMember{}, store.ErrConflict
	}
	if err := r.requireServices(m.Services); err != nil {
		return domain.StaffMember{}, err
	}
	m = m.Clone()
	ts := now()
	m.CreatedAt, m.UpdatedAt = ts, ts
	r.staff[m.ID] = m
	return m.Clone(), nil
}

func (r *CatalogRepo) Staff(ctx context.Context, id string) (domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.staff[id]
	if !ok {
		return domain.StaffMember{}, store.ErrNotFound
	}
	return m.Clone(), nil
}

func (r *CatalogRepo) StaffMembers(ctx context.Context) ([]domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.StaffMember, 0, len(r.staff))
	for _, m := range r.staff {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *CatalogRepo) UpdateStaff(ctx context.Context, m domain.StaffMember) (domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.staff[m.ID]
	if !ok {
		return domain.StaffMember{}, store.ErrNotFound
	}
	if err := r.requireServices(m.Services); err != nil {
		return domain.StaffMember{}, err
	}
	m = m.Clone()
	m.CreatedAt = existing.CreatedAt
	m.UpdatedAt = now()
	r.staff[m.ID] = m
	return m.Clone(), nil
}

func (r *CatalogRepo) DeleteStaff(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.staff[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.staff, id)
	return nil
}

func (r *CatalogRepo) AssignService(ctx context.Context, staffID, serviceID string) (domain.StaffMember, error) {
	return r.updateCapabilities(staffID, serviceID, true, domain.WithService)
}

func (r *CatalogRepo) UnassignService(ctx context.Context, staffID, serviceID string) (domain.StaffMember, error) {
	return r.updateCapabilities(staffID, serviceID, false, domain.WithoutService)
}

func (r *CatalogRepo) updateCapabilities(staffID, serviceID string, requireService bool, apply func([]string, string) []string) (domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.staff[staffID]
	if !ok {
		return domain.StaffMember{}, store.ErrNotFound
	}
	if requireService {
		if err := r.requireServices([]string{serviceID}); err != nil {
			return domain.StaffMember{}, err
		}
	}
	before := len(m.Services)
	m.Services = apply(m.Services, serviceID)
	if len(m.Services) != before {
		m.UpdatedAt = now()
	}
	r.staff[staffID] = m
	return m.Clone(), nil
}

// requireServices must be called with r.mu held.
func (r *CatalogRepo) requireServices(ids []string) error {
	for _, id := range ids {
		if _, ok := r.services[id]; !ok {
			return fmt.Errorf("%w: %s", store.ErrUnknownService, id)
		}
	}
	return nil
}
