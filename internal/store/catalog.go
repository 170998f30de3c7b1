package store

import (
	"context"

	"reservo/backend/internal/domain"
)

type CatalogRepository interface {
	CreateService(ctx context.Context, svc domain.Service) (domain.Service, error)
	Service(ctx context.Context, id string) (domain.Service, error)
	Services(ctx context.Context) ([]domain.Service, error)
	UpdateService(ctx context.Context, svc domain.Service) (domain.Service, error)
	// DeleteService removes the service and strips it from every staff
	// capability set in one atomic step.
	DeleteService(ctx context.Context, id string) error

	CreateStaff(ctx context.Context, m domain.StaffMember) (domain.StaffMember, error)
	Staff(ctx context.Context, id string) (domain.StaffMember, error)
	StaffMembers(ctx context.Context) ([]domain.StaffMember, error)
	UpdateStaff(ctx context.Context, m domain.StaffMember) (domain.StaffMember, error)
	DeleteStaff(ctx context.Context, id string) error

	AssignService(ctx context.Context, staffID, serviceID string) (domain.StaffMember, error)
	UnassignService(ctx context.Context, staffID, serviceID string) (domain.StaffMember, error)
}
