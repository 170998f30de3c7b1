package domain

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DurationOptions are the service lengths offered by the admin API. Stored
// services may carry any positive duration.
var DurationOptions = []int{30, 60, 90, 120}

func IsDurationOption(minutes int) bool {
	return slices.Contains(DurationOptions, minutes)
}

type ServiceKind string

const (
	ServiceKindService      ServiceKind = "service"
	ServiceKindSport        ServiceKind = "sport"
	ServiceKindConsultation ServiceKind = "consultation"
)

func (k ServiceKind) Valid() bool {
	switch k {
	case ServiceKindService, ServiceKindSport, ServiceKindConsultation:
		return true
	}
	return false
}

// Service is a bookable offering (a court, a haircut, a consultation).
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              string      `bun:"id,pk" json:"id"`
	Name            string      `bun:"name,notnull" json:"name"`
	Description     string      `bun:"description,notnull" json:"description"`
	Category        string      `bun:"category,notnull" json:"category"`
	Kind            ServiceKind `bun:"kind,notnull" json:"kind"`
	PriceCents      int64       `bun:"price_cents,notnull" json:"priceCents"`
	DurationMinutes int         `bun:"duration_minutes,notnull" json:"durationMinutes"`
	RequiresStaff   bool        `bun:"requires_staff,notnull" json:"requiresStaff"`
	Active          bool        `bun:"active,notnull" json:"active"`
	CreatedAt       time.Time   `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt       time.Time   `bun:"updated_at,notnull" json:"updatedAt"`
}

func (s *Service) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

// StaffMember is a person who can be booked for the services in Services.
type StaffMember struct {
	bun.BaseModel `bun:"table:staff_members"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Position  string    `bun:"position,notnull" json:"position"`
	Phone     string    `bun:"phone,notnull" json:"phone"`
	Email     string    `bun:"email,notnull" json:"email"`
	Active    bool      `bun:"active,notnull" json:"active"`
	Services  []string  `bun:"services,array,notnull" json:"services"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

func (m *StaffMember) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		m.UpdatedAt = now
	}
	if m.Services == nil {
		m.Services = []string{}
	}
	return nil
}

func (m StaffMember) CanPerform(serviceID string) bool {
	return slices.Contains(m.Services, serviceID)
}

func (m StaffMember) Clone() StaffMember {
	out := m
	out.Services = append([]string{}, m.Services...)
	return out
}

// WithService returns the capability set with serviceID added once.
func WithService(services []string, serviceID string) []string {
	if slices.Contains(services, serviceID) {
		return services
	}
	return append(append([]string{}, services...), serviceID)
}

// WithoutService returns the capability set with every serviceID removed.
func WithoutService(services []string, serviceID string) []string {
	out := make([]string, 0, len(services))
	for _, id := range services {
		if id != serviceID {
			out = append(out, id)
		}
	}
	return out
}
