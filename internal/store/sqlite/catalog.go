package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

type CatalogRepo struct {
	db *sql.DB
}

const serviceColumns = `id, name, description, category, kind, price_cents, duration_minutes, requires_staff, active, created_at, updated_at`

func scanService(row rowScanner) (domain.Service, error) {
	var (
		svc  domain.Service
		kind string
	)
	err := row.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Category, &kind, &svc.PriceCents,
		&svc.DurationMinutes, &svc.RequiresStaff, &svc.Active, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return domain.Service{}, err
	}
	svc.Kind = domain.ServiceKind(kind)
	return svc, nil
}

func (r *CatalogRepo) CreateService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	svc.CreatedAt, svc.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `INSERT INTO services (`+serviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.ID, svc.Name, svc.Description, svc.Category, string(svc.Kind), svc.PriceCents,
		svc.DurationMinutes, svc.RequiresStaff, svc.Active, svc.CreatedAt, svc.UpdatedAt)
	if err != nil {
		return domain.Service{}, mapWriteErr(err)
	}
	return svc, nil
}

func (r *CatalogRepo) Service(ctx context.Context, id string) (domain.Service, error) {
	svc, err := scanService(r.db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
	if err != nil {
		return domain.Service{}, notFound(err)
	}
	return svc, nil
}

func (r *CatalogRepo) Services(ctx context.Context) ([]domain.Service, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM services ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Service, 0)
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) UpdateService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	var out domain.Service
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE services SET name = ?, description = ?, category = ?, kind = ?, price_cents = ?,
				duration_minutes = ?, requires_staff = ?, active = ?, updated_at = ?
			WHERE id = ?`,
			svc.Name, svc.Description, svc.Category, string(svc.Kind), svc.PriceCents,
			svc.DurationMinutes, svc.RequiresStaff, svc.Active, time.Now().UTC(), svc.ID)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		out, err = scanService(tx.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, svc.ID))
		return err
	})
	if err != nil {
		return domain.Service{}, err
	}
	return out, nil
}

// DeleteService removes the service and rewrites the capability set of every
// staff member that listed it, in one transaction.
func (r *CatalogRepo) DeleteService(ctx context.Context, id string) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}

		staff, err := queryStaff(ctx, tx, `SELECT `+staffColumns+` FROM staff_members
			WHERE EXISTS (SELECT 1 FROM json_each(staff_members.services) WHERE json_each.value = ?)`, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, m := range staff {
			if err := saveCapabilities(ctx, tx, m.ID, domain.WithoutService(m.Services, id), now); err != nil {
				return err
			}
		}
		return nil
	})
}

const staffColumns = `id, name, position, phone, email, active, services, created_at, updated_at`

func scanStaff(row rowScanner) (domain.StaffMember, error) {
	var (
		m        domain.StaffMember
		services string
	)
	err := row.Scan(&m.ID, &m.Name, &m.Position, &m.Phone, &m.Email, &m.Active, &services, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.StaffMember{}, err
	}
	if err := json.Unmarshal([]byte(services), &m.Services); err != nil {
		return domain.StaffMember{}, fmt.Errorf("decode services of %s: %w", m.ID, err)
	}
	if m.Services == nil {
		m.Services = []string{}
	}
	return m, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryStaff(ctx context.Context, q queryer, query string, args ...any) ([]domain.StaffMember, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StaffMember, 0)
	for rows.Next() {
		m, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func encodeServices(services []string) (string, error) {
	if services == nil {
		services = []string{}
	}
	b, err := json.Marshal(services)
	return string(b), err
}

func saveCapabilities(ctx context.Context, tx *sql.Tx, staffID string, services []string, at time.Time) error {
	encoded, err := encodeServices(services)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE staff_members SET services = ?, updated_at = ? WHERE id = ?`, encoded, at, staffID)
	return err
}

func (r *CatalogRepo) CreateStaff(ctx context.Context, m domain.StaffMember) (domain.StaffMember, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Services == nil {
		m.Services = []string{}
	}
	services, err := encodeServices(m.Services)
	if err != nil {
		return domain.StaffMember{}, err
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	err = inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := requireServices(ctx, tx, m.Services); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO staff_members (`+staffColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Name, m.Position, m.Phone, m.Email, m.Active, services, m.CreatedAt, m.UpdatedAt)
		return mapWriteErr(err)
	})
	if err != nil {
		return domain.StaffMember{}, err
	}
	return m, nil
}

func (r *CatalogRepo) Staff(ctx context.Context, id string) (domain.StaffMember, error) {
	m, err := scanStaff(r.db.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_members WHERE id = ?`, id))
	if err != nil {
		return domain.StaffMember{}, notFound(err)
	}
	return m, nil
}

func (r *CatalogRepo) StaffMembers(ctx context.Context) ([]domain.StaffMember, error) {
	return queryStaff(ctx, r.db, `SELECT `+staffColumns+` FROM staff_members ORDER BY name, id`)
}

func (r *CatalogRepo) UpdateStaff(ctx context.Context, m domain.StaffMember) (domain.StaffMember, error) {
	services, err := encodeServices(m.Services)
	if err != nil {
		return domain.StaffMember{}, err
	}
	var out domain.StaffMember
	err = inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := requireServices(ctx, tx, m.Services); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE staff_members SET name = ?, position = ?, phone = ?, email = ?, active = ?, services = ?, updated_at = ?
			WHERE id = ?`,
			m.Name, m.Position, m.Phone, m.Email, m.Active, services, time.Now().UTC(), m.ID)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		out, err = scanStaff(tx.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_members WHERE id = ?`, m.ID))
		return err
	})
	if err != nil {
		return domain.StaffMember{}, err
	}
	return out, nil
}

func (r *CatalogRepo) DeleteStaff(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM staff_members WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *CatalogRepo) AssignService(ctx context.Context, staffID, serviceID string) (domain.StaffMember, error) {
	return r.updateCapabilities(ctx, staffID, serviceID, true, domain.WithService)
}

func (r *CatalogRepo) UnassignService(ctx context.Context, staffID, serviceID string) (domain.StaffMember, error) {
	return r.updateCapabilities(ctx, staffID, serviceID, false, domain.WithoutService)
}

func (r *CatalogRepo) updateCapabilities(ctx context.Context, staffID, serviceID string, requireService bool, apply func([]string, string) []string) (domain.StaffMember, error) {
	var out domain.StaffMember
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		m, err := scanStaff(tx.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff_members WHERE id = ?`, staffID))
		if err != nil {
			return notFound(err)
		}
		if requireService {
			if err := requireServices(ctx, tx, []string{serviceID}); err != nil {
				return err
			}
		}
		before := len(m.Services)
		m.Services = apply(m.Services, serviceID)
		if len(m.Services) != before {
			m.UpdatedAt = time.Now().UTC()
			if err := saveCapabilities(ctx, tx, m.ID, m.Services, m.UpdatedAt); err != nil {
				return err
			}
		}
		out = m
		return nil
	})
	if err != nil {
		return domain.StaffMember{}, err
	}
	return out, nil
}

func requireServices(ctx context.Context, tx *sql.Tx, ids []string) error {
	for _, id := range ids {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM services WHERE id = ?`, id).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", store.ErrUnknownService, id)
		}
	}
	return nil
}
