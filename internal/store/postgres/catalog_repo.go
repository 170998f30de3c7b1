package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/uptrace/bun"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

type CatalogRepo struct {
	db *bun.DB
}

func NewCatalogRepo(db *bun.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) CreateService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	if _, err := r.db.NewInsert().Model(&svc).Exec(ctx); err != nil {
		return domain.Service{}, mapWriteErr(err)
	}
	return svc, nil
}

func (r *CatalogRepo) Service(ctx context.Context, id string) (domain.Service, error) {
	var svc domain.Service
	err := r.db.NewSelect().
		Model(&svc).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Service{}, notFound(err)
	}
	return svc, nil
}

func (r *CatalogRepo) Services(ctx context.Context) ([]domain.Service, error) {
	rows := make([]domain.Service, 0)
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("name ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CatalogRepo) UpdateService(ctx context.Context, svc domain.Service) (domain.Service, error) {
	res, err := r.db.NewUpdate().
		Model(&svc).
		WherePK().
		ExcludeColumn("created_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.Service{}, mapWriteErr(err)
	}
	if err := requireAffected(res); err != nil {
		return domain.Service{}, err
	}
	return svc, nil
}

func (r *CatalogRepo) DeleteService(ctx context.Context, id string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*domain.Service)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		_, err = tx.NewUpdate().
			Model((*domain.StaffMember)(nil)).
			Set("services = array_remove(services, ?)", id).
			Set("updated_at = ?", time.Now().UTC()).
			Where("? = ANY(services)", id).
			Exec(ctx)
		return err
	})
}

func (r *CatalogRepo) CreateStaff(ctx context.Context, m domain.StaffMember) (domain.StaffMember, error) {
	if m.Services == nil {
		m.Services = []string{}
	}
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockServices(ctx, tx, m.Services); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&m).Exec(ctx)
		return mapWriteErr(err)
	})
	if err != nil {
		return domain.StaffMember{}, err
	}
	return m, nil
}

func (r *CatalogRepo) Staff(ctx context.Context, id string) (domain.StaffMember, error) {
	return staffByID(ctx, r.db, id, false)
}

func (r *CatalogRepo) StaffMembers(ctx context.Context) ([]domain.StaffMember, error) {
	rows := make([]domain.StaffMember, 0)
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("name ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CatalogRepo) UpdateStaff(ctx context.Context, m domain.StaffMember) (domain.StaffMember, error) {
	if m.Services == nil {
		m.Services = []string{}
	}
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockServices(ctx, tx, m.Services); err != nil {
			return err
		}
		res, err := tx.NewUpdate().
			Model(&m).
			WherePK().
			ExcludeColumn("created_at").
			Returning("*").
			Exec(ctx)
		if err != nil {
			return mapWriteErr(err)
		}
		return requireAffected(res)
	})
	if err != nil {
		return domain.StaffMember{}, err
	}
	return m, nil
}

func (r *CatalogRepo) DeleteStaff(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().
		Model((*domain.StaffMember)(nil)).
		Where("id = ?", id).
		Exec(ctx)
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
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m, err := staffByID(ctx, tx, staffID, true)
		if err != nil {
			return err
		}
		if requireService {
			if err := lockServices(ctx, tx, []string{serviceID}); err != nil {
				return err
			}
		}
		before := len(m.Services)
		m.Services = apply(m.Services, serviceID)
		if len(m.Services) != before {
			m.UpdatedAt = time.Now().UTC()
			_, err = tx.NewUpdate().
				Model(&m).
				Column("services", "updated_at").
				WherePK().
				Exec(ctx)
			if err != nil {
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

func staffByID(ctx context.Context, db bun.IDB, id string, forUpdate bool) (domain.StaffMember, error) {
	var m domain.StaffMember
	q := db.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Limit(1)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.StaffMember{}, notFound(err)
	}
	if m.Services == nil {
		m.Services = []string{}
	}
	return m, nil
}

// lockServices takes a share lock on every listed service row so a concurrent
// DeleteService waits for the capability write to commit before it cleans up.
func lockServices(ctx context.Context, tx bun.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found := make([]string, 0, len(ids))
	err := tx.NewSelect().
		Model((*domain.Service)(nil)).
		Column("id").
		Where("id IN (?)", bun.In(ids)).
		For("SHARE").
		Scan(ctx, &found)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !slices.Contains(found, id) {
			return fmt.Errorf("%w: %s", store.ErrUnknownService, id)
		}
	}
	return nil
}
