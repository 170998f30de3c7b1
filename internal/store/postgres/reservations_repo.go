package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

type ReservationRepo struct {
	db *bun.DB
}

func NewReservationRepo(db *bun.DB) *ReservationRepo {
	return &ReservationRepo{db: db}
}

type reservationTx struct {
	tx bun.Tx
}

// CreateReservation serializes writers of one slot key on a transaction
// scoped advisory lock, then runs the shared create protocol. The exclusion
// constraint on reservations backs the overlap check.
func (r *ReservationRepo) CreateReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	var out domain.Reservation
	key := domain.SlotKey{ServiceID: res.ServiceID, StaffID: res.StaffID, Date: res.Date}
	err := r.InSlotTransaction(ctx, key, func(ctx context.Context, tx store.ReservationTx) error {
		created, err := store.CreateInTx(ctx, tx, res)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return out, nil
}

func (r *ReservationRepo) InSlotTransaction(ctx context.Context, key domain.SlotKey, fn func(ctx context.Context, tx store.ReservationTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockSlot(ctx, tx, key); err != nil {
			return err
		}
		return fn(ctx, reservationTx{tx: tx})
	})
}

func lockSlot(ctx context.Context, tx bun.Tx, key domain.SlotKey) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key.String()).Exec(ctx)
	return err
}

func (r *ReservationRepo) Reservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	return reservationByID(ctx, r.db, id, false)
}

func (r *ReservationRepo) Reservations(ctx context.Context, f store.ReservationFilter) ([]domain.Reservation, error) {
	rows := make([]domain.Reservation, 0)
	err := r.db.NewSelect().
		Model(&rows).
		Apply(reservationFilter(f)).
		OrderExpr("date ASC, start_minute ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func reservationFilter(f store.ReservationFilter) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Apply(dateRange("date", f.Dates))
		if f.ServiceID != "" {
			q = q.Where("service_id = ?", f.ServiceID)
		}
		if f.StaffID != "" {
			q = q.Where("staff_id = ?", f.StaffID)
		}
		if f.Status != "" {
			q = q.Where("status = ?", string(f.Status))
		}
		if f.Limit > 0 {
			q = q.Limit(f.Limit)
		}
		return q
	}
}

func (r *ReservationRepo) CancelReservation(ctx context.Context, id uuid.UUID, at time.Time) (domain.Reservation, error) {
	var out domain.Reservation
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := reservationByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !res.Active() {
			out = res
			return store.ErrConflict
		}
		at = at.UTC()
		res.Status = domain.ReservationCancelled
		res.CancelledAt = &at
		_, err = tx.NewUpdate().
			Model(&res).
			Column("status", "cancelled_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return out, err
	}
	return out, nil
}

func reservationByID(ctx context.Context, db bun.IDB, id uuid.UUID, forUpdate bool) (domain.Reservation, error) {
	var res domain.Reservation
	q := db.NewSelect().
		Model(&res).
		Where("id = ?", id).
		Limit(1)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Reservation{}, notFound(err)
	}
	return res, nil
}

func (t reservationTx) ReservationByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	return reservationByID(ctx, t.tx, id, false)
}

func (t reservationTx) ActiveReservations(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error) {
	rows := make([]domain.Reservation, 0)
	err := t.tx.NewSelect().
		Model(&rows).
		Where("service_id = ?", key.ServiceID).
		Where("staff_id = ?", key.StaffID).
		Where("date = ?", key.Date).
		Where("status = ?", string(domain.ReservationConfirmed)).
		OrderExpr("start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t reservationTx) InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	if _, err := t.tx.NewInsert().Model(&res).Exec(ctx); err != nil {
		return domain.Reservation{}, mapWriteErr(err)
	}
	return res, nil
}
