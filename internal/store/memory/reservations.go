package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

// ReservationRepo is an append-only reservation log indexed by id and by
// slot key. Writes hold the mutex across check and insert.
type ReservationRepo struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]domain.Reservation
	byKey map[domain.SlotKey][]uuid.UUID
}

func NewReservationRepo() *ReservationRepo {
	return &ReservationRepo{
		byID:  make(map[uuid.UUID]domain.Reservation),
		byKey: make(map[domain.SlotKey][]uuid.UUID),
	}
}

type reservationTx struct {
	repo *ReservationRepo
}

func (r *ReservationRepo) CreateReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return store.CreateInTx(ctx, reservationTx{repo: r}, res)
}

func (r *ReservationRepo) Reservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byID[id]
	if !ok {
		return domain.Reservation{}, store.ErrNotFound
	}
	return res, nil
}

func (r *ReservationRepo) Reservations(ctx context.Context, f store.ReservationFilter) ([]domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Reservation, 0)
	for _, res := range r.byID {
		if f.Match(res) {
			out = append(out, res)
		}
	}
	store.SortReservations(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *ReservationRepo) CancelReservation(ctx context.Context, id uuid.UUID, at time.Time) (domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.byID[id]
	if !ok {
		return domain.Reservation{}, store.ErrNotFound
	}
	if !res.Active() {
		return res, store.ErrConflict
	}
	at = at.UTC()
	res.Status = domain.ReservationCancelled
	res.CancelledAt = &at
	r.byID[id] = res
	return res, nil
}

func (tx reservationTx) ReservationByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	res, ok := tx.repo.byID[id]
	if !ok {
		return domain.Reservation{}, store.ErrNotFound
	}
	return res, nil
}

func (tx reservationTx) ActiveReservations(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error) {
	ids := tx.repo.byKey[key]
	out := make([]domain.Reservation, 0, len(ids))
	for _, id := range ids {
		if res := tx.repo.byID[id]; res.Active() {
			out = append(out, res)
		}
	}
	return out, nil
}

func (tx reservationTx) InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	if res.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Reservation{}, err
		}
		res.ID = id
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now()
	}
	if res.Status == "" {
		res.Status = domain.ReservationConfirmed
	}
	key := domain.SlotKey{ServiceID: res.ServiceID, StaffID: res.StaffID, Date: res.Date}
	tx.repo.byID[res.ID] = res
	tx.repo.byKey[key] = append(tx.repo.byKey[key], res.ID)
	return res, nil
}
