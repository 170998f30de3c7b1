package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

type ReservationRepo struct {
	db *sql.DB
}

type reservationTx struct {
	tx *sql.Tx
}

const reservationColumns = `id, service_id, staff_id, date, start_minute, end_minute, client_name, client_email, client_phone, notes, status, created_at, cancelled_at`

func scanReservation(row rowScanner) (domain.Reservation, error) {
	var (
		r           domain.Reservation
		status      string
		cancelledAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.ServiceID, &r.StaffID, &r.Date, &r.Start, &r.End,
		&r.ClientName, &r.ClientEmail, &r.ClientPhone, &r.Notes, &status, &r.CreatedAt, &cancelledAt)
	if err != nil {
		return domain.Reservation{}, err
	}
	r.Status = domain.ReservationStatus(status)
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		r.CancelledAt = &t
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func queryReservations(ctx context.Context, q queryer, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Reservation, 0)
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateReservation runs the shared create protocol inside an immediate
// transaction, which holds the database write lock from the overlap check
// through the insert.
func (r *ReservationRepo) CreateReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	var out domain.Reservation
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		created, err := store.CreateInTx(ctx, reservationTx{tx: tx}, res)
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

func (r *ReservationRepo) Reservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id.String()))
	if err != nil {
		return domain.Reservation{}, notFound(err)
	}
	return res, nil
}

func (r *ReservationRepo) Reservations(ctx context.Context, f store.ReservationFilter) ([]domain.Reservation, error) {
	query, args := reservationQuery(f)
	return queryReservations(ctx, r.db, query, args...)
}

func reservationQuery(f store.ReservationFilter) (string, []any) {
	where, args := dateRangeClause("date", f.Dates)
	if f.ServiceID != "" {
		where = append(where, "service_id = ?")
		args = append(args, f.ServiceID)
	}
	if f.StaffID != "" {
		where = append(where, "staff_id = ?")
		args = append(args, f.StaffID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + reservationColumns + ` FROM reservations`)
	if len(where) > 0 {
		b.WriteString(` WHERE ` + strings.Join(where, " AND "))
	}
	b.WriteString(` ORDER BY date, start_minute, id`)
	if f.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, f.Limit)
	}
	return b.String(), args
}

func (r *ReservationRepo) CancelReservation(ctx context.Context, id uuid.UUID, at time.Time) (domain.Reservation, error) {
	var out domain.Reservation
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := scanReservation(tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id.String()))
		if err != nil {
			return notFound(err)
		}
		if !res.Active() {
			out = res
			return store.ErrConflict
		}
		at = at.UTC()
		if _, err := tx.ExecContext(ctx, `UPDATE reservations SET status = ?, cancelled_at = ? WHERE id = ?`,
			string(domain.ReservationCancelled), at, id.String()); err != nil {
			return err
		}
		res.Status = domain.ReservationCancelled
		res.CancelledAt = &at
		out = res
		return nil
	})
	if err != nil {
		return out, err
	}
	return out, nil
}

func (t reservationTx) ReservationByID(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	res, err := scanReservation(t.tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id.String()))
	if err != nil {
		return domain.Reservation{}, notFound(err)
	}
	return res, nil
}

func (t reservationTx) ActiveReservations(ctx context.Context, key domain.SlotKey) ([]domain.Reservation, error) {
	return queryReservations(ctx, t.tx, `SELECT `+reservationColumns+` FROM reservations
		WHERE service_id = ? AND staff_id = ? AND date = ? AND status = ?
		ORDER BY start_minute`,
		key.ServiceID, key.StaffID, key.Date.String(), string(domain.ReservationConfirmed))
}

func (t reservationTx) InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	if res.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Reservation{}, err
		}
		res.ID = id
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	if res.Status == "" {
		res.Status = domain.ReservationConfirmed
	}
	_, err := t.tx.ExecContext(ctx, `INSERT INTO reservations (`+reservationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID.String(), res.ServiceID, res.StaffID, res.Date.String(), int(res.Start), int(res.End),
		res.ClientName, res.ClientEmail, res.ClientPhone, res.Notes, string(res.Status), res.CreatedAt, res.CancelledAt)
	if err != nil {
		return domain.Reservation{}, mapWriteErr(err)
	}
	return res, nil
}
