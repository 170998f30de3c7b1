package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"reservo/backend/internal/domain"
	"reservo/backend/internal/store"
)

// offlineDB builds a bun.DB that never connects. It is only used to render
// queries.
func offlineDB(t *testing.T) *bun.DB {
	t.Helper()
	sqlDB, err := sql.Open("pgx", "postgres://reservo@127.0.0.1:1/none")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return bun.NewDB(sqlDB, pgdialect.New())
}

func TestMapWriteErr(t *testing.T) {
	assert.ErrorIs(t, mapWriteErr(&pgconn.PgError{Code: "23505"}), store.ErrConflict)
	assert.ErrorIs(t, mapWriteErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23P01", ConstraintName: "reservations_no_overlap"})), store.ErrConflict)

	other := &pgconn.PgError{Code: "42P01"}
	assert.Same(t, other, mapWriteErr(other))

	plain := errors.New("boom")
	assert.Equal(t, plain, mapWriteErr(plain))
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(sql.ErrNoRows), store.ErrNotFound)
	assert.ErrorIs(t, notFound(fmt.Errorf("scan: %w", sql.ErrNoRows)), store.ErrNotFound)

	plain := errors.New("boom")
	assert.Equal(t, plain, notFound(plain))
}

func TestReservationFilterQuery(t *testing.T) {
	db := offlineDB(t)
	var rows []domain.Reservation

	q := db.NewSelect().Model(&rows).Apply(reservationFilter(store.ReservationFilter{
		Dates:     store.DateRange{From: domain.MustParseDate("2026-04-01")},
		ServiceID: "court",
		Status:    domain.ReservationConfirmed,
		Limit:     5,
	}))
	s := q.String()

	assert.Contains(t, s, `"date" >= '2026-04-01'`)
	assert.NotContains(t, s, `"date" <=`)
	assert.Contains(t, s, "service_id = 'court'")
	assert.Contains(t, s, "status = 'confirmed'")
	assert.NotContains(t, s, "staff_id =")
	assert.Contains(t, s, "LIMIT 5")
}

func TestReservationFilterQuery_Empty(t *testing.T) {
	db := offlineDB(t)
	var rows []domain.Reservation

	s := db.NewSelect().Model(&rows).Apply(reservationFilter(store.ReservationFilter{})).String()
	assert.NotContains(t, s, "WHERE")
	assert.NotContains(t, s, "LIMIT")
}
