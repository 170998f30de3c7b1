package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"reservo/backend/internal/store"
)

// Store is a single-file SQLite backend. Every write runs in a BEGIN
// IMMEDIATE transaction over one connection, so writers are serialized.
type Store struct {
	db  *sql.DB
	log zerolog.Logger

	Schedule     *ScheduleRepo
	Catalog      *CatalogRepo
	Reservations *ReservationRepo
}

func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{db: db, log: log.With().Str("component", "sqlite").Logger()}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	s.Schedule = &ScheduleRepo{db: db}
	s.Catalog = &CatalogRepo{db: db}
	s.Reservations = &ReservationRepo{db: db}

	s.log.Info().Str("path", path).Msg("database initialized")
	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS day_schedules (
			weekday INTEGER PRIMARY KEY CHECK (weekday BETWEEN 1 AND 7),
			is_open BOOLEAN NOT NULL DEFAULT 0,
			blocks TEXT NOT NULL DEFAULT '[]',
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS date_overrides (
			date TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK (kind IN ('closed', 'special')),
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS booking_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			horizon_days INTEGER NOT NULL CHECK (horizon_days >= 0),
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT 'service',
			price_cents INTEGER NOT NULL DEFAULT 0,
			duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
			requires_staff BOOLEAN NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS staff_members (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			position TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT 1,
			services TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL,
			staff_id TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			start_minute INTEGER NOT NULL,
			end_minute INTEGER NOT NULL CHECK (end_minute > start_minute),
			client_name TEXT NOT NULL,
			client_email TEXT NOT NULL DEFAULT '',
			client_phone TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK (status IN ('confirmed', 'cancelled')),
			created_at TIMESTAMP NOT NULL,
			cancelled_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS reservations_confirmed_start_uq
			ON reservations (service_id, staff_id, date, start_minute) WHERE status = 'confirmed'`,
		`CREATE INDEX IF NOT EXISTS reservations_date_idx ON reservations (date, start_minute)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction and commits when it returns nil.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func mapWriteErr(err error) error {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
		switch sqlErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return store.ErrConflict
		}
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

var (
	_ store.ScheduleRepository    = (*ScheduleRepo)(nil)
	_ store.CatalogRepository     = (*CatalogRepo)(nil)
	_ store.ReservationRepository = (*ReservationRepo)(nil)
)
