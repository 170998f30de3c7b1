package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/uptrace/bun"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

type migration struct {
	version string
	upSQL   string
}

func loadMigrations() ([]migration, error) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		b, err := migrationFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		up, err := upSection(string(b))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".sql")
		out = append(out, migration{version: version, upSQL: up})
	}
	return out, nil
}

// Migrate applies every embedded migration that is not yet recorded in
// schema_migrations. Concurrent callers serialize on an advisory lock.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	migs, err := loadMigrations()
	if err != nil {
		return nil, err
	}

	var applied []string
	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "reservo:migrate").Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw(`CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`).Exec(ctx); err != nil {
			return err
		}

		var done []string
		if err := tx.NewRaw("SELECT version FROM schema_migrations").Scan(ctx, &done); err != nil {
			return err
		}
		seen := make(map[string]bool, len(done))
		for _, v := range done {
			seen[v] = true
		}

		for _, m := range migs {
			if seen[m.version] {
				continue
			}
			if err := applyMigration(ctx, tx, m.upSQL); err != nil {
				return fmt.Errorf("migration %s: %w", m.version, err)
			}
			if _, err := tx.NewRaw("INSERT INTO schema_migrations (version) VALUES (?)", m.version).Exec(ctx); err != nil {
				return err
			}
			applied = append(applied, m.version)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func applyMigration(ctx context.Context, exec rawExecutor, upSQL string) error {
	for _, stmt := range splitSQLStatements(upSQL) {
		if normalized, ok := normalizeExtensionStatement(stmt); ok {
			stmt = normalized
		}
		if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Migration files carry goose's "-- +goose Up" / "-- +goose Down" annotations
// so they can be rolled back by hand with the goose CLI. goose itself is not a
// dependency: Migrate only runs the Up section and records versions in
// schema_migrations.
const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

// upSection returns the statements between the Up marker and the optional
// Down marker.
func upSection(sql string) (string, error) {
	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing %q marker", upMarker)
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(upMarker):], "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

// normalizeExtensionStatement pins btree_gist to the public schema so that
// migrations run under a custom search_path still find its operator classes.
func normalizeExtensionStatement(stmt string) (string, bool) {
	s := strings.TrimSpace(stmt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "CREATE EXTENSION") || !strings.Contains(upper, "BTREE_GIST") {
		return "", false
	}
	if strings.Contains(upper, " SCHEMA ") {
		return "", false
	}
	return s + " SCHEMA public", true
}

// splitSQLStatements splits on semicolons. Migrations must not contain
// semicolons inside string literals or function bodies.
func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
