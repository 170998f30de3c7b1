package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpSection(t *testing.T) {
	up, err := upSection("-- +goose Up\nCREATE TABLE a (id int);\n-- +goose Down\nDROP TABLE a;\n")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE a (id int);", up)

	up, err = upSection("-- +goose Up\r\nSELECT 1;")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", up)

	up, err = upSection("-- schema\n-- +goose Up\nSELECT 1;\n")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", up)

	_, err = upSection("CREATE TABLE a (id int);")
	require.ErrorContains(t, err, upMarker)
}

func TestSplitSQLStatements(t *testing.T) {
	got := splitSQLStatements("CREATE TABLE a (id int);\n\n  ;CREATE INDEX a_idx ON a (id);  ")
	assert.Equal(t, []string{"CREATE TABLE a (id int)", "CREATE INDEX a_idx ON a (id)"}, got)
}

func TestNormalizeExtensionStatement(t *testing.T) {
	s, ok := normalizeExtensionStatement("CREATE EXTENSION IF NOT EXISTS btree_gist")
	require.True(t, ok)
	assert.Equal(t, "CREATE EXTENSION IF NOT EXISTS btree_gist SCHEMA public", s)

	_, ok = normalizeExtensionStatement("CREATE EXTENSION IF NOT EXISTS btree_gist SCHEMA ext")
	assert.False(t, ok)
	_, ok = normalizeExtensionStatement("CREATE EXTENSION pgcrypto")
	assert.False(t, ok)
}

func TestEmbeddedMigrations(t *testing.T) {
	migs, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	assert.Equal(t, "00001_init", migs[0].version)

	for i := 1; i < len(migs); i++ {
		assert.Less(t, migs[i-1].version, migs[i].version)
	}
	for _, m := range migs {
		assert.NotContains(t, m.upSQL, "+goose Down", m.version)
	}

	initSQL := migs[0].upSQL
	for _, table := range []string{"day_schedules", "date_overrides", "booking_settings", "services", "staff_members", "reservations"} {
		assert.True(t, strings.Contains(initSQL, "CREATE TABLE IF NOT EXISTS "+table), table)
	}
	assert.Contains(t, initSQL, "reservations_no_overlap")
}
