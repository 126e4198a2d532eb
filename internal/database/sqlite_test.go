package database

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/reconctl/internal/config"
)

type submissionRow struct {
	JobID       string `db:"job_id"`
	Domain      string `db:"domain"`
	ScanTypes   string `db:"scan_types"`
	Source      string `db:"source"`
	SubmittedAt string `db:"submitted_at"`
	Ignored     string `db:"-"`
}

func openTestDB(t *testing.T) DB {
	t.Helper()
	db, err := Open(t.Context(), config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(t.Context()))

	var rows []struct {
		Filename string `db:"filename"`
	}
	require.NoError(t, db.Select(t.Context(), &rows, `SELECT filename FROM schema_migrations`))
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Len(t, rows, len(names))
	assert.Equal(t, "sqlite", db.Driver())
}

func TestUpsertGetSelect(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()

	row := submissionRow{JobID: "abc123", Domain: "example.com", ScanTypes: `["all"]`, Source: "cli", SubmittedAt: "2025-01-01T00:00:00Z", Ignored: "x"}
	require.NoError(t, db.Upsert(ctx, "submissions", row, []string{"job_id"}))
	row.Domain = "example.org"
	require.NoError(t, db.Upsert(ctx, "submissions", &row, []string{"job_id"}))

	var got submissionRow
	require.NoError(t, db.Get(ctx, &got, `SELECT submitted_at, job_id, domain FROM submissions WHERE job_id = ?`, "abc123"))
	assert.Equal(t, "example.org", got.Domain)
	assert.Equal(t, "2025-01-01T00:00:00Z", got.SubmittedAt)
	assert.Empty(t, got.Ignored)

	var all []*submissionRow
	require.NoError(t, db.Select(ctx, &all, `SELECT * FROM submissions`))
	require.Len(t, all, 1)
	assert.Equal(t, "cli", all[0].Source)

	err := db.Get(ctx, &got, `SELECT * FROM submissions WHERE job_id = ?`, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSelectRejectsNonSlice(t *testing.T) {
	db := openTestDB(t)
	var one submissionRow
	assert.Error(t, db.Select(t.Context(), &one, `SELECT * FROM submissions`))
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New(config.DatabaseConfig{Driver: "postgres"})
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = New(config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "DSN is required")
}

func TestMySQLAdaptWidensPayloadColumns(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_scan_cache.sql")
	require.NoError(t, err)
	out := mysqlAdapt(string(data))
	assert.Contains(t, out, "payload    LONGTEXT NOT NULL")
	assert.NotContains(t, out, " TEXT NOT NULL")
	assert.Greater(t, len(strings.Split(out, ";")), 3)
}
