package database

import (
	"context"
	"fmt"

	"github.com/CosmoTheDev/reconctl/internal/config"
)

// DB is the storage interface behind the local scan cache.
// Implementations exist for SQLite (default) and MySQL.
type DB interface {
	// Select executes a query and scans rows into dest (slice pointer).
	Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// Get executes a query expected to return a single row and scans into dest.
	// It returns sql.ErrNoRows when nothing matches.
	Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...interface{}) error

	// Upsert inserts record, or updates the non-key columns when a row with the
	// same conflictCols already exists.
	Upsert(ctx context.Context, table string, record interface{}, conflictCols []string) error

	// Migrate applies pending schema migrations in order.
	Migrate(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error

	// Driver returns the backend name: "sqlite" or "mysql".
	Driver() string
}

// New returns a DB implementation matching cfg.Driver.
func New(cfg config.DatabaseConfig) (DB, error) {
	switch cfg.Driver {
	case "mysql":
		return NewMySQL(cfg)
	case "sqlite", "sqlite3", "":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: sqlite, mysql)", cfg.Driver)
	}
}

// Open is New followed by Migrate. The connection is closed if migration fails.
func Open(ctx context.Context, cfg config.DatabaseConfig) (DB, error) {
	db, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("migrating %s database: %w", db.Driver(), err)
	}
	return db, nil
}
