package store

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4/database"

	"task-manager-api/internal/metadata"
)

// Dialect abstracts database-specific SQL and driver behavior.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string

	// Placeholder returns the squirrel placeholder format for bound parameters.
	Placeholder() squirrel.PlaceholderFormat

	// TableColumns returns the declared columns of a table in declaration order.
	TableColumns(ctx context.Context, q Querier, table string) ([]metadata.RawColumn, error)

	// MigrationDriver wraps db as a golang-migrate database driver.
	MigrationDriver(db *sql.DB) (database.Driver, error)

	// MigrationsDir is the embedded directory holding this dialect's migrations.
	MigrationsDir() string

	// MapError inspects a driver error and returns a well-known sentinel error if applicable.
	MapError(err error) error

	// NeedsBoolFix returns true if boolean columns come back as integers (SQLite).
	NeedsBoolFix() bool
}

// NewDialect creates a Dialect for the given driver name ("postgres" or "sqlite").
func NewDialect(driver string) Dialect {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}
	default:
		return &PostgresDialect{}
	}
}
