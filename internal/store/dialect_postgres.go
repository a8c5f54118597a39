package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"task-manager-api/internal/metadata"
)

const pgUniqueViolation = "23505"

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }
func (d *PostgresDialect) NeedsBoolFix() bool { return false }

func (d *PostgresDialect) Placeholder() squirrel.PlaceholderFormat {
	return squirrel.Dollar
}

func (d *PostgresDialect) MigrationsDir() string { return "migrations/postgres" }

func (d *PostgresDialect) MigrationDriver(db *sql.DB) (database.Driver, error) {
	return migratepgx.WithInstance(db, &migratepgx.Config{})
}

func (d *PostgresDialect) TableColumns(ctx context.Context, q Querier, table string) ([]metadata.RawColumn, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_name = $1 AND table_schema = current_schema()
		 ORDER BY ordinal_position`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []metadata.RawColumn
	for rows.Next() {
		var c metadata.RawColumn
		if err := rows.Scan(&c.Name, &c.DBType); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}
