package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies ("up") or reverts ("down") the embedded migrations of the
// store's dialect. It runs on a dedicated connection because the migration
// driver closes its database when done.
func (s *Store) Migrate(direction string) error {
	if s.dsn == "" {
		return errors.New("migrate: store has no data source name")
	}

	src, err := iofs.New(migrationsFS, s.Dialect.MigrationsDir())
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	db, err := sql.Open(s.Dialect.DriverName(), s.dsn)
	if err != nil {
		return fmt.Errorf("migrate open: %w", err)
	}
	driver, err := s.Dialect.MigrationDriver(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.Dialect.Name(), driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("migrate init: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case "up", "":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		return fmt.Errorf("migrate: unknown direction %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return nil
}
