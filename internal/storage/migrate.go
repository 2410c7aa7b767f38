package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"voicenote/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ApplyMigrations brings the voice note schema at dbPath up to date and
// returns the schema version it ends at. The migrator gets its own handle
// because closing the migrate instance closes the database it was given.
func ApplyMigrations(dbPath string) (uint, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open schema database: %w", err)
	}
	defer db.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("sqlite migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("migrate instance: %w", err)
	}
	defer m.Close()

	before, _, err := schemaVersion(m)
	if err != nil {
		return 0, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return before, fmt.Errorf("apply voice note migrations: %w", err)
	}
	after, dirty, err := schemaVersion(m)
	if err != nil {
		return before, err
	}
	if dirty {
		return after, fmt.Errorf("schema version %d is dirty", after)
	}

	if after != before {
		log.Default().WithComponent(log.ComponentStorage).Info("Voice note schema migrated",
			"path", dbPath, "from_version", before, "to_version", after)
	}
	return after, nil
}

// schemaVersion treats a database with no applied migrations as version 0.
func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return v, dirty, nil
}
