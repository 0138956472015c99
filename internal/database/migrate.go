package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/UninstallAll/AIDAscraper/internal/config"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationSource returns the embedded migrations as a migrate source driver.
func MigrationSource() (source.Driver, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return src, nil
}

// withMigrator runs fn against a dedicated connection; the migrate driver
// closes the database it wraps.
func withMigrator(cfg config.DatabaseConfig, fn func(m *migrate.Migrate) error) error {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open database connection: %w", err)
	}

	src, err := MigrationSource()
	if err != nil {
		_ = db.Close()
		return err
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = driver.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	return fn(m)
}

// Migrate applies all pending migrations.
func Migrate(cfg config.DatabaseConfig, log logger.Logger) error {
	if log == nil {
		log = logger.NewNop()
	}

	return withMigrator(cfg, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("No pending migrations")
				return nil
			}
			return fmt.Errorf("run migrations: %w", err)
		}

		version, _, _ := m.Version()
		log.Info("Migrations applied successfully", logger.Int("version", int(version)))
		return nil
	})
}

// MigrateDown rolls back steps migrations (at least one).
func MigrateDown(cfg config.DatabaseConfig, steps int, log logger.Logger) error {
	if log == nil {
		log = logger.NewNop()
	}
	if steps <= 0 {
		steps = 1
	}

	return withMigrator(cfg, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("No migrations to roll back")
				return nil
			}
			return fmt.Errorf("rollback migrations: %w", err)
		}

		log.Info("Migrations rolled back", logger.Int("steps", steps))
		return nil
	})
}

// MigrationVersion reports the applied version and whether the last
// migration left the schema dirty. Version 0 means nothing is applied.
func MigrationVersion(cfg config.DatabaseConfig) (version uint, dirty bool, err error) {
	err = withMigrator(cfg, func(m *migrate.Migrate) error {
		var versionErr error
		version, dirty, versionErr = m.Version()
		if versionErr != nil {
			if errors.Is(versionErr, migrate.ErrNilVersion) {
				return nil
			}
			return fmt.Errorf("get migration version: %w", versionErr)
		}
		return nil
	})
	return version, dirty, err
}
