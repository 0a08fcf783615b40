package db

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"decorbook/pkg/config"
)

// MigrateConfig applies pending up migrations from migrationsPath (e.g. file://migrations)
// over MigrationURL.
func MigrateConfig(migrationsPath string, cfg config.Config) error {
	_, err := Migrate(migrationsPath, MigrationURL(cfg))
	return err
}

// Migrate runs up migrations and returns the schema version it ended on.
func Migrate(migrationsPath, databaseURL string) (uint, error) {
	m, err := migrate.New(migrationsPath, databaseURL)
	if err != nil {
		return 0, wrapf(err, "open migrations %s", migrationsPath)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, wrapf(err, "migrate up")
	}
	v, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, wrapf(err, "read schema version")
	}
	if dirty {
		return v, errors.New("schema is dirty; fix the failed migration and force the version")
	}
	return v, nil
}
