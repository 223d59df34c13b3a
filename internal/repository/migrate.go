package repository

import (
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations. Running an already
// migrated database is a no-op.
func (r *PostgresRepo) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "repo: Migrate source")
	}
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "repo: Migrate driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "repo: Migrate init")
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "repo: Migrate up")
	}
	return nil
}
