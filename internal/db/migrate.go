package db

import (
	"database/sql"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies every pending migration from sourceURL and returns the schema
// version before and after.
func Migrate(conn *sql.DB, sourceURL string) (uint, uint, error) {
	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		return 0, 0, err
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return 0, 0, err
	}

	before, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		before = 0
	} else if err != nil {
		return 0, 0, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return before, 0, err
	}
	after, _, err := m.Version()
	if err != nil {
		return before, 0, err
	}
	return before, after, nil
}
