// Package postgres implements the store for PostgreSQL. The schema is kept up to date with embedded migrations.
package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" //nolint:gci // load the postgres driver that is used by the system

	"github.com/RustLabx/rstoken/lib/store/sqlstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres is a store on a PostgreSQL database.
type Postgres struct {
	*sqlstore.Store
}

// New returns a postgres client connection to the specified database in 'connection' and runs the pending
// migrations.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)                 //nolint:gomnd
	db.SetMaxIdleConns(10)                 //nolint:gomnd
	db.SetConnMaxLifetime(5 * time.Minute) //nolint:gomnd

	if err = migrateUp(db); err != nil {
		db.Close()

		return nil, err
	}

	return &Postgres{Store: sqlstore.New(db, sqlstore.Dollar)}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create database driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run up migrations: %w", err)
	}

	return nil
}
