// Package sqlite implements the store on an embedded SQLite database, handy for single node deployments and tests.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite" // registers the sqlite driver

	"github.com/RustLabx/rstoken/lib/store/sqlstore"
)

//go:embed schema.sql
var schema string

// New opens (creating it if needed) the database in dsn, ie. "file:rstoken.db" or ":memory:".
func New(dsn string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// one writer; also keeps a :memory: database alive on a single connection
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()

		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err = db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	return sqlstore.New(db, sqlstore.Question), nil
}
