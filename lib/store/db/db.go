// Package db implements the opening and graceful closing of database connections.
package db

import (
	"fmt"

	"github.com/RustLabx/rstoken/lib/store"
	"github.com/RustLabx/rstoken/lib/store/mongo"
	"github.com/RustLabx/rstoken/lib/store/postgres"
	"github.com/RustLabx/rstoken/lib/store/sqlite"
)

// Database types.
const (
	MONGODB  string = "mongodb"
	POSTGRES string = "postgres"
	SQLITE   string = "sqlite"
)

// New returns a new database connection according to the options (database type).
func New(options, connection string) (store.DB, error) {
	var (
		db  store.DB
		err error
	)

	switch options {
	case MONGODB:
		db, err = open(mongo.New(connection))
	case POSTGRES, "postgresql":
		db, err = open(postgres.New(connection))
	case SQLITE:
		db, err = open(sqlite.New(connection))
	default:
		err = fmt.Errorf("%w: %q", store.ErrUnknownType, options)
	}

	return db, err
}

// open avoids returning a typed nil inside the interface.
func open[T store.DB](db T, err error) (store.DB, error) {
	if err != nil {
		return nil, err
	}

	return db, nil
}

// Close gracefully closes the database connection.
func Close(dh store.DB) error {
	if dh == nil {
		return nil
	}

	return dh.Close()
}
