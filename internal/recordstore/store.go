// Package recordstore is the hosted-database boundary for packetdesk. It
// exposes a deliberately small contract (insert one row, select one row by
// equality, update rows by equality) and adapters for SQL databases and for
// faucet-style REST table APIs.
package recordstore

import (
	"context"
	"errors"
	"time"
)

// Row is a single record keyed by column name.
type Row map[string]interface{}

// Store is the three-operation record contract used by the admin repository.
// A nil Row with a nil error means "no record".
type Store interface {
	// Insert writes row into table and returns the row as stored.
	Insert(ctx context.Context, table string, row Row) (Row, error)

	// SelectByEquality returns the first row where field equals value, or
	// nil, nil when nothing matches.
	SelectByEquality(ctx context.Context, table, field string, value interface{}) (Row, error)

	// Update applies patch to every row where field equals value.
	Update(ctx context.Context, table string, patch Row, field string, value interface{}) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Migrator is implemented by stores that can create the tables they need.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Config holds connection parameters for every adapter. Only the fields
// relevant to Driver are read.
type Config struct {
	Driver          string
	DSN             string
	SchemaName      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// REST adapter
	BaseURL string
	Service string
	APIKey  string
	Timeout time.Duration
}

var (
	// ErrUniqueViolation is matched (via errors.Is) by errors caused by a
	// duplicate key on any backend.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrMigrateUnsupported is returned by Migrate for stores that do not
	// own their schema.
	ErrMigrateUnsupported = errors.New("driver does not support migrations")
)

// Migrate creates the admin_users table when s supports it.
func Migrate(ctx context.Context, s Store) error {
	m, ok := s.(Migrator)
	if !ok {
		return ErrMigrateUnsupported
	}
	return m.Migrate(ctx)
}

// uniqueError keeps the backend's message intact while matching
// ErrUniqueViolation.
type uniqueError struct {
	err error
}

func (e *uniqueError) Error() string { return e.err.Error() }
func (e *uniqueError) Unwrap() error { return e.err }
func (e *uniqueError) Is(target error) bool {
	return target == ErrUniqueViolation
}

// cleanRow converts []byte values from database scans into strings.
// MapScan returns []byte for many column types which would otherwise be
// base64-encoded in JSON.
func cleanRow(r Row) Row {
	for k, v := range r {
		if b, ok := v.([]byte); ok {
			r[k] = string(b)
		}
	}
	return r
}
