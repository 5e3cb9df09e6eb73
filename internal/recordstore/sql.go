package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"
	_ "github.com/sijms/go-ora/v2"
	"github.com/sijms/go-ora/v2/network"
	_ "modernc.org/sqlite"
)

// SQLStore implements Store over a database/sql connection pool for the
// sqlite, mysql, mssql and oracle drivers.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
}

// NewSQLStore wraps an existing connection. driver selects the SQL dialect
// and must be one of sqlite, mysql, mssql, oracle.
func NewSQLStore(db *sqlx.DB, driver string) (*SQLStore, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// NewMemoryStore opens a private in-memory SQLite database with the
// admin_users table already created. Intended for tests and local runs.
func NewMemoryStore(ctx context.Context) (*SQLStore, error) {
	s, err := openSQLStore(ctx, Config{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func openSQL(ctx context.Context, cfg Config) (Store, error) {
	return openSQLStore(ctx, cfg)
}

func openSQLStore(ctx context.Context, cfg Config) (*SQLStore, error) {
	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	d = d.withSchema(cfg.SchemaName)

	db, err := sqlx.ConnectContext(ctx, d.sqlDriver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		// Each connection to :memory: is its own database, and SQLite
		// doesn't support concurrent writes anyway.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &SQLStore{db: db, dialect: d}, nil
}

// Insert implements Store.
func (s *SQLStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	q, args, err := s.dialect.buildInsert(table, row)
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	if s.dialect.insert == insertReselect {
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return nil, classifySQLError(err)
		}
		// Without RETURNING the only way back to the row is its key.
		id, ok := row["id"]
		if !ok {
			return nil, nil
		}
		return s.SelectByEquality(ctx, table, "id", id)
	}

	created, err := s.queryOne(ctx, q, args...)
	if err != nil {
		return nil, classifySQLError(err)
	}
	return created, nil
}

// SelectByEquality implements Store.
func (s *SQLStore) SelectByEquality(ctx context.Context, table, field string, value interface{}) (Row, error) {
	q, args, err := s.dialect.buildSelectOne(table, field, value)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	row, err := s.queryOne(ctx, q, args...)
	if err != nil {
		return nil, classifySQLError(err)
	}
	return row, nil
}

// Update implements Store. Matching zero rows is not an error.
func (s *SQLStore) Update(ctx context.Context, table string, patch Row, field string, value interface{}) error {
	q, args, err := s.dialect.buildUpdate(table, patch, field, value)
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return classifySQLError(err)
	}
	return nil
}

// Migrate creates the admin_users table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.adminDDL); err != nil {
		return fmt.Errorf("create admin_users: %w", err)
	}
	return nil
}

// Ping implements Store.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) queryOne(ctx context.Context, q string, args ...interface{}) (Row, error) {
	row := make(Row)
	if err := s.db.QueryRowxContext(ctx, q, args...).MapScan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return cleanRow(row), nil
}

// classifySQLError marks duplicate-key errors from any of the database/sql
// drivers so callers can test for ErrUniqueViolation.
func classifySQLError(err error) error {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return &uniqueError{err: err}
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) && (msErr.Number == 2627 || msErr.Number == 2601) {
		return &uniqueError{err: err}
	}

	var oraErr *network.OracleError
	if errors.As(err, &oraErr) && oraErr.ErrCode == 1 {
		return &uniqueError{err: err}
	}

	// modernc.org/sqlite reports constraint failures by message.
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry") ||
		strings.Contains(lower, "violation of unique") {
		return &uniqueError{err: err}
	}
	return err
}
