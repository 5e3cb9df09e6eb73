package recordstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxPool is the subset of *pgxpool.Pool used by PostgresStore. It lets
// pgxmock stand in for a real pool.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on a native pgx connection pool.
type PostgresStore struct {
	pool    pgxPool
	dialect dialect
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool pgxPool) *PostgresStore {
	return &PostgresStore{pool: pool, dialect: dialects["postgres"]}
}

func openPostgres(ctx context.Context, cfg Config) (Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := NewPostgresStore(pool)
	s.dialect = s.dialect.withSchema(cfg.SchemaName)
	return s, nil
}

// Insert implements Store using INSERT ... RETURNING *.
func (s *PostgresStore) Insert(ctx context.Context, table string, row Row) (Row, error) {
	q, args, err := s.dialect.buildInsert(table, row)
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}
	return s.queryOne(ctx, q, args...)
}

// SelectByEquality implements Store.
func (s *PostgresStore) SelectByEquality(ctx context.Context, table, field string, value interface{}) (Row, error) {
	q, args, err := s.dialect.buildSelectOne(table, field, value)
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	return s.queryOne(ctx, q, args...)
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, table string, patch Row, field string, value interface{}) error {
	q, args, err := s.dialect.buildUpdate(table, patch, field, value)
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := s.pool.Exec(ctx, q, args...); err != nil {
		return classifyPgError(err)
	}
	return nil
}

// Migrate creates the admin_users table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, s.dialect.adminDDL); err != nil {
		return fmt.Errorf("create admin_users: %w", err)
	}
	return nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) queryOne(ctx context.Context, q string, args ...any) (Row, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, classifyPgError(err)
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classifyPgError(err)
	}
	return cleanRow(Row(m)), nil
}

func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return &uniqueError{err: err}
	}
	return err
}
