// Package store provides relational persistence for finsync.
// It holds the business tables, the local changelog and the remote changelog,
// on SQLite for clients and on SQLite or PostgreSQL for the sync server.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store represents an open database
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Opener opens a store for one logical operation. Callers close it when done.
type Opener func(ctx context.Context) (*Store, error)

// New opens the database named by dsn. A postgres:// or postgresql:// DSN
// selects PostgreSQL, anything else is treated as a SQLite file.
func New(dsn string) (*Store, error) {
	dialect := DialectFor(dsn)

	driver, source := "sqlite", sqliteSource(dsn)
	if dialect == Postgres {
		driver, source = "pgx", dsn
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		// One writer at a time; concurrent writers only queue on busy_timeout anyway.
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db, dialect: dialect}, nil
}

// NewOpener returns an Opener that opens dsn on every call
func NewOpener(dsn string) Opener {
	return func(ctx context.Context) (*Store, error) {
		st, err := New(dsn)
		if err != nil {
			return nil, err
		}
		if err := st.db.PingContext(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return st, nil
	}
}

func sqliteSource(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for advanced queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect reports the SQL engine behind the store
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}
