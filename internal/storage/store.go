// Package storage persists budgets, transactions and alerts in SQLite or
// PostgreSQL through database/sql.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"saldo/internal/repository"
)

// sqlitePragmas enable foreign keys (cascades) and wait for locks instead of
// failing fast.
const sqlitePragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

type Store struct {
	*Queries
	db *sql.DB
}

var (
	_ repository.Store      = (*Store)(nil)
	_ repository.AlertStore = (*Store)(nil)
	_ repository.Seeder     = (*Store)(nil)
)

// NewSQLite opens (creating if needed) the database file at dbPath and runs
// migrations.
func NewSQLite(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + sqlitePragmas

	if err := RunMigrations(SQLite, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open(SQLite.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection makes every unit of work exclusive.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{Queries: New(db, SQLite), db: db}, nil
}

// NewPostgres connects to databaseURL and runs migrations.
func NewPostgres(databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	if err := RunMigrations(Postgres, databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open(Postgres.driverName(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &Store{Queries: New(db, Postgres), db: db}, nil
}

// WithTx runs fn inside a database transaction, committing when fn returns
// nil and rolling back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", translate(err))
	}
	if err := fn(s.Queries.withTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", translate(err))
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
