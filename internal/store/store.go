// Package store persists forecast entities, forecast snapshots and the
// execution log in a single SQLite database.
//
// A Store is constructed once and injected into every engine. SQLite allows a
// single writer, so the pool is pinned to one connection; callers must finish
// reading a result set before issuing the next statement.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/bizforecast/pkg/core"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var errNotOpened = errors.New("database not opened")

// Store is the relational store shared by the engines.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	retry  RetryPolicy
}

// Options configures a Store.
type Options struct {
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Retry governs connection and transaction acquisition.
	Retry RetryPolicy
}

// Open opens (creating if needed) the database at path and verifies the
// connection. Transient lock errors are retried according to opts.Retry.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	s := newStore(nil, path, opts)

	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	dsn := buildDSN(path)
	err := WithRetry(ctx, s.retry, func(ctx context.Context) error {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return fmt.Errorf("failed to open sqlite database: %w", err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to ping sqlite database: %w", err)
		}
		s.db = db
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}

	s.logger.Debug("opened store", "path", path)
	return s, nil
}

// NewWithDB wraps an existing connection pool. The caller keeps ownership of
// the pool's configuration; Close still closes it.
func NewWithDB(db *sql.DB, opts Options) *Store {
	return newStore(db, "", opts)
}

func newStore(db *sql.DB, path string, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		db:     db,
		path:   path,
		logger: logger,
		retry:  opts.Retry.withDefaults(),
	}
}

// buildDSN enables foreign keys and a busy timeout on every connection.
// File databases also get WAL and immediate write transactions.
func buildDSN(path string) string {
	params := []string{"_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"}
	if path == MemoryPath {
		return "file::memory:?" + strings.Join(params, "&")
	}
	params = append(params, "_pragma=journal_mode(WAL)", "_txlock=immediate")
	return "file:" + path + "?" + strings.Join(params, "&")
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying pool for tests and migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return errNotOpened
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

// BeginTx starts a write transaction, retrying while the database is locked.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	tx, err := RetryValue(ctx, s.retry, func(ctx context.Context) (*sql.Tx, error) {
		return s.db.BeginTx(ctx, nil)
	})
	if err != nil {
		if IsTransient(err) {
			return nil, fmt.Errorf("%w: begin transaction: %w", core.ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}

// RowSet is a fully materialized query result.
type RowSet struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Query runs a statement and materializes every row.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*RowSet, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectRows(rows)
}

// Exec runs a statement in autocommit mode and returns the rows affected.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if s.db == nil {
		return 0, errNotOpened
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExecInTx runs a statement inside its own transaction and returns the rows
// affected. A statement that tries to open a nested transaction fails and
// nothing it did is kept.
func (s *Store) ExecInTx(ctx context.Context, query string, args ...any) (int64, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// QueryInTx is Query run inside its own transaction, with the same guarantee
// as ExecInTx for statement text that carries more than one statement.
func (s *Store) QueryInTx(ctx context.Context, query string, args ...any) (*RowSet, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	set, err := collectRows(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return set, nil
}

func collectRows(rows *sql.Rows) (*RowSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	set := &RowSet{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			val := values[i]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			row[col] = val
		}
		set.Rows = append(set.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// scanAll runs query and converts each row with scan.
func scanAll[T any](ctx context.Context, q querier, query string, scan func(*sql.Rows) (T, error), args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
