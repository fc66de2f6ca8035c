package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leapstack-labs/bizforecast/pkg/core"
)

// ClearMode selects how ClearTables empties a table.
type ClearMode int

const (
	// DeleteRows keeps the table structure.
	DeleteRows ClearMode = iota
	// DropTables removes the tables entirely.
	DropTables
)

func (m ClearMode) String() string {
	if m == DropTables {
		return "drop"
	}
	return "delete"
}

// ClearStats counts what a clear removed.
type ClearStats struct {
	TablesCleared int   `json:"tables_cleared"`
	RowsCleared   int64 `json:"rows_cleared"`
}

// ClearTables empties tables in the order given, which must list children
// before parents. Foreign-key enforcement is switched off for the duration
// and the database is checked for orphans before the deletes commit, so a bad
// order rolls back and leaves every table as it was. Missing tables are
// skipped.
func (s *Store) ClearTables(ctx context.Context, tables []string, mode ClearMode) (ClearStats, error) {
	if s.db == nil {
		return ClearStats{}, errNotOpened
	}

	// The pragma is per connection, so everything runs on one pinned conn.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return ClearStats{}, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return ClearStats{}, fmt.Errorf("disable foreign keys: %w", err)
	}
	restored := false
	defer func() {
		if !restored {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA foreign_keys = ON")
		}
	}()

	stats, err := s.clearInTx(ctx, conn, tables, mode)
	if err != nil {
		return ClearStats{}, err
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return stats, fmt.Errorf("enable foreign keys: %w", err)
	}
	restored = true

	s.logger.Debug("cleared tables", "mode", mode.String(), "tables", stats.TablesCleared, "rows", stats.RowsCleared)
	return stats, nil
}

func (s *Store) clearInTx(ctx context.Context, conn *sql.Conn, tables []string, mode ClearMode) (ClearStats, error) {
	tx, err := RetryValue(ctx, s.retry, func(ctx context.Context) (*sql.Tx, error) {
		return conn.BeginTx(ctx, nil)
	})
	if err != nil {
		return ClearStats{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stats ClearStats
	for _, table := range tables {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&exists); err != nil {
			return ClearStats{}, fmt.Errorf("look up table %s: %w", table, err)
		}
		if exists == 0 {
			continue
		}

		var n int64
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
			return ClearStats{}, fmt.Errorf("count %s: %w", table, err)
		}

		stmt := "DELETE FROM " + quoteIdent(table)
		if mode == DropTables {
			stmt = "DROP TABLE " + quoteIdent(table)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return ClearStats{}, fmt.Errorf("clear %s: %w", table, err)
		}

		stats.TablesCleared++
		stats.RowsCleared += n
	}

	if err := checkForeignKeys(ctx, tx); err != nil {
		return ClearStats{}, err
	}
	if err := tx.Commit(); err != nil {
		return ClearStats{}, fmt.Errorf("commit transaction: %w", err)
	}
	return stats, nil
}

func checkForeignKeys(ctx context.Context, q querier) error {
	violations, err := scanAll(ctx, q, `PRAGMA foreign_key_check`, func(rows *sql.Rows) (string, error) {
		var table, parent string
		var rowid sql.NullInt64
		var fkid int64
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(rowid=%d)->%s", table, rowid.Int64, parent), nil
	})
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	if len(violations) > 0 {
		return fmt.Errorf("foreign key violations after clear: %s", strings.Join(violations, ", "))
	}
	return nil
}

// DropSchema drops every entity and system table plus the migration
// bookkeeping, leaving an empty database ready for Migrate.
func (s *Store) DropSchema(ctx context.Context) (ClearStats, error) {
	tables := append(core.EntityTables(), core.SystemTables()...)
	stats, err := s.ClearTables(ctx, tables, DropTables)
	if err != nil {
		return stats, err
	}
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS goose_db_version`); err != nil {
		return stats, fmt.Errorf("drop migration table: %w", err)
	}
	return stats, nil
}
