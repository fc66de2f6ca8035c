// Package replay re-applies successful write statements from the execution
// log, in the order they originally ran.
package replay

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/bizforecast/internal/execlog"
	"github.com/leapstack-labs/bizforecast/pkg/core"
)

const savepoint = "replay_entry"

// Store is the subset of the relational store replay needs.
type Store interface {
	ReplayCandidates(ctx context.Context, filter core.ReplayFilter) ([]core.ExecutionLogEntry, error)
	BeginTx(ctx context.Context) (*sql.Tx, error)
}

// Engine replays logged statements against the entity tables. Replayed
// statements are never written back to the execution log.
type Engine struct {
	store  Store
	logger *slog.Logger
}

// New creates a replay engine. A nil logger discards output.
func New(s Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: s, logger: logger}
}

// Replay selects successful entries matching filter, ordered by
// (execution_date, log_id), and re-executes every write among them inside a
// single transaction. Each statement runs under its own savepoint so a
// failure only rolls back that statement; it is reported in the result and
// the replay moves on. The transaction commits once at the end.
func (e *Engine) Replay(ctx context.Context, filter core.ReplayFilter) (*core.ReplayResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	entries, err := e.store.ReplayCandidates(ctx, filter)
	if err != nil {
		return nil, err
	}

	res := &core.ReplayResult{Errors: []core.ReplayError{}}
	if len(entries) == 0 {
		return res, nil
	}

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, entry := range entries {
		if execlog.IsReadOnly(entry.SQLStatement) || execlog.IsTransactionControl(entry.SQLStatement) {
			res.SkippedCount++
			continue
		}

		if err := applyEntry(ctx, tx, entry.SQLStatement); err != nil {
			e.logger.Warn("replay statement failed", "log_id", entry.LogID, "error", err)
			res.FailedCount++
			res.Errors = append(res.Errors, core.ReplayError{
				LogID:        entry.LogID,
				SQLStatement: entry.SQLStatement,
				Error:        err.Error(),
			})
			continue
		}
		res.ReplayedCount++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replay: %w", err)
	}

	e.logger.Info("replay complete",
		"candidates", len(entries),
		"replayed", res.ReplayedCount,
		"skipped", res.SkippedCount,
		"failed", res.FailedCount,
	)
	return res, nil
}

func applyEntry(ctx context.Context, tx *sql.Tx, stmt string) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return fmt.Errorf("open savepoint: %w", err)
	}

	if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO "+savepoint); err != nil {
			return fmt.Errorf("%w (rollback to savepoint: %w)", execErr, err)
		}
		if _, err := tx.ExecContext(ctx, "RELEASE "+savepoint); err != nil {
			return fmt.Errorf("%w (release savepoint: %w)", execErr, err)
		}
		return execErr
	}

	if _, err := tx.ExecContext(ctx, "RELEASE "+savepoint); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
