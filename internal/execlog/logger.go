// Package execlog runs ad hoc SQL against the store and records every
// attempt, successful or not, in the append-only execution log.
package execlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/bizforecast/internal/store"
	"github.com/leapstack-labs/bizforecast/pkg/core"
)

// ErrEmptyStatement is the cause recorded when a request carries no SQL.
var ErrEmptyStatement = errors.New("empty sql statement")

// ErrTransactionControl is the cause recorded for BEGIN, COMMIT and the like.
// Every statement already runs in its own transaction.
var ErrTransactionControl = errors.New("transaction control statements are not allowed")

// Store is the subset of the relational store the logger needs.
type Store interface {
	QueryInTx(ctx context.Context, query string, args ...any) (*store.RowSet, error)
	ExecInTx(ctx context.Context, query string, args ...any) (int64, error)
	AppendExecutionLog(ctx context.Context, e *core.ExecutionLogEntry) (int64, error)
	ListExecutionLogs(ctx context.Context, filter core.LogFilter) ([]core.ExecutionLogEntry, error)
	SummarizeExecutionLogs(ctx context.Context, filter core.LogFilter) (core.LogSummary, error)
}

// Config holds execution logger configuration.
type Config struct {
	// Clock stamps execution_date (optional, uses time.Now)
	Clock func() time.Time
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Logger executes statements and appends one execution_log entry per call.
type Logger struct {
	store  Store
	clock  func() time.Time
	logger *slog.Logger
}

// Request is one statement submitted for execution.
type Request struct {
	SQL         string `json:"sql"`
	Description string `json:"description,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// Result is the outcome of a successful execution. Reads carry Columns and
// Rows; writes carry RowsAffected.
type Result struct {
	LogID           int64            `json:"log_id"`
	IsQuery         bool             `json:"is_query"`
	Columns         []string         `json:"columns,omitempty"`
	Rows            []map[string]any `json:"rows,omitempty"`
	RowsAffected    int64            `json:"rows_affected"`
	ExecutionTimeMS int64            `json:"execution_time_ms"`
}

// Logs is a filtered view of the execution log.
type Logs struct {
	Entries []core.ExecutionLogEntry `json:"entries"`
	Summary core.LogSummary          `json:"summary"`
}

// New creates an execution logger.
func New(s Store, cfg Config) *Logger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Logger{store: s, clock: clock, logger: logger}
}

// Execute runs req.SQL in its own transaction and records the outcome. A
// failing statement is still logged, with status error, and comes back as a
// *core.StatementError carrying the new log id. Transaction control
// statements are refused the same way, so the log entry is always written
// outside any user transaction.
func (l *Logger) Execute(ctx context.Context, req Request) (*Result, error) {
	sql := strings.TrimSpace(req.SQL)
	entry := core.ExecutionLogEntry{
		ExecutionDate: core.FormatTimestamp(l.clock()),
		SQLStatement:  sql,
		Description:   req.Description,
		UserID:        req.UserID,
		SessionID:     req.SessionID,
		Status:        core.StatusSuccess,
	}

	res := &Result{IsQuery: IsReadOnly(sql)}
	var execErr error

	start := time.Now()
	switch {
	case sql == "":
		execErr = ErrEmptyStatement
	case IsTransactionControl(sql):
		execErr = ErrTransactionControl
	case res.IsQuery:
		var rs *store.RowSet
		rs, execErr = l.store.QueryInTx(ctx, sql)
		if execErr == nil {
			res.Columns = rs.Columns
			res.Rows = rs.Rows
		}
	default:
		res.RowsAffected, execErr = l.store.ExecInTx(ctx, sql)
	}
	res.ExecutionTimeMS = time.Since(start).Milliseconds()

	entry.ExecutionTimeMS = res.ExecutionTimeMS
	entry.RowsAffected = res.RowsAffected
	if execErr != nil {
		entry.Status = core.StatusError
		entry.ErrorMessage = execErr.Error()
		entry.RowsAffected = 0
	}

	logID, err := l.store.AppendExecutionLog(ctx, &entry)
	if err != nil {
		l.logger.Error("failed to record execution", "error", err, "statement_error", execErr)
		if execErr != nil {
			return nil, fmt.Errorf("record failed statement: %w", errors.Join(err, &core.StatementError{SQL: sql, Err: execErr}))
		}
		return nil, fmt.Errorf("record execution: %w", err)
	}

	if execErr != nil {
		l.logger.Warn("statement failed",
			"log_id", logID,
			"user_id", req.UserID,
			"session_id", req.SessionID,
			"error", execErr,
		)
		return nil, &core.StatementError{LogID: logID, SQL: sql, Err: execErr}
	}

	res.LogID = logID
	l.logger.Debug("statement executed",
		"log_id", logID,
		"read_only", res.IsQuery,
		"rows_affected", res.RowsAffected,
		"duration_ms", res.ExecutionTimeMS,
	)
	return res, nil
}

// Logs returns matching entries, newest first, with a summary over every
// matching entry regardless of the limit.
func (l *Logger) Logs(ctx context.Context, filter core.LogFilter) (*Logs, error) {
	switch filter.Status {
	case "", core.StatusSuccess, core.StatusError:
	default:
		return nil, fmt.Errorf("%w: status %q (want success|error)", core.ErrInvalidFilter, filter.Status)
	}

	entries, err := l.store.ListExecutionLogs(ctx, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []core.ExecutionLogEntry{}
	}
	summary, err := l.store.SummarizeExecutionLogs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Logs{Entries: entries, Summary: summary}, nil
}
