package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leapstack-labs/bizforecast/pkg/core"
)

const logColumns = `log_id, execution_date, sql_statement, description, user_id, session_id,
	execution_time_ms, rows_affected, status, error_message`

// AppendExecutionLog records one execution and returns its log id.
func (s *Store) AppendExecutionLog(ctx context.Context, e *core.ExecutionLogEntry) (int64, error) {
	if s.db == nil {
		return 0, errNotOpened
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_log
		(execution_date, sql_statement, description, user_id, session_id,
		 execution_time_ms, rows_affected, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ExecutionDate, e.SQLStatement, nullString(e.Description), nullString(e.UserID),
		nullString(e.SessionID), e.ExecutionTimeMS, e.RowsAffected, string(e.Status),
		nullString(e.ErrorMessage),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append execution log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read log id: %w", err)
	}
	e.LogID = id
	return id, nil
}

// ListExecutionLogs returns matching entries, newest first.
func (s *Store) ListExecutionLogs(ctx context.Context, filter core.LogFilter) ([]core.ExecutionLogEntry, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	where, args := logFilterClause(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	entries, err := scanAll(ctx, s.db,
		"SELECT "+logColumns+" FROM execution_log"+where+
			" ORDER BY execution_date DESC, log_id DESC LIMIT ?",
		scanLogEntry, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution logs: %w", err)
	}
	return entries, nil
}

// SummarizeExecutionLogs aggregates every entry matching filter; the limit is ignored.
func (s *Store) SummarizeExecutionLogs(ctx context.Context, filter core.LogFilter) (core.LogSummary, error) {
	if s.db == nil {
		return core.LogSummary{}, errNotOpened
	}

	where, args := logFilterClause(filter)
	var sum core.LogSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(rows_affected), 0),
		       COALESCE(AVG(execution_time_ms), 0.0)
		FROM execution_log`+where, args...,
	).Scan(&sum.TotalEntries, &sum.SuccessCount, &sum.ErrorCount, &sum.TotalRowsAffected, &sum.AvgExecutionTimeMS)
	if err != nil {
		return core.LogSummary{}, fmt.Errorf("failed to summarize execution logs: %w", err)
	}
	return sum, nil
}

// ReplayCandidates returns the successful entries selected by filter in
// replay order: execution_date ascending, then log_id ascending.
func (s *Store) ReplayCandidates(ctx context.Context, filter core.ReplayFilter) ([]core.ExecutionLogEntry, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	conds := []string{"status = ?"}
	args := []any{string(core.StatusSuccess)}
	if filter.TargetDate != "" {
		conds = append(conds, "execution_date <= ?")
		args = append(args, filter.TargetDate)
	}
	if filter.MaxLogID > 0 {
		conds = append(conds, "log_id <= ?")
		args = append(args, filter.MaxLogID)
	}
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, filter.SessionID)
	}

	entries, err := scanAll(ctx, s.db,
		"SELECT "+logColumns+" FROM execution_log WHERE "+strings.Join(conds, " AND ")+
			" ORDER BY execution_date ASC, log_id ASC",
		scanLogEntry, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select replay candidates: %w", err)
	}
	return entries, nil
}

func logFilterClause(f core.LogFilter) (string, []any) {
	var conds []string
	var args []any
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanLogEntry(rows *sql.Rows) (core.ExecutionLogEntry, error) {
	var e core.ExecutionLogEntry
	var desc, user, session, errMsg sql.NullString
	var status string
	err := rows.Scan(&e.LogID, &e.ExecutionDate, &e.SQLStatement, &desc, &user, &session,
		&e.ExecutionTimeMS, &e.RowsAffected, &status, &errMsg)
	e.Description = desc.String
	e.UserID = user.String
	e.SessionID = session.String
	e.ErrorMessage = errMsg.String
	e.Status = core.ExecutionStatus(status)
	return e, err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
