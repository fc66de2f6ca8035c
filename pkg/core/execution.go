package core

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the text layout of execution_date and forecast_date.
// It sorts lexicographically in time order.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTargetDate turns a user supplied bound into an inclusive upper bound
// comparable against execution_date. Date-only input covers the whole day.
func ParseTargetDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t.Format(TimestampLayout), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Add(24*time.Hour - time.Second).Format(TimestampLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return FormatTimestamp(t), nil
	}
	return "", fmt.Errorf("%w: target date %q", ErrInvalidFilter, s)
}

// ExecutionStatus is the outcome recorded for a logged statement.
type ExecutionStatus string

// Execution statuses.
const (
	StatusSuccess ExecutionStatus = "success"
	StatusError   ExecutionStatus = "error"
)

// ExecutionLogEntry is one row of the append-only execution log.
type ExecutionLogEntry struct {
	LogID           int64           `json:"log_id"`
	ExecutionDate   string          `json:"execution_date"`
	SQLStatement    string          `json:"sql_statement"`
	Description     string          `json:"description,omitempty"`
	UserID          string          `json:"user_id,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
	ExecutionTimeMS int64           `json:"execution_time_ms"`
	RowsAffected    int64           `json:"rows_affected"`
	Status          ExecutionStatus `json:"status"`
	ErrorMessage    string          `json:"error_message,omitempty"`
}

// LogFilter narrows execution log listings.
type LogFilter struct {
	Limit     int
	UserID    string
	SessionID string
	Status    ExecutionStatus
}

// LogSummary aggregates the entries matching a LogFilter, ignoring its limit.
type LogSummary struct {
	TotalEntries       int64   `json:"total_entries"`
	SuccessCount       int64   `json:"success_count"`
	ErrorCount         int64   `json:"error_count"`
	TotalRowsAffected  int64   `json:"total_rows_affected"`
	AvgExecutionTimeMS float64 `json:"avg_execution_time_ms"`
}

// ReplayFilter selects which successful log entries to re-apply.
// TargetDate is an inclusive bound in TimestampLayout; zero values mean no bound.
type ReplayFilter struct {
	TargetDate string
	MaxLogID   int64
	UserID     string
	SessionID  string
}

// Validate rejects bounds no log entry could satisfy.
func (f ReplayFilter) Validate() error {
	if f.MaxLogID < 0 {
		return fmt.Errorf("%w: max_log_id must not be negative", ErrInvalidFilter)
	}
	return nil
}

// ReplayError records one statement that failed during replay.
type ReplayError struct {
	LogID        int64  `json:"log_id"`
	SQLStatement string `json:"sql_statement"`
	Error        string `json:"error"`
}

// ReplayResult reports the outcome of a replay run.
type ReplayResult struct {
	ReplayedCount int           `json:"replayed_count"`
	SkippedCount  int           `json:"skipped_count"`
	FailedCount   int           `json:"failed_count"`
	Errors        []ReplayError `json:"errors"`
}
