package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/bizforecast/internal/store"
	"github.com/leapstack-labs/bizforecast/internal/testutil"
	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedLog appends a log entry directly so tests control execution_date.
func seedLog(t *testing.T, s *store.Store, date, sql string, status core.ExecutionStatus, user string) int64 {
	t.Helper()
	id, err := s.AppendExecutionLog(context.Background(), &core.ExecutionLogEntry{
		ExecutionDate: date,
		SQLStatement:  sql,
		UserID:        user,
		SessionID:     "sess-" + user,
		Status:        status,
	})
	require.NoError(t, err)
	return id
}

func customerName(t *testing.T, s *store.Store, id string) string {
	t.Helper()
	rs, err := s.Query(context.Background(), `SELECT customer_name FROM customers WHERE customer_id = ?`, id)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	return rs.Rows[0]["customer_name"].(string)
}

func TestReplay_OrdersByDateThenLogID(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	// C is logged first but ran last; A and B share a timestamp.
	seedLog(t, s, "2024-01-01 00:00:02", `UPDATE customers SET customer_name = customer_name || '-C' WHERE customer_id = 'X'`, core.StatusSuccess, "u")
	seedLog(t, s, "2024-01-01 00:00:01", `INSERT INTO customers (customer_id, customer_name) VALUES ('X', 'A')`, core.StatusSuccess, "u")
	seedLog(t, s, "2024-01-01 00:00:01", `UPDATE customers SET customer_name = customer_name || '-B' WHERE customer_id = 'X'`, core.StatusSuccess, "u")

	res, err := New(s, testutil.NewTestLogger(t)).Replay(ctx, core.ReplayFilter{TargetDate: "2024-01-01 00:00:02"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ReplayedCount)
	assert.Zero(t, res.FailedCount)
	assert.Empty(t, res.Errors)

	assert.Equal(t, "A-B-C", customerName(t, s, "X"))
}

func TestReplay_ReadOnlyEntriesOnly(t *testing.T) {
	s := testutil.NewStore(t)

	seedLog(t, s, "2024-01-01 00:00:01", "SELECT * FROM customers", core.StatusSuccess, "u")
	seedLog(t, s, "2024-01-01 00:00:02", "-- audit\nSELECT COUNT(*) FROM sales", core.StatusSuccess, "u")
	seedLog(t, s, "2024-01-01 00:00:03", "PRAGMA foreign_keys", core.StatusSuccess, "u")

	res, err := New(s, nil).Replay(context.Background(), core.ReplayFilter{})
	require.NoError(t, err)
	assert.Zero(t, res.ReplayedCount)
	assert.Zero(t, res.FailedCount)
	assert.Equal(t, 3, res.SkippedCount)
}

func TestReplay_WithClauseWrites(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	seedLog(t, s, "2024-01-01 00:00:01", `WITH n AS (SELECT 'W' AS id) INSERT INTO customers (customer_id, customer_name) SELECT id, 'w' FROM n`, core.StatusSuccess, "u")
	seedLog(t, s, "2024-01-01 00:00:02", `WITH n AS (SELECT 1) SELECT * FROM n`, core.StatusSuccess, "u")
	seedLog(t, s, "2024-01-01 00:00:03", `BEGIN`, core.StatusSuccess, "u")

	res, err := New(s, nil).Replay(ctx, core.ReplayFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReplayedCount)
	assert.Equal(t, 2, res.SkippedCount)
	assert.Zero(t, res.FailedCount)
	assert.Equal(t, "w", customerName(t, s, "W"))
}

func TestReplay_FailureIsolation(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	seedLog(t, s, "2024-01-01 00:00:01", `INSERT INTO customers (customer_id, customer_name) VALUES ('A', 'a')`, core.StatusSuccess, "u")
	bad := seedLog(t, s, "2024-01-01 00:00:02", `INSERT INTO customers (customer_id, customer_name) VALUES ('A', 'dup')`, core.StatusSuccess, "u")
	seedLog(t, s, "2024-01-01 00:00:03", `INSERT INTO customers (customer_id, customer_name) VALUES ('B', 'b')`, core.StatusSuccess, "u")

	res, err := New(s, nil).Replay(ctx, core.ReplayFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ReplayedCount)
	assert.Equal(t, 1, res.FailedCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, bad, res.Errors[0].LogID)
	assert.Contains(t, res.Errors[0].SQLStatement, "'dup'")
	assert.NotEmpty(t, res.Errors[0].Error)

	n, err := s.CountRows(ctx, core.TableCustomers)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, "a", customerName(t, s, "A"))
}

func TestReplay_PartialStatementRolledBack(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	// The second row violates the primary key, so the first row of the same
	// statement must not survive either.
	seedLog(t, s, "2024-01-01 00:00:01", `INSERT INTO customers (customer_id, customer_name) VALUES ('A', 'a')`, core.StatusSuccess, "u")
	seedLog(t, s, "2024-01-01 00:00:02", `INSERT INTO customers (customer_id, customer_name) VALUES ('B', 'b'), ('A', 'again')`, core.StatusSuccess, "u")

	res, err := New(s, nil).Replay(ctx, core.ReplayFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedCount)

	n, err := s.CountRows(ctx, core.TableCustomers)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestReplay_Filters(t *testing.T) {
	insert := func(id string) string {
		return `INSERT INTO customers (customer_id, customer_name) VALUES ('` + id + `', 'n')`
	}

	tests := []struct {
		name   string
		filter core.ReplayFilter
		want   int
	}{
		{"all", core.ReplayFilter{}, 4},
		{"target date inclusive", core.ReplayFilter{TargetDate: "2024-01-02 00:00:00"}, 2},
		{"max log id", core.ReplayFilter{MaxLogID: 3}, 2},
		{"user", core.ReplayFilter{UserID: "bob"}, 2},
		{"session", core.ReplayFilter{SessionID: "sess-alice"}, 2},
		{"combined", core.ReplayFilter{UserID: "alice", TargetDate: "2024-01-01 23:59:59"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testutil.NewStore(t)
			seedLog(t, s, "2024-01-01 00:00:00", insert("A"), core.StatusSuccess, "alice")
			seedLog(t, s, "2024-01-02 00:00:00", insert("B"), core.StatusSuccess, "bob")
			seedLog(t, s, "2024-01-02 12:00:00", insert("E"), core.StatusError, "bob")
			seedLog(t, s, "2024-01-03 00:00:00", insert("C"), core.StatusSuccess, "alice")
			seedLog(t, s, "2024-01-04 00:00:00", insert("D"), core.StatusSuccess, "bob")

			res, err := New(s, nil).Replay(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.ReplayedCount)
		})
	}
}

func TestReplay_NeverRelogs(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()

	seedLog(t, s, "2024-01-01 00:00:01", `INSERT INTO customers (customer_id, customer_name) VALUES ('A', 'a')`, core.StatusSuccess, "u")
	seedLog(t, s, "2024-01-01 00:00:02", `SELECT 1`, core.StatusSuccess, "u")

	_, err := New(s, nil).Replay(ctx, core.ReplayFilter{})
	require.NoError(t, err)

	n, err := s.CountRows(ctx, core.TableExecutionLog)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestReplay_NegativeMaxLogID(t *testing.T) {
	s := testutil.NewStore(t)
	seedLog(t, s, "2024-01-01 00:00:01", `INSERT INTO customers (customer_id, customer_name) VALUES ('A', 'a')`, core.StatusSuccess, "u")

	_, err := New(s, nil).Replay(context.Background(), core.ReplayFilter{MaxLogID: -1})
	require.ErrorIs(t, err, core.ErrInvalidFilter)

	n, err := s.CountRows(context.Background(), core.TableCustomers)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplay_NothingToDo(t *testing.T) {
	s := testutil.NewStore(t)

	res, err := New(s, nil).Replay(context.Background(), core.ReplayFilter{})
	require.NoError(t, err)
	assert.Zero(t, res.ReplayedCount)
	assert.NotNil(t, res.Errors)
}

func TestReplay_CommitsOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{
		"log_id", "execution_date", "sql_statement", "description", "user_id", "session_id",
		"execution_time_ms", "rows_affected", "status", "error_message",
	}).
		AddRow(1, "2024-01-01 00:00:00", "DELETE FROM sales", nil, nil, nil, 1, 3, "success", nil).
		AddRow(2, "2024-01-01 00:00:01", "DELETE FROM bom", nil, nil, nil, 1, 2, "success", nil)

	mock.ExpectQuery("FROM execution_log").WillReturnRows(rows)
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT replay_entry").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM sales").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("RELEASE replay_entry").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT replay_entry").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM bom").WillReturnError(errors.New("no such table: bom"))
	mock.ExpectExec("ROLLBACK TO replay_entry").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE replay_entry").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	res, err := New(store.NewWithDB(db, store.Options{}), nil).Replay(context.Background(), core.ReplayFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReplayedCount)
	assert.Equal(t, 1, res.FailedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
