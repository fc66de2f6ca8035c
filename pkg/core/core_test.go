package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBOMStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    BOMStrategy
		wantErr bool
	}{
		{in: "", want: BOMStrategyVersioned},
		{in: "versioned", want: BOMStrategyVersioned},
		{in: " GLOBAL ", want: BOMStrategyGlobal},
		{in: "latest", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBOMStrategy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBOMStrategy_CostKey(t *testing.T) {
	assert.Equal(t, "BOM-001@1.0", BOMStrategyVersioned.CostKey("BOM-001", ""))
	assert.Equal(t, "BOM-001@2.0", BOMStrategyVersioned.CostKey("BOM-001", "2.0"))
	assert.Equal(t, "BOM-001", BOMStrategyGlobal.CostKey("BOM-001", "2.0"))
}

func TestParseTargetDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "empty", in: "", want: ""},
		{name: "full timestamp", in: "2024-03-01 10:00:00", want: "2024-03-01 10:00:00"},
		{name: "date only covers the day", in: "2024-03-01", want: "2024-03-01 23:59:59"},
		{name: "rfc3339 normalized to utc", in: "2024-03-01T12:00:00+02:00", want: "2024-03-01 10:00:00"},
		{name: "garbage", in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTargetDate(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidFilter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 999, time.FixedZone("x", 3600))
	assert.Equal(t, "2024-01-02 02:04:05", FormatTimestamp(ts))
}

func TestErrorTaxonomy(t *testing.T) {
	stmtErr := fmt.Errorf("wrapped: %w", &StatementError{LogID: 7, SQL: "bad", Err: errors.New("syntax error")})
	assert.True(t, IsStatementError(stmtErr))
	assert.False(t, IsResetIncomplete(stmtErr))
	assert.Contains(t, stmtErr.Error(), "log_id=7")

	resetErr := fmt.Errorf("reset: %w", &ResetIncompleteError{Table: "sales", File: "sales.csv", Err: errors.New("missing")})
	assert.True(t, IsResetIncomplete(resetErr))
	assert.Contains(t, resetErr.Error(), "sales.csv")
}

func TestEntityTables_ChildrenBeforeParents(t *testing.T) {
	order := map[string]int{}
	for i, table := range EntityTables() {
		order[table] = i
	}

	children := map[string][]string{
		TableSales:              {TableCustomers, TableUnits, TableForecastScenarios},
		TableRouterOperations:   {TableRouterDefinitions, TableMachines},
		TableLoanPayments:       {TableLoans},
		TableExpenseAllocations: {TableExpenses},
		TableExpenses:           {TableExpenseCategories, TableForecastScenarios},
		TablePayroll:            {TableForecastScenarios},
	}
	for child, parents := range children {
		for _, parent := range parents {
			assert.Less(t, order[child], order[parent], "%s must be cleared before %s", child, parent)
		}
	}
}

func TestReplayFilter_Validate(t *testing.T) {
	assert.NoError(t, ReplayFilter{}.Validate())
	assert.NoError(t, ReplayFilter{MaxLogID: 7}.Validate())

	err := ReplayFilter{MaxLogID: -1}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}
