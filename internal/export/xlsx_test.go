package export

import (
	"bytes"
	"testing"

	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteForecastXLSX(t *testing.T) {
	saved := &core.SavedForecast{
		Columns: core.ForecastColumns(),
		Rows: []core.ForecastResult{{
			SaleID:           "SALE-001",
			Period:           "2024-01",
			CustomerID:       "CUST-001",
			CustomerName:     "Acme",
			UnitID:           "PROD-001",
			UnitName:         "Widget",
			Quantity:         10,
			UnitPrice:        decimal.NewFromInt(50),
			TotalRevenue:     decimal.NewFromInt(500),
			MaterialCost:     decimal.NewFromInt(250),
			LaborCost:        decimal.RequireFromString("87.50"),
			MachineCost:      decimal.NewFromInt(500),
			TotalCost:        decimal.RequireFromString("837.50"),
			GrossMargin:      decimal.RequireFromString("-337.50"),
			MarginPercentage: decimal.RequireFromString("-67.5"),
			ForecastDate:     "2024-03-01 09:30:00",
			BOMStrategy:      core.BOMStrategyVersioned,
		}},
		Summary: core.ForecastSummary{
			TotalRecords: 1,
			TotalRevenue: decimal.NewFromInt(500),
			TotalCost:    decimal.RequireFromString("837.50"),
			TotalMargin:  decimal.RequireFromString("-337.50"),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteForecastXLSX(&buf, saved))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{ForecastSheet, SummarySheet}, f.GetSheetList())

	rows, err := f.GetRows(ForecastSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, core.ForecastColumns(), rows[0])
	assert.Equal(t, "SALE-001", rows[1][0])
	assert.Equal(t, "837.5", rows[1][13])
	assert.Equal(t, "versioned", rows[1][17])

	total, err := f.GetCellValue(SummarySheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "-337.5", total)
}

func TestWriteForecastXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteForecastXLSX(&buf, &core.SavedForecast{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(ForecastSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")

	records, err := f.GetCellValue(SummarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "0", records)
}
