// Package export writes saved forecast results to spreadsheet files.
package export

import (
	"fmt"
	"io"

	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	ForecastSheet = "Forecast"
	SummarySheet  = "Summary"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteForecastXLSX writes saved as a workbook with one row per result on the
// Forecast sheet and the aggregate figures on the Summary sheet.
func WriteForecastXLSX(w io.Writer, saved *core.SavedForecast) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ForecastSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	columns := saved.Columns
	if len(columns) == 0 {
		columns = core.ForecastColumns()
	}
	if err := setRow(f, ForecastSheet, 1, toAny(columns)); err != nil {
		return err
	}
	for i := range saved.Rows {
		if err := setRow(f, ForecastSheet, i+2, cellValues(&saved.Rows[i])); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	sum := saved.Summary
	summary := [][]any{
		{"total_records", sum.TotalRecords},
		{"total_revenue", number(sum.TotalRevenue)},
		{"total_cost", number(sum.TotalCost)},
		{"total_margin", number(sum.TotalMargin)},
		{"avg_margin_percentage", number(sum.AvgMarginPercentage)},
	}
	for i, row := range summary {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

// cellValues mirrors ForecastResult.Values with decimals as numbers.
func cellValues(r *core.ForecastResult) []any {
	values := r.Values()
	for i, v := range values {
		switch d := v.(type) {
		case decimal.Decimal:
			values[i] = number(d)
		case nil:
			values[i] = ""
		}
	}
	return values
}

func number(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
