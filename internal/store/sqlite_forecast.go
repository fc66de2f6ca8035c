package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
)

var insertForecastResultSQL = func() string {
	cols := core.ForecastColumns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return "INSERT INTO forecast_results (" + strings.Join(cols, ", ") + ") VALUES (" + marks + ")"
}()

// ReplaceForecastResults swaps the whole forecast snapshot in one transaction.
// Readers see either the previous snapshot or the new one, never a mix.
func (s *Store) ReplaceForecastResults(ctx context.Context, results []core.ForecastResult) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM forecast_results`); err != nil {
		return fmt.Errorf("clear forecast results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertForecastResultSQL)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range results {
		if _, err := stmt.ExecContext(ctx, results[i].Values()...); err != nil {
			return fmt.Errorf("insert forecast result for sale %s: %w", results[i].SaleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Debug("replaced forecast results", "rows", len(results))
	return nil
}

// ListForecastResults returns saved results ordered by period, customer and unit.
func (s *Store) ListForecastResults(ctx context.Context, filter core.ResultFilter) ([]core.ForecastResult, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	results, err := scanAll(ctx, s.db, `
		SELECT result_id, COALESCE(sale_id, ''), period,
		       COALESCE(customer_id, ''), COALESCE(customer_name, ''),
		       COALESCE(unit_id, ''), COALESCE(unit_name, ''),
		       COALESCE(forecast_scenario_id, ''), COALESCE(quantity, 0),
		       COALESCE(unit_price, 0), COALESCE(total_revenue, 0),
		       COALESCE(material_cost, 0), COALESCE(labor_cost, 0),
		       COALESCE(machine_cost, 0), COALESCE(total_cost, 0),
		       COALESCE(gross_margin, 0), COALESCE(margin_percentage, 0),
		       forecast_date, bom_strategy
		FROM forecast_results
		WHERE (? = '' OR period = ?)
		ORDER BY period, customer_id, unit_id, result_id
		LIMIT ?`,
		scanForecastResult, filter.Period, filter.Period, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list forecast results: %w", err)
	}
	return results, nil
}

func scanForecastResult(rows *sql.Rows) (core.ForecastResult, error) {
	var r core.ForecastResult
	var strategy string
	err := rows.Scan(
		&r.ResultID, &r.SaleID, &r.Period,
		&r.CustomerID, &r.CustomerName, &r.UnitID, &r.UnitName,
		&r.ForecastScenarioID, &r.Quantity,
		&r.UnitPrice, &r.TotalRevenue,
		&r.MaterialCost, &r.LaborCost, &r.MachineCost, &r.TotalCost,
		&r.GrossMargin, &r.MarginPercentage,
		&r.ForecastDate, &strategy,
	)
	r.BOMStrategy = core.BOMStrategy(strategy)
	return r, err
}

// SummarizeForecastResults aggregates every saved row in the period, or all
// rows when period is empty. Money columns hold decimal text, so the sums are
// taken in Go rather than with SQL SUM, which would go through float64.
func (s *Store) SummarizeForecastResults(ctx context.Context, period string) (core.ForecastSummary, error) {
	if s.db == nil {
		return core.ForecastSummary{}, errNotOpened
	}

	type moneyRow struct {
		revenue, cost, margin, pct decimal.Decimal
	}
	rows, err := scanAll(ctx, s.db, `
		SELECT COALESCE(total_revenue, '0'), COALESCE(total_cost, '0'),
		       COALESCE(gross_margin, '0'), COALESCE(margin_percentage, '0')
		FROM forecast_results
		WHERE (? = '' OR period = ?)`,
		func(rows *sql.Rows) (moneyRow, error) {
			var r moneyRow
			err := rows.Scan(&r.revenue, &r.cost, &r.margin, &r.pct)
			return r, err
		}, period, period)
	if err != nil {
		return core.ForecastSummary{}, fmt.Errorf("failed to summarize forecast results: %w", err)
	}

	var sum core.ForecastSummary
	var pctTotal decimal.Decimal
	for _, r := range rows {
		sum.TotalRecords++
		sum.TotalRevenue = sum.TotalRevenue.Add(r.revenue)
		sum.TotalCost = sum.TotalCost.Add(r.cost)
		sum.TotalMargin = sum.TotalMargin.Add(r.margin)
		pctTotal = pctTotal.Add(r.pct)
	}
	if sum.TotalRecords > 0 {
		sum.AvgMarginPercentage = pctTotal.Div(decimal.NewFromInt(sum.TotalRecords))
	}
	return sum, nil
}

// LatestForecastDate returns the forecast_date of the saved snapshot, or ""
// when nothing has been computed yet.
func (s *Store) LatestForecastDate(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", errNotOpened
	}
	var date sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(forecast_date) FROM forecast_results`).Scan(&date); err != nil {
		return "", fmt.Errorf("failed to read forecast date: %w", err)
	}
	return date.String, nil
}
