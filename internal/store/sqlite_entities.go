package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
)

const salesLinesQuery = `
	SELECT s.sale_id, s.customer_id, COALESCE(c.customer_name, ''),
	       s.unit_id, COALESCE(u.unit_name, ''), s.period,
	       COALESCE(s.quantity, 0), COALESCE(s.unit_price, 0),
	       COALESCE(s.total_revenue, COALESCE(s.quantity, 0) * COALESCE(s.unit_price, 0)),
	       COALESCE(s.forecast_scenario_id, ''),
	       u.base_price, COALESCE(u.bom_id, ''), COALESCE(u.bom_version, ''),
	       COALESCE(u.router_id, ''), COALESCE(u.router_version, '')
	FROM sales s
	LEFT JOIN customers c ON c.customer_id = s.customer_id
	LEFT JOIN units u ON u.unit_id = s.unit_id
	ORDER BY s.period, s.customer_id, s.unit_id, s.sale_id`

// ListSalesLines returns every sales line joined with its customer and product.
func (s *Store) ListSalesLines(ctx context.Context) ([]core.SalesLine, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	lines, err := scanAll(ctx, s.db, salesLinesQuery, func(rows *sql.Rows) (core.SalesLine, error) {
		var l core.SalesLine
		err := rows.Scan(
			&l.SaleID, &l.CustomerID, &l.CustomerName,
			&l.UnitID, &l.UnitName, &l.Period,
			&l.Quantity, &l.UnitPrice, &l.TotalRevenue, &l.ForecastScenarioID,
			&l.Product.BasePrice, &l.Product.BOMID, &l.Product.BOMVersion,
			&l.Product.RouterID, &l.Product.RouterVersion,
		)
		l.Product.UnitID = l.UnitID
		l.Product.UnitName = l.UnitName
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sales lines: %w", err)
	}
	return lines, nil
}

// ListBOMLines returns every bill-of-materials line. A missing material cost
// is derived from qty and unit price.
func (s *Store) ListBOMLines(ctx context.Context) ([]core.BOMLine, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	lines, err := scanAll(ctx, s.db, `
		SELECT bom_id, COALESCE(NULLIF(version, ''), '1.0'), line_number,
		       COALESCE(material_description, ''), COALESCE(qty, 0), COALESCE(unit, ''),
		       COALESCE(unit_price, 0),
		       COALESCE(material_cost, COALESCE(qty, 0) * COALESCE(unit_price, 0))
		FROM bom
		ORDER BY bom_id, version, line_number`,
		func(rows *sql.Rows) (core.BOMLine, error) {
			var l core.BOMLine
			err := rows.Scan(&l.BOMID, &l.Version, &l.LineNumber, &l.MaterialDescription,
				&l.Qty, &l.Unit, &l.UnitPrice, &l.MaterialCost)
			return l, err
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list bom lines: %w", err)
	}
	return lines, nil
}

// ListRouterOperations returns every routing step ordered by sequence.
func (s *Store) ListRouterOperations(ctx context.Context) ([]core.RouterOperation, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	ops, err := scanAll(ctx, s.db, `
		SELECT router_id, COALESCE(NULLIF(version, ''), '1.0'), sequence,
		       COALESCE(machine_id, ''), COALESCE(machine_minutes, 0),
		       COALESCE(labor_minutes, 0), COALESCE(labor_type_id, '')
		FROM router_operations
		ORDER BY router_id, version, sequence`,
		func(rows *sql.Rows) (core.RouterOperation, error) {
			var op core.RouterOperation
			err := rows.Scan(&op.RouterID, &op.Version, &op.Sequence, &op.MachineID,
				&op.MachineMinutes, &op.LaborMinutes, &op.LaborTypeID)
			return op, err
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list router operations: %w", err)
	}
	return ops, nil
}

// ListMachines returns all machines keyed by id.
func (s *Store) ListMachines(ctx context.Context) (map[string]core.Machine, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	machines, err := scanAll(ctx, s.db, `
		SELECT machine_id, machine_name, COALESCE(machine_rate, 0),
		       COALESCE(available_minutes_per_month, ?)
		FROM machines
		ORDER BY machine_id`,
		func(rows *sql.Rows) (core.Machine, error) {
			var m core.Machine
			err := rows.Scan(&m.MachineID, &m.MachineName, &m.MachineRate, &m.AvailableMinutesPerMonth)
			return m, err
		}, core.DefaultMachineCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}

	out := make(map[string]core.Machine, len(machines))
	for _, m := range machines {
		out[m.MachineID] = m
	}
	return out, nil
}

// ListLaborRates returns the hourly amount of each labor rate keyed by id.
func (s *Store) ListLaborRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	rates, err := scanAll(ctx, s.db, `
		SELECT rate_id, rate_name, COALESCE(rate_amount, 0)
		FROM labor_rates
		ORDER BY rate_id`,
		func(rows *sql.Rows) (core.LaborRate, error) {
			var r core.LaborRate
			err := rows.Scan(&r.RateID, &r.RateName, &r.RateAmount)
			return r, err
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list labor rates: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(rates))
	for _, r := range rates {
		out[r.RateID] = r.RateAmount
	}
	return out, nil
}

// AveragePayrollRate returns the mean hourly rate across payroll.
// Valid is false when no employee has a rate.
func (s *Store) AveragePayrollRate(ctx context.Context) (decimal.NullDecimal, error) {
	if s.db == nil {
		return decimal.NullDecimal{}, errNotOpened
	}
	var avg decimal.NullDecimal
	err := s.db.QueryRowContext(ctx,
		`SELECT AVG(hourly_rate) FROM payroll WHERE hourly_rate IS NOT NULL AND hourly_rate > 0`,
	).Scan(&avg)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("failed to average payroll rate: %w", err)
	}
	return avg, nil
}

// TableColumns returns the column names of table in declaration order.
func (s *Store) TableColumns(ctx context.Context, table string) ([]string, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	cols, err := scanAll(ctx, s.db, `SELECT name FROM pragma_table_info(?) ORDER BY cid`,
		func(rows *sql.Rows) (string, error) {
			var name string
			err := rows.Scan(&name)
			return name, err
		}, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return cols, nil
}

// CountRows returns the number of rows in table.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	if s.db == nil {
		return 0, errNotOpened
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
