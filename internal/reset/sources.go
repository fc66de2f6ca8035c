package reset

import (
	"slices"

	"github.com/leapstack-labs/bizforecast/internal/store"
	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
)

// Source binds one canonical flat file to the table it restores.
type Source struct {
	File      string
	Table     string
	Backfills []store.Backfill
}

var backfills = map[string][]store.Backfill{
	core.TableBOM: {
		{Column: "version", Value: core.DefaultVersion},
		{Column: "material_cost", Derive: product("qty", "unit_price")},
	},
	core.TableUnits: {
		{Column: "bom_version", Value: core.DefaultVersion},
		{Column: "router_version", Value: core.DefaultVersion},
	},
	core.TableRouterDefinitions: {
		{Column: "version", Value: core.DefaultVersion},
	},
	core.TableRouterOperations: {
		{Column: "version", Value: core.DefaultVersion},
		{Column: "labor_type_id", Value: core.DefaultLaborRateID},
	},
	core.TableMachines: {
		{Column: "available_minutes_per_month", Value: "9600"},
	},
	core.TableSales: {
		{Column: "total_revenue", Derive: product("quantity", "unit_price")},
	},
}

// Sources returns every flat file in load order, parents before children.
func Sources() []Source {
	tables := core.EntityTables()
	slices.Reverse(tables)

	out := make([]Source, 0, len(tables))
	for _, table := range tables {
		out = append(out, Source{
			File:      table + ".csv",
			Table:     table,
			Backfills: backfills[table],
		})
	}
	return out
}

// product derives a column as the product of two numeric cells.
func product(a, b string) func(map[string]string) string {
	return func(row map[string]string) string {
		x, err := decimal.NewFromString(row[a])
		if err != nil {
			return ""
		}
		y, err := decimal.NewFromString(row[b])
		if err != nil {
			return ""
		}
		return x.Mul(y).String()
	}
}
