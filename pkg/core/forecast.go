package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BOMStrategy selects how bill-of-materials and routing lines are scoped
// when aggregating per-unit cost.
type BOMStrategy string

const (
	// BOMStrategyVersioned sums only the lines matching the product's version.
	BOMStrategyVersioned BOMStrategy = "versioned"
	// BOMStrategyGlobal sums every version of an id together.
	BOMStrategyGlobal BOMStrategy = "global"
)

// ParseBOMStrategy parses a strategy name; empty means versioned.
func ParseBOMStrategy(s string) (BOMStrategy, error) {
	switch BOMStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", BOMStrategyVersioned:
		return BOMStrategyVersioned, nil
	case BOMStrategyGlobal:
		return BOMStrategyGlobal, nil
	}
	return "", fmt.Errorf("unknown bom strategy %q (want versioned|global)", s)
}

// CostKey builds the aggregation key for an id/version pair under the strategy.
func (s BOMStrategy) CostKey(id, version string) string {
	if s == BOMStrategyGlobal {
		return id
	}
	if version == "" {
		version = DefaultVersion
	}
	return id + "@" + version
}

// ForecastResult is one persisted row of a forecast snapshot.
type ForecastResult struct {
	ResultID           int64           `json:"result_id,omitempty"`
	SaleID             string          `json:"sale_id"`
	Period             string          `json:"period"`
	CustomerID         string          `json:"customer_id"`
	CustomerName       string          `json:"customer_name"`
	UnitID             string          `json:"unit_id"`
	UnitName           string          `json:"unit_name"`
	ForecastScenarioID string          `json:"forecast_scenario_id,omitempty"`
	Quantity           int64           `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	MaterialCost       decimal.Decimal `json:"material_cost"`
	LaborCost          decimal.Decimal `json:"labor_cost"`
	MachineCost        decimal.Decimal `json:"machine_cost"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	GrossMargin        decimal.Decimal `json:"gross_margin"`
	MarginPercentage   decimal.Decimal `json:"margin_percentage"`
	ForecastDate       string          `json:"forecast_date"`
	BOMStrategy        BOMStrategy     `json:"bom_strategy"`
}

// ForecastColumns lists the persisted columns of forecast_results, in order.
func ForecastColumns() []string {
	return []string{
		"sale_id", "period", "customer_id", "customer_name", "unit_id", "unit_name",
		"forecast_scenario_id", "quantity", "unit_price", "total_revenue",
		"material_cost", "labor_cost", "machine_cost", "total_cost",
		"gross_margin", "margin_percentage", "forecast_date", "bom_strategy",
	}
}

// Values returns the row in ForecastColumns order.
func (r *ForecastResult) Values() []any {
	var scenario any
	if r.ForecastScenarioID != "" {
		scenario = r.ForecastScenarioID
	}
	return []any{
		r.SaleID, r.Period, r.CustomerID, r.CustomerName, r.UnitID, r.UnitName,
		scenario, r.Quantity, r.UnitPrice, r.TotalRevenue,
		r.MaterialCost, r.LaborCost, r.MachineCost, r.TotalCost,
		r.GrossMargin, r.MarginPercentage, r.ForecastDate, string(r.BOMStrategy),
	}
}

// ForecastSnapshot is the outcome of one forecast computation.
type ForecastSnapshot struct {
	SalesForecast []SalesLine                `json:"sales_forecast"`
	Results       []ForecastResult           `json:"forecast_results"`
	Columns       []string                   `json:"forecast_columns"`
	ForecastDate  string                     `json:"forecast_date"`
	BOMCosts      map[string]decimal.Decimal `json:"bom_costs"`
	LaborRates    map[string]decimal.Decimal `json:"labor_rates"`
	AvgLaborRate  decimal.Decimal            `json:"avg_labor_rate"`
	BOMStrategy   BOMStrategy                `json:"bom_strategy"`
	Warnings      []string                   `json:"warnings,omitempty"`
}

// ResultFilter narrows saved forecast results.
type ResultFilter struct {
	Period string
	Limit  int
}

// ForecastSummary aggregates saved forecast results.
type ForecastSummary struct {
	TotalRecords        int64           `json:"total_records"`
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	TotalMargin         decimal.Decimal `json:"total_margin"`
	AvgMarginPercentage decimal.Decimal `json:"avg_margin_percentage"`
}

// SavedForecast is the most recent persisted snapshot.
type SavedForecast struct {
	Rows    []ForecastResult `json:"rows"`
	Columns []string         `json:"columns"`
	Summary ForecastSummary  `json:"summary"`
}

// MachineLoad reports how much of a machine's monthly capacity a period consumes.
type MachineLoad struct {
	Period           string          `json:"period"`
	MachineID        string          `json:"machine_id"`
	MachineName      string          `json:"machine_name"`
	RequiredMinutes  decimal.Decimal `json:"required_minutes"`
	AvailableMinutes int64           `json:"available_minutes"`
	Utilization      decimal.Decimal `json:"utilization_percentage"`
	CapacityExceeded bool            `json:"capacity_exceeded"`
}
