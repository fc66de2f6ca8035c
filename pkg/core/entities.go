package core

import "github.com/shopspring/decimal"

// Entity tables, listed children before parents. Clearing walks this order;
// loading walks it in reverse.
const (
	TableSales              = "sales"
	TableBOM                = "bom"
	TableRouterOperations   = "router_operations"
	TableLoanPayments       = "loan_payments"
	TableExpenseAllocations = "expense_allocations"
	TablePayroll            = "payroll"
	TableExpenses           = "expenses"
	TableRouterDefinitions  = "router_definitions"
	TableCustomers          = "customers"
	TableUnits              = "units"
	TableMachines           = "machines"
	TableLaborRates         = "labor_rates"
	TableLoans              = "loans"
	TableExpenseCategories  = "expense_categories"
	TableForecastScenarios  = "forecast_scenarios"

	TableForecastResults = "forecast_results"
	TableExecutionLog    = "execution_log"
)

// EntityTables returns the entity tables in dependency order, children first.
func EntityTables() []string {
	return []string{
		TableSales,
		TableBOM,
		TableRouterOperations,
		TableLoanPayments,
		TableExpenseAllocations,
		TablePayroll,
		TableExpenses,
		TableRouterDefinitions,
		TableCustomers,
		TableUnits,
		TableMachines,
		TableLaborRates,
		TableLoans,
		TableExpenseCategories,
		TableForecastScenarios,
	}
}

// SystemTables returns the tables owned by the engines rather than the flat files.
func SystemTables() []string {
	return []string{TableForecastResults, TableExecutionLog}
}

// Default values applied when a flat file omits a column.
const (
	DefaultVersion          = "1.0"
	DefaultLaborRateID      = "LABOR-STD"
	DefaultMachineCapacity  = 9600
	DefaultFallbackHourRate = "25.00"
)

// Product is a sellable unit with pointers to its BOM and routing.
type Product struct {
	UnitID        string
	UnitName      string
	BasePrice     decimal.NullDecimal
	BOMID         string
	BOMVersion    string
	RouterID      string
	RouterVersion string
}

// SalesLine is one forecast demand line joined with its customer and product.
type SalesLine struct {
	SaleID             string          `json:"sale_id"`
	CustomerID         string          `json:"customer_id"`
	CustomerName       string          `json:"customer_name"`
	UnitID             string          `json:"unit_id"`
	UnitName           string          `json:"unit_name"`
	Period             string          `json:"period"`
	Quantity           int64           `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TotalRevenue       decimal.Decimal `json:"total_revenue"`
	ForecastScenarioID string          `json:"forecast_scenario_id,omitempty"`
	Product            Product         `json:"-"`
}

// BOMLine is one material line of a bill of materials.
type BOMLine struct {
	BOMID               string
	Version             string
	LineNumber          int64
	MaterialDescription string
	Qty                 decimal.Decimal
	Unit                string
	UnitPrice           decimal.Decimal
	MaterialCost        decimal.Decimal
}

// RouterOperation is one step in a manufacturing routing.
type RouterOperation struct {
	RouterID       string
	Version        string
	Sequence       int64
	MachineID      string
	MachineMinutes decimal.Decimal
	LaborMinutes   decimal.Decimal
	LaborTypeID    string
}

// Machine is a production resource with an hourly rate and monthly capacity.
type Machine struct {
	MachineID                string
	MachineName              string
	MachineRate              decimal.Decimal
	AvailableMinutesPerMonth int64
}

// LaborRate is an hourly rate for a labor type.
type LaborRate struct {
	RateID     string
	RateName   string
	RateAmount decimal.Decimal
}
