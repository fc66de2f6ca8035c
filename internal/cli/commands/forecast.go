package commands

import (
	"fmt"

	"github.com/leapstack-labs/bizforecast/internal/cli/output"
	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewForecastCommand creates the forecast command.
func NewForecastCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "forecast",
		Short: "Compute the cost and margin forecast",
		Long: `Compute per-sale material, machine and labor cost, gross margin and
margin percentage from the current data, and replace the saved forecast
snapshot with the result.`,
		Example: `  # Compute with the configured BOM strategy
  bizforecast forecast

  # Sum every BOM version together
  bizforecast forecast --bom-strategy global -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			snap, err := cmdCtx.Engine.ComputeForecast(cmd.Context())
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.IsJSON() {
				return r.JSON(snap)
			}
			for _, w := range snap.Warnings {
				r.Warnf("%s", w)
			}
			renderForecastRows(r, snap.Results)
			r.Printf("forecast_date=%s strategy=%s avg_labor_rate=%s\n",
				snap.ForecastDate, snap.BOMStrategy, snap.AvgLaborRate.StringFixed(2))
			return nil
		},
	}
}

// ResultsOptions holds options for the results command.
type ResultsOptions struct {
	Period string
	Limit  int
}

// NewResultsCommand creates the results command.
func NewResultsCommand() *cobra.Command {
	opts := &ResultsOptions{}

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show the saved forecast snapshot",
		Example: `  bizforecast results
  bizforecast results --period 2024-01 --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			saved, err := cmdCtx.Engine.SavedForecast(cmd.Context(), core.ResultFilter{
				Period: opts.Period,
				Limit:  opts.Limit,
			})
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.IsJSON() {
				return r.JSON(saved)
			}
			renderForecastRows(r, saved.Rows)
			s := saved.Summary
			r.KeyValues([][2]any{
				{"records", s.TotalRecords},
				{"revenue", s.TotalRevenue.StringFixed(2)},
				{"cost", s.TotalCost.StringFixed(2)},
				{"margin", s.TotalMargin.StringFixed(2)},
				{"avg margin %", s.AvgMarginPercentage.StringFixed(2)},
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Period, "period", "", "Only show results for this period (YYYY-MM)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of rows (0 for all)")

	return cmd
}

// NewUtilizationCommand creates the utilization command.
func NewUtilizationCommand() *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "utilization",
		Short: "Report machine capacity utilization",
		Long: `Report the machine minutes the sales forecast requires per period
against each machine's available monthly minutes.`,
		Example: `  bizforecast utilization --period 2024-01`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			loads, err := cmdCtx.Engine.Utilization(cmd.Context(), period)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.IsJSON() {
				return r.JSON(loads)
			}
			rows := make([][]any, 0, len(loads))
			for _, l := range loads {
				flag := ""
				if l.CapacityExceeded {
					flag = "EXCEEDED"
				}
				rows = append(rows, []any{
					l.Period, l.MachineID, l.MachineName,
					l.RequiredMinutes.StringFixed(2), l.AvailableMinutes,
					l.Utilization.StringFixed(2) + "%", flag,
				})
			}
			r.Table([]string{"period", "machine", "name", "required min", "available min", "utilization", ""}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "Only report this period (YYYY-MM)")

	return cmd
}

func renderForecastRows(r *output.Renderer, results []core.ForecastResult) {
	rows := make([][]any, 0, len(results))
	for _, res := range results {
		rows = append(rows, []any{
			res.SaleID, res.Period, res.CustomerName, res.UnitID, res.Quantity,
			money(res.TotalRevenue), money(res.MaterialCost), money(res.MachineCost),
			money(res.LaborCost), money(res.TotalCost), money(res.GrossMargin),
			fmt.Sprintf("%s%%", res.MarginPercentage.StringFixed(2)),
		})
	}
	r.Table([]string{
		"sale", "period", "customer", "unit", "qty", "revenue", "material",
		"machine", "labor", "total cost", "margin", "margin %",
	}, rows)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
