package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/bizforecast/internal/cli/output"
	"github.com/leapstack-labs/bizforecast/internal/reset"
	"github.com/leapstack-labs/bizforecast/internal/store"
	"github.com/leapstack-labs/bizforecast/pkg/core"
	"github.com/spf13/cobra"
)

// Health check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the data for problems that distort the forecast",
		Long: `Inspect the flat files and the working database for gaps that make the
cost engine fall back or produce zeros: missing CSV files, units without
BOM or routing lines, labor types without a rate, sales without quantity,
machines without capacity and failed statements in the execution log.`,
		Example: `  bizforecast doctor
  bizforecast doctor -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := buildDoctorOutput(cmd.Context(), cmdCtx.Engine.Store(), cmdCtx.Cfg.DataDir)
			if err != nil {
				return err
			}

			r := cmdCtx.Renderer
			if r.IsJSON() {
				return r.JSON(out)
			}
			renderDoctor(r, out)
			return nil
		},
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Database        string           `json:"database"`
	MigrationLevel  int64            `json:"migration_version"`
	RowCounts       map[string]int64 `json:"row_counts"`
	HealthChecks    []HealthCheck    `json:"health_checks"`
	Score           int              `json:"score"`
	Recommendations []string         `json:"recommendations"`
	IssueCount      int              `json:"issue_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

// dataRule finds offending rows with a query returning one text column.
type dataRule struct {
	id       string
	name     string
	group    string
	severity string
	query    string
	advice   string
}

var dataRules = []dataRule{
	{
		id: "DF02", name: "units without BOM lines", group: "costing", severity: statusWarn,
		query: `SELECT u.unit_id FROM units u
			WHERE u.bom_id IS NOT NULL AND u.bom_id <> ''
			AND NOT EXISTS (SELECT 1 FROM bom b WHERE b.bom_id = u.bom_id
				AND b.version = COALESCE(NULLIF(u.bom_version, ''), '1.0'))
			ORDER BY u.unit_id`,
		advice: "Add bom.csv lines for each unit's bom_id and bom_version, or material cost is zero",
	},
	{
		id: "DF03", name: "units without routing", group: "costing", severity: statusWarn,
		query: `SELECT u.unit_id FROM units u
			WHERE u.router_id IS NOT NULL AND u.router_id <> ''
			AND NOT EXISTS (SELECT 1 FROM router_operations o WHERE o.router_id = u.router_id
				AND o.version = COALESCE(NULLIF(u.router_version, ''), '1.0'))
			ORDER BY u.unit_id`,
		advice: "Add router_operations.csv steps for each unit's router, or machine and labor cost is zero",
	},
	{
		id: "DF04", name: "labor types without a rate", group: "costing", severity: statusWarn,
		query: `SELECT DISTINCT COALESCE(NULLIF(o.labor_type_id, ''), 'LABOR-STD') FROM router_operations o
			WHERE NOT EXISTS (SELECT 1 FROM labor_rates r
				WHERE r.rate_id = COALESCE(NULLIF(o.labor_type_id, ''), 'LABOR-STD'))
			ORDER BY 1`,
		advice: "Add labor_rates.csv entries so labor cost does not fall back to the average payroll rate",
	},
	{
		id: "DF05", name: "sales without quantity", group: "revenue", severity: statusWarn,
		query:  `SELECT sale_id FROM sales WHERE COALESCE(quantity, 0) <= 0 ORDER BY sale_id`,
		advice: "Sales with zero quantity contribute no revenue or cost; remove or complete them",
	},
	{
		id: "DF06", name: "machines without capacity", group: "capacity", severity: statusError,
		query: `SELECT machine_id FROM machines
			WHERE COALESCE(available_minutes_per_month, 0) <= 0 ORDER BY machine_id`,
		advice: "Set available_minutes_per_month on every machine so utilization can be computed",
	},
	{
		id: "DF07", name: "failed logged statements", group: "history", severity: statusWarn,
		query: `SELECT 'log ' || log_id || ': ' || COALESCE(error_message, '') FROM execution_log
			WHERE status = 'error' ORDER BY log_id`,
		advice: "Review failed statements with 'bizforecast logs --status error'",
	},
}

func buildDoctorOutput(ctx context.Context, s *store.Store, dataDir string) (*DoctorOutput, error) {
	version, err := s.MigrationVersion(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, table := range core.EntityTables() {
		n, err := s.CountRows(ctx, table)
		if err != nil {
			return nil, err
		}
		counts[table] = n
	}

	checks := []HealthCheck{checkFlatFiles(dataDir)}
	for _, rule := range dataRules {
		check, err := runDataRule(ctx, s, rule)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", rule.id, err)
		}
		checks = append(checks, check)
	}

	out := &DoctorOutput{
		Database:        s.Path(),
		MigrationLevel:  version,
		RowCounts:       counts,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
	}
	for _, c := range checks {
		out.IssueCount += c.IssueCount
	}
	return out, nil
}

func checkFlatFiles(dataDir string) HealthCheck {
	check := HealthCheck{RuleID: "DF01", Name: "flat files present", Group: "files", Status: statusPass}
	for _, src := range reset.Sources() {
		path := filepath.Join(dataDir, src.File)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			check.Details = append(check.Details, src.File)
		}
	}
	if check.IssueCount = len(check.Details); check.IssueCount > 0 {
		check.Status = statusError
	}
	return check
}

func runDataRule(ctx context.Context, s *store.Store, rule dataRule) (HealthCheck, error) {
	check := HealthCheck{RuleID: rule.id, Name: rule.name, Group: rule.group, Status: statusPass}

	rs, err := s.Query(ctx, rule.query)
	if err != nil {
		return check, err
	}
	col := rs.Columns[0]
	for _, row := range rs.Rows {
		check.Details = append(check.Details, output.FormatValue(row[col]))
	}
	if check.IssueCount = len(check.Details); check.IssueCount > 0 {
		check.Status = rule.severity
	}
	return check, nil
}

// calculateHealthScore computes a health score from 0-100. Every issue
// costs five points; errors count double.
func calculateHealthScore(checks []HealthCheck) int {
	score := 100
	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= check.IssueCount * 10
		case statusWarn:
			score -= check.IssueCount * 5
		}
	}
	return max(score, 0)
}

// generateRecommendations lists advice for every failing check, most
// severe first.
func generateRecommendations(checks []HealthCheck) []string {
	var errs, warns []string
	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		rec := recommendationFor(check)
		if check.Status == statusError {
			errs = append(errs, rec)
		} else {
			warns = append(warns, rec)
		}
	}
	return append(errs, warns...)
}

func recommendationFor(check HealthCheck) string {
	if check.RuleID == "DF01" {
		return "Restore the missing CSV files before running reset"
	}
	for _, rule := range dataRules {
		if rule.id == check.RuleID {
			return rule.advice
		}
	}
	return check.Name
}

func renderDoctor(r *output.Renderer, out *DoctorOutput) {
	title := cases.Title(language.English)

	r.Printf("Database: %s (migration %d)\n\n", out.Database, out.MigrationLevel)

	rows := make([][]any, 0, len(out.HealthChecks))
	for _, c := range out.HealthChecks {
		details := ""
		if len(c.Details) > 0 {
			details = truncate(fmt.Sprint(c.Details), 50)
		}
		rows = append(rows, []any{c.RuleID, title.String(c.Group), c.Name, c.Status, c.IssueCount, details})
	}
	r.Table([]string{"rule", "group", "check", "status", "issues", "details"}, rows)

	r.Printf("\nHealth Score: %d/100\n", out.Score)
	if len(out.Recommendations) > 0 {
		r.Println("\nRecommendations:")
		for i, rec := range out.Recommendations {
			r.Printf("  %d. %s\n", i+1, rec)
		}
	}
}
