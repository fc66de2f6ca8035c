// Package core defines the shared language of the bizforecast system.
//
// This package contains:
//   - Entity rows (SalesLine, BOMLine, RouterOperation, Machine, LaborRate)
//   - Forecast results and snapshots
//   - Execution log entries, filters and replay results
//   - The error taxonomy shared by the engines and the route layer
//
// The Golden Rule: pkg/core imports ONLY stdlib and shopspring/decimal.
// All other packages depend on core, not the reverse.
package core
