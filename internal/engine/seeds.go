package engine

// seeds.go - first-run loading of the flat files

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/bizforecast/internal/reset"
	"github.com/leapstack-labs/bizforecast/pkg/core"
)

// SeedIfEmpty loads the flat files when every entity table is empty, so a
// fresh database starts from the canonical data. A populated database is
// left alone. Reports whether a load happened.
func (e *Engine) SeedIfEmpty(ctx context.Context) (*reset.Result, bool, error) {
	c, release := e.acquire()
	defer release()

	for _, table := range core.EntityTables() {
		n, err := c.store.CountRows(ctx, table)
		if err != nil {
			return nil, false, fmt.Errorf("failed to inspect %s: %w", table, err)
		}
		if n > 0 {
			e.logger.Debug("database already populated, skipping seed", "table", table, "rows", n)
			return nil, false, nil
		}
	}

	e.logger.Info("seeding empty database", "data_dir", e.cfg.DataDir)
	res, err := c.reset.ResetToInitialState(ctx)
	if err != nil {
		return res, false, err
	}
	return res, true, nil
}
