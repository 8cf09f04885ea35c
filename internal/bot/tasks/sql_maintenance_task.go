package tasks

import (
	"context"
	"fmt"
	"time"
)

// newSQLMaintenanceTask compacts the profile and ledger database.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		started := time.Now()
		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			return fmt.Errorf("database compaction failed: %w", err)
		}

		log.InfoContext(ctx, "Database compacted", "took", time.Since(started).Round(time.Millisecond))
		return nil
	}
}
