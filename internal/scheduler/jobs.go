package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/reliability"
	"github.com/aristath/beacon/internal/snapshots"
	"github.com/aristath/beacon/internal/stats"
	"github.com/aristath/beacon/internal/writelock"
)

// MaintenanceWindowJob runs the weekly maintenance window: retention
// sweeps, compaction and online backup, all under the write lock, then a
// snapshot refresh once writes resume.
type MaintenanceWindowJob struct {
	Lock      *writelock.Lock
	Retention *reliability.Retention
	Optimizer *reliability.Optimizer
	Backup    *reliability.Backup
	Snapshots *snapshots.Manager
	Log       zerolog.Logger
}

// Name implements Job
func (j *MaintenanceWindowJob) Name() string { return "maintenance-window" }

// Run implements Job. The write lock is cleared on every exit path; a
// backup failure must not leave ingestion suspended.
func (j *MaintenanceWindowJob) Run() error {
	j.Lock.Set()
	defer j.Lock.Clear()
	j.Log.Info().Msg("Maintenance window opened, writes suspended")

	j.Retention.Sweep()
	j.Optimizer.VacuumAll()
	backupErr := j.Backup.Run()

	j.Lock.Clear()
	j.Log.Info().Msg("Maintenance window closed, writes resumed")

	if err := j.Snapshots.Refresh(); err != nil {
		j.Log.Error().Err(err).Msg("Snapshot refresh after maintenance failed")
	}
	return backupErr
}

// CommodityStatsJob regenerates the per-commodity aggregates and regional
// reports from fresh snapshots. Fires at the end of the maintenance window.
type CommodityStatsJob struct {
	Snapshots *snapshots.Manager
	Stats     *stats.Generator
	Log       zerolog.Logger
}

// Name implements Job
func (j *CommodityStatsJob) Name() string { return "commodity-stats" }

// Run implements Job. A failed generation retries once behind a second
// snapshot refresh, then gives up until the next cycle.
func (j *CommodityStatsJob) Run() error {
	if err := j.Snapshots.Refresh(); err != nil {
		return fmt.Errorf("snapshot refresh failed: %w", err)
	}
	err := j.Stats.GenerateCommodityStats()
	if err == nil {
		return nil
	}
	j.Log.Warn().Err(err).Msg("Commodity stats failed, retrying once with fresh snapshots")
	if err := j.Snapshots.Refresh(); err != nil {
		return fmt.Errorf("snapshot refresh failed on retry: %w", err)
	}
	return j.Stats.GenerateCommodityStats()
}

// CombinedStatsJob regenerates the database totals and ticker every few
// hours, skipping the run entirely while the previous outputs are fresh.
type CombinedStatsJob struct {
	Snapshots *snapshots.Manager
	Stats     *stats.Generator
	Log       zerolog.Logger
}

// Name implements Job
func (j *CombinedStatsJob) Name() string { return "combined-stats" }

// Run implements Job
func (j *CombinedStatsJob) Run() error {
	if j.Snapshots.AreFresh() &&
		j.Stats.CacheFresh(stats.DatabaseStatsFile, snapshots.FreshnessWindow) &&
		j.Stats.CacheFresh(stats.TickerFile, snapshots.FreshnessWindow) {
		j.Log.Debug().Msg("Snapshots and cache still fresh, skipping combined stats")
		return nil
	}
	if !j.Snapshots.AreFresh() {
		if err := j.Snapshots.Refresh(); err != nil {
			return fmt.Errorf("snapshot refresh failed: %w", err)
		}
	}
	return j.Stats.GenerateCombined()
}

// TradeVacuumJob compacts the trade database weekly. The trade store churns
// hardest, so it gets its own rebuild outside the main window.
type TradeVacuumJob struct {
	Lock      *writelock.Lock
	Optimizer *reliability.Optimizer
	Trade     *database.DB
	Log       zerolog.Logger
}

// Name implements Job
func (j *TradeVacuumJob) Name() string { return "trade-vacuum" }

// Run implements Job
func (j *TradeVacuumJob) Run() error {
	j.Lock.Set()
	defer j.Lock.Clear()
	j.Optimizer.VacuumOne(database.StoreTrade, j.Trade)
	return nil
}
