package scheduler

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/reliability"
	"github.com/aristath/beacon/internal/snapshots"
	"github.com/aristath/beacon/internal/stats"
	"github.com/aristath/beacon/internal/writelock"
)

func newJobEnv(t *testing.T) (map[string]*database.DB, *snapshots.Manager, *stats.Generator, string) {
	t.Helper()
	dataDir := t.TempDir()

	dbs := make(map[string]*database.DB)
	for _, name := range database.StoreNames {
		db, err := database.Open(database.Config{
			Path: filepath.Join(dataDir, name+".db"),
			Name: name,
		})
		require.NoError(t, err)
		require.NoError(t, database.Migrate(db, true))
		t.Cleanup(func() { db.Close() })
		dbs[name] = db
	}

	snaps := snapshots.New(dataDir, dbs, zerolog.Nop())
	gen := stats.New(snaps, filepath.Join(dataDir, "cache"), true, zerolog.Nop())
	return dbs, snaps, gen, dataDir
}

func TestMaintenanceWindowJob_ClearsLock(t *testing.T) {
	dbs, snaps, _, dataDir := newJobEnv(t)
	lock := &writelock.Lock{}
	log := zerolog.Nop()

	job := &MaintenanceWindowJob{
		Lock:      lock,
		Retention: reliability.NewRetention(dbs[database.StoreTrade], dbs[database.StoreStations], 90, 7, 90, log),
		Optimizer: reliability.NewOptimizer(dbs, log),
		Backup:    reliability.NewBackup(filepath.Join(dataDir, "backup"), dbs, log),
		Snapshots: snaps,
		Log:       log,
	}

	require.NoError(t, job.Run())
	assert.False(t, lock.Held())
	assert.True(t, snaps.AreFresh())
	assert.True(t, job.Backup.HasLog())
}

func TestCombinedStatsJob_SkipsWhenFresh(t *testing.T) {
	_, snaps, gen, _ := newJobEnv(t)

	job := &CombinedStatsJob{Snapshots: snaps, Stats: gen, Log: zerolog.Nop()}

	// First run refreshes snapshots and generates both cache files.
	require.NoError(t, job.Run())
	assert.True(t, snaps.AreFresh())
	assert.True(t, gen.CacheFresh(stats.DatabaseStatsFile, snapshots.FreshnessWindow))
	assert.True(t, gen.CacheFresh(stats.TickerFile, snapshots.FreshnessWindow))

	// Second run finds everything fresh and is a no-op.
	require.NoError(t, job.Run())
}

func TestCommodityStatsJob_GeneratesFromFreshSnapshots(t *testing.T) {
	dbs, snaps, gen, dataDir := newJobEnv(t)

	_, err := dbs[database.StoreTrade].Exec(
		"INSERT INTO commodities (commodityName, marketId, buyPrice, stock, updatedAt) VALUES ('Gold', 1, 9100, 500, '2026-01-01T00:00:00Z')")
	require.NoError(t, err)

	job := &CommodityStatsJob{Snapshots: snaps, Stats: gen, Log: zerolog.Nop()}
	require.NoError(t, job.Run())

	assert.FileExists(t, filepath.Join(dataDir, "cache", stats.CommoditiesFile))
	assert.FileExists(t, filepath.Join(dataDir, "cache", "commodities", "Gold", "stats.json"))
}

func TestTradeVacuumJob(t *testing.T) {
	dbs, _, _, _ := newJobEnv(t)
	lock := &writelock.Lock{}

	job := &TradeVacuumJob{
		Lock:      lock,
		Optimizer: reliability.NewOptimizer(dbs, zerolog.Nop()),
		Trade:     dbs[database.StoreTrade],
		Log:       zerolog.Nop(),
	}

	require.NoError(t, job.Run())
	assert.False(t, lock.Held())
}
