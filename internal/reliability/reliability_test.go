package reliability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/beacon/internal/database"
)

func openStores(t *testing.T, names ...string) map[string]*database.DB {
	t.Helper()
	dir := t.TempDir()
	dbs := make(map[string]*database.DB, len(names))
	for _, name := range names {
		db, err := database.Open(database.Config{
			Path: filepath.Join(dir, name+".db"),
			Name: name,
		})
		require.NoError(t, err)
		require.NoError(t, database.Migrate(db, true))
		t.Cleanup(func() { db.Close() })
		dbs[name] = db
	}
	return dbs
}

func TestBackup_RunAndVerify(t *testing.T) {
	dbs := openStores(t, database.StoreSystems, database.StoreTrade)
	_, err := dbs[database.StoreTrade].Exec(
		"INSERT INTO commodities (commodityName, marketId, buyPrice, updatedAt) VALUES ('Gold', 1, 9100, '2026-01-01T00:00:00Z')")
	require.NoError(t, err)

	backupDir := t.TempDir()
	b := NewBackup(backupDir, dbs, zerolog.Nop())

	assert.False(t, b.HasLog())
	require.NoError(t, b.Run())
	assert.True(t, b.HasLog())

	for name := range dbs {
		_, err := os.Stat(filepath.Join(backupDir, name+".db"))
		assert.NoError(t, err, "backup for %s missing", name)
	}

	logData, err := os.ReadFile(filepath.Join(backupDir, BackupLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "ok")

	reportData, err := os.ReadFile(filepath.Join(backupDir, BackupReportFile))
	require.NoError(t, err)
	assert.Contains(t, string(reportData), `"success": true`)
}

func TestBackup_SecondRunReplacesFirst(t *testing.T) {
	dbs := openStores(t, database.StoreTrade)
	b := NewBackup(t.TempDir(), dbs, zerolog.Nop())

	require.NoError(t, b.Run())
	require.NoError(t, b.Run())
}

func TestVerifyBackup_RejectsMissingTable(t *testing.T) {
	dbs := openStores(t, database.StoreSystems)

	// A systems file posing as a trade backup lacks the commodities table.
	dest := filepath.Join(t.TempDir(), "trade.db")
	require.NoError(t, dbs[database.StoreSystems].VacuumInto(dest))

	err := verifyBackup(dest, database.StoreTrade)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commodities")
}

func TestVerifyBackup_RejectsTinyFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "trade.db")
	require.NoError(t, os.WriteFile(dest, []byte("stub"), 0644))

	err := verifyBackup(dest, database.StoreTrade)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below")
}

func seedTradeRow(t *testing.T, db *database.DB, commodity string, marketID int64, updatedAt string) {
	t.Helper()
	_, err := db.Exec(
		"INSERT OR REPLACE INTO commodities (commodityName, marketId, buyPrice, updatedAt) VALUES (?, ?, 100, ?)",
		commodity, marketID, updatedAt)
	require.NoError(t, err)
}

func TestRetention_SweepsOldTradeRows(t *testing.T) {
	dbs := openStores(t, database.StoreTrade, database.StoreStations)
	trade := dbs[database.StoreTrade]

	old := time.Now().UTC().AddDate(0, 0, -100).Format(time.RFC3339)
	recent := time.Now().UTC().AddDate(0, 0, -1).Format(time.RFC3339)
	seedTradeRow(t, trade, "Gold", 1, old)
	seedTradeRow(t, trade, "Silver", 1, recent)

	r := NewRetention(trade, dbs[database.StoreStations], 90, 0, 0, zerolog.Nop())
	r.Sweep()

	var count int
	require.NoError(t, trade.QueryRow("SELECT COUNT(*) FROM commodities").Scan(&count))
	assert.Equal(t, 1, count)

	var name string
	require.NoError(t, trade.QueryRow("SELECT commodityName FROM commodities").Scan(&name))
	assert.Equal(t, "Silver", name)
}

func TestRetention_RescueShipHorizon(t *testing.T) {
	dbs := openStores(t, database.StoreTrade, database.StoreStations)
	trade, stations := dbs[database.StoreTrade], dbs[database.StoreStations]

	_, err := stations.Exec(
		"INSERT INTO stations (marketId, stationName) VALUES (1, 'Rescue Ship - Cornwallis')")
	require.NoError(t, err)
	_, err = stations.Exec(
		"INSERT INTO stations (marketId, stationName) VALUES (2, 'Abe')")
	require.NoError(t, err)

	tenDaysAgo := time.Now().UTC().AddDate(0, 0, -10).Format(time.RFC3339)
	seedTradeRow(t, trade, "Gold", 1, tenDaysAgo)
	seedTradeRow(t, trade, "Gold", 2, tenDaysAgo)

	// Ten-day-old rows survive the general 90 day horizon but the rescue
	// ship's market falls to the 7 day one.
	r := NewRetention(trade, stations, 90, 7, 0, zerolog.Nop())
	r.Sweep()

	var count int
	require.NoError(t, trade.QueryRow("SELECT COUNT(*) FROM commodities").Scan(&count))
	assert.Equal(t, 1, count)

	var marketID int64
	require.NoError(t, trade.QueryRow("SELECT marketId FROM commodities").Scan(&marketID))
	assert.Equal(t, int64(2), marketID)
}

func TestRetention_CarrierHorizon(t *testing.T) {
	dbs := openStores(t, database.StoreTrade, database.StoreStations)
	trade, stations := dbs[database.StoreTrade], dbs[database.StoreStations]

	_, err := stations.Exec(
		"INSERT INTO stations (marketId, stationName, stationType) VALUES (1, 'X9Z-88B', 'FleetCarrier')")
	require.NoError(t, err)

	old := time.Now().UTC().AddDate(0, 0, -100).Format(time.RFC3339)
	seedTradeRow(t, trade, "Gold", 1, old)

	r := NewRetention(trade, stations, 0, 0, 90, zerolog.Nop())
	r.Sweep()

	var count int
	require.NoError(t, trade.QueryRow("SELECT COUNT(*) FROM commodities").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestOptimizer_VacuumReclaimsPages(t *testing.T) {
	dbs := openStores(t, database.StoreTrade)
	trade := dbs[database.StoreTrade]

	for i := int64(0); i < 500; i++ {
		seedTradeRow(t, trade, "Gold", i, "2026-01-01T00:00:00Z")
	}
	_, err := trade.Exec("DELETE FROM commodities")
	require.NoError(t, err)

	o := NewOptimizer(dbs, zerolog.Nop())
	o.VacuumAll()

	// The file still opens and answers queries after the rebuild.
	var count int
	require.NoError(t, trade.QueryRow("SELECT COUNT(*) FROM commodities").Scan(&count))
	assert.Equal(t, 0, count)
}
