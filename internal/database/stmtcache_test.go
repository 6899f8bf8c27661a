package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, name string) *DB {
	t.Helper()
	db, err := Open(Config{
		Path: filepath.Join(t.TempDir(), name+".db"),
		Name: name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecord_PreservesInsertionOrder(t *testing.T) {
	rec := NewRecord().
		Set("b", 2).
		Set("a", 1).
		Set("c", 3)

	assert.Equal(t, []string{"b", "a", "c"}, rec.Columns())
	assert.Equal(t, []interface{}{2, 1, 3}, rec.Values())
	assert.Equal(t, 3, rec.Len())
}

func TestStmtCache_MemoizesPerShape(t *testing.T) {
	db := openTestDB(t, "systems")
	require.NoError(t, Migrate(db, true))

	cache := NewStmtCache()
	defer cache.Close()

	for i := int64(1); i <= 5; i++ {
		rec := NewRecord().
			Set("systemAddress", i).
			Set("systemName", "Test").
			Set("systemX", 1.0).
			Set("systemY", 2.0).
			Set("systemZ", 3.0)
		require.NoError(t, cache.InsertOrIgnore(db, "systems", rec))
	}

	// Five executions of one shape prepare exactly one statement.
	assert.Equal(t, 1, cache.Size())

	rec := NewRecord().Set("systemAddress", int64(6))
	require.NoError(t, cache.InsertOrIgnore(db, "systems", rec))
	assert.Equal(t, 2, cache.Size())
}

func TestStmtCache_InsertOrReplace(t *testing.T) {
	db := openTestDB(t, "systems")
	require.NoError(t, Migrate(db, true))

	cache := NewStmtCache()
	defer cache.Close()

	rec := NewRecord().
		Set("systemAddress", int64(42)).
		Set("systemName", "First")
	require.NoError(t, cache.InsertOrReplace(db, "systems", rec))

	rec = NewRecord().
		Set("systemAddress", int64(42)).
		Set("systemName", "Second")
	require.NoError(t, cache.InsertOrReplace(db, "systems", rec))

	var count int
	var name string
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM systems").Scan(&count))
	require.NoError(t, db.QueryRow("SELECT systemName FROM systems WHERE systemAddress = 42").Scan(&name))
	assert.Equal(t, 1, count)
	assert.Equal(t, "Second", name)
}

func TestStmtCache_UpdateLeavesOtherColumns(t *testing.T) {
	db := openTestDB(t, "stations")
	require.NoError(t, Migrate(db, true))

	cache := NewStmtCache()
	defer cache.Close()

	rec := NewRecord().
		Set("marketId", int64(1000)).
		Set("stationName", "Abe").
		Set("primaryEconomy", "Industrial")
	require.NoError(t, cache.InsertOrReplace(db, "stations", rec))

	update := NewRecord().Set("stationName", "Abraham Lincoln")
	where := NewRecord().Set("marketId", int64(1000))
	require.NoError(t, cache.Update(db, "stations", update, where))

	var name, economy string
	err := db.QueryRow(
		"SELECT stationName, primaryEconomy FROM stations WHERE marketId = 1000",
	).Scan(&name, &economy)
	require.NoError(t, err)
	assert.Equal(t, "Abraham Lincoln", name)
	assert.Equal(t, "Industrial", economy)
}

func TestMigrate_AdditiveAndIdempotent(t *testing.T) {
	db := openTestDB(t, "stations")

	require.NoError(t, Migrate(db, false))
	// Second run must tolerate existing tables, columns and indexes.
	require.NoError(t, Migrate(db, false))

	// The migrated columns are present.
	_, err := db.Exec("UPDATE stations SET prohibited = NULL, carrierDockingAccess = NULL")
	assert.NoError(t, err)
}

func TestVacuumInto_CreatesVerifiableCopy(t *testing.T) {
	db := openTestDB(t, "trade")
	require.NoError(t, Migrate(db, true))
	_, err := db.Exec(
		"INSERT INTO commodities (commodityName, marketId, buyPrice) VALUES ('Gold', 1, 9100)",
	)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, db.VacuumInto(dest))

	copyDB, err := Open(Config{Path: dest, Name: "copy"})
	require.NoError(t, err)
	defer copyDB.Close()

	var count int
	require.NoError(t, copyDB.QueryRow("SELECT COUNT(*) FROM commodities").Scan(&count))
	assert.Equal(t, 1, count)

	// A second copy to the same destination must refuse to overwrite.
	assert.Error(t, db.VacuumInto(dest))
}
