package stats

import (
	"fmt"
	"time"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/stores"
)

// DatabaseTotals is the combined row-count report rendered on the status
// page and served as database-stats.json. The 24-hour windows are anchored
// on the newest update in the snapshots, not the wall clock.
type DatabaseTotals struct {
	Systems               int64  `json:"systems"`
	Locations             int64  `json:"locations"`
	Stations              int64  `json:"stations"`
	FleetCarriers         int64  `json:"fleetCarriers"`
	StationsUpdated24h    int64  `json:"stationsUpdatedInLast24Hours"`
	TradeOrders           int64  `json:"tradeOrders"`
	UniqueCommodities     int64  `json:"uniqueCommodities"`
	UniqueMarkets         int64  `json:"uniqueMarkets"`
	TradeOrdersUpdated24h int64  `json:"tradeOrdersUpdatedInLast24Hours"`
	UpdatesInLast24Hours  int64  `json:"updatesInLast24Hours"`
	GeneratedAt           string `json:"generatedAt"`
}

// GenerateDatabaseStats runs one aggregate query per store against the
// snapshots and writes database-stats.json.
func (g *Generator) GenerateDatabaseStats() error {
	start := time.Now()

	systems, err := g.openSnapshot(database.StoreSystems)
	if err != nil {
		return err
	}
	defer systems.Close()

	locations, err := g.openSnapshot(database.StoreLocations)
	if err != nil {
		return err
	}
	defer locations.Close()

	stations, err := g.openSnapshot(database.StoreStations)
	if err != nil {
		return err
	}
	defer stations.Close()

	trade, err := g.openSnapshot(database.StoreTrade)
	if err != nil {
		return err
	}
	defer trade.Close()

	stationsTS, err := dataTimestamp(stations, "stations")
	if err != nil {
		return err
	}
	tradeTS, err := dataTimestamp(trade, "commodities")
	if err != nil {
		return err
	}
	generatedAt := stationsTS
	if tradeTS > generatedAt {
		generatedAt = tradeTS
	}
	cutoff := dayBefore(generatedAt)
	totals := DatabaseTotals{GeneratedAt: generatedAt}

	if err := systems.QueryRow("SELECT COUNT(*) FROM systems").Scan(&totals.Systems); err != nil {
		return fmt.Errorf("failed to count systems: %w", err)
	}
	if err := locations.QueryRow("SELECT COUNT(*) FROM locations").Scan(&totals.Locations); err != nil {
		return fmt.Errorf("failed to count locations: %w", err)
	}

	err = stations.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN stationType != ? OR stationType IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN stationType = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN updatedAt > ? THEN 1 ELSE 0 END), 0)
		FROM stations`,
		stores.FleetCarrierType, stores.FleetCarrierType, cutoff,
	).Scan(&totals.Stations, &totals.FleetCarriers, &totals.StationsUpdated24h)
	if err != nil {
		return fmt.Errorf("failed to aggregate stations: %w", err)
	}

	err = trade.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(DISTINCT commodityName),
			COUNT(DISTINCT marketId),
			COALESCE(SUM(CASE WHEN updatedAt > ? THEN 1 ELSE 0 END), 0)
		FROM commodities`,
		cutoff,
	).Scan(&totals.TradeOrders, &totals.UniqueCommodities, &totals.UniqueMarkets, &totals.TradeOrdersUpdated24h)
	if err != nil {
		return fmt.Errorf("failed to aggregate trade orders: %w", err)
	}

	totals.UpdatesInLast24Hours = totals.StationsUpdated24h + totals.TradeOrdersUpdated24h

	if err := g.writeJSON(DatabaseStatsFile, totals); err != nil {
		return err
	}

	g.log.Info().
		Int64("systems", totals.Systems).
		Int64("stations", totals.Stations).
		Int64("tradeOrders", totals.TradeOrders).
		Dur("took", time.Since(start)).
		Msg("Database totals generated")
	return nil
}
