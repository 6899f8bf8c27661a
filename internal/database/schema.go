package database

import (
	"fmt"
)

// Store names. Each name owns exactly one database file.
const (
	StoreSystems   = "systems"
	StoreLocations = "locations"
	StoreStations  = "stations"
	StoreTrade     = "trade"
)

// StoreNames lists the four stores in their canonical order.
var StoreNames = []string{StoreSystems, StoreLocations, StoreStations, StoreTrade}

// RequiredTables maps each store to the tables a healthy copy must contain.
// Used by backup verification.
var RequiredTables = map[string][]string{
	StoreSystems:   {"systems"},
	StoreLocations: {"locations"},
	StoreStations:  {"stations"},
	StoreTrade:     {"commodities"},
}

const systemsSchema = `
CREATE TABLE IF NOT EXISTS systems (
	systemAddress INTEGER PRIMARY KEY,
	systemName TEXT COLLATE NOCASE,
	systemX REAL,
	systemY REAL,
	systemZ REAL,
	systemSector TEXT,
	updatedAt TEXT
)`

const locationsSchema = `
CREATE TABLE IF NOT EXISTS locations (
	locationId TEXT PRIMARY KEY,
	locationName TEXT COLLATE NOCASE,
	systemAddress INTEGER,
	systemName TEXT COLLATE NOCASE,
	systemX REAL,
	systemY REAL,
	systemZ REAL,
	bodyId INTEGER,
	bodyName TEXT,
	latitude REAL,
	longitude REAL,
	updatedAt TEXT
)`

const stationsSchema = `
CREATE TABLE IF NOT EXISTS stations (
	marketId INTEGER PRIMARY KEY,
	stationName TEXT COLLATE NOCASE,
	distanceToArrival REAL,
	stationType TEXT,
	allegiance TEXT,
	government TEXT,
	controllingFaction TEXT,
	primaryEconomy TEXT,
	secondaryEconomy TEXT,
	shipyard INTEGER,
	outfitting INTEGER,
	blackMarket INTEGER,
	repair INTEGER,
	refuel INTEGER,
	restock INTEGER,
	contacts INTEGER,
	interstellarFactors INTEGER,
	materialTrader INTEGER,
	missions INTEGER,
	searchAndRescue INTEGER,
	technologyBroker INTEGER,
	tuning INTEGER,
	universalCartographics INTEGER,
	engineer INTEGER,
	frontlineSolutions INTEGER,
	apexInterstellar INTEGER,
	vistaGenomics INTEGER,
	pioneerSupplies INTEGER,
	bartender INTEGER,
	crewLounge INTEGER,
	bodyId INTEGER,
	bodyName TEXT,
	latitude REAL,
	longitude REAL,
	systemAddress INTEGER,
	systemName TEXT COLLATE NOCASE,
	systemX REAL,
	systemY REAL,
	systemZ REAL,
	maxLandingPadSize INTEGER,
	updatedAt TEXT
)`

const tradeSchema = `
CREATE TABLE IF NOT EXISTS commodities (
	commodityName TEXT COLLATE NOCASE,
	marketId INTEGER,
	buyPrice INTEGER,
	sellPrice INTEGER,
	meanPrice INTEGER,
	stock INTEGER,
	demand INTEGER,
	stockBracket INTEGER,
	demandBracket INTEGER,
	updatedAt TEXT,
	updatedAtDay TEXT,
	PRIMARY KEY (commodityName, marketId)
)`

// migrations lists additive column migrations per store. Columns are only
// ever added, never renamed or dropped.
var migrations = map[string][]string{
	StoreStations: {
		"ALTER TABLE stations ADD COLUMN prohibited TEXT",
		"ALTER TABLE stations ADD COLUMN carrierDockingAccess TEXT",
	},
}

// cheapIndexes are always created.
var cheapIndexes = map[string][]string{
	StoreSystems: {
		"CREATE INDEX IF NOT EXISTS systems_systemName ON systems (systemName COLLATE NOCASE)",
	},
	StoreStations: {
		"CREATE INDEX IF NOT EXISTS stations_systemAddress ON stations (systemAddress)",
	},
	StoreTrade: {
		"CREATE INDEX IF NOT EXISTS commodities_marketId ON commodities (marketId)",
	},
}

// expensiveIndexes speed up analytics but slow down the first start on very
// large databases; skipped behind a feature flag.
var expensiveIndexes = map[string][]string{
	StoreSystems: {
		"CREATE INDEX IF NOT EXISTS systems_systemSector ON systems (systemSector)",
	},
	StoreLocations: {
		"CREATE INDEX IF NOT EXISTS locations_systemAddress ON locations (systemAddress)",
		"CREATE INDEX IF NOT EXISTS locations_locationName ON locations (locationName COLLATE NOCASE)",
	},
	StoreStations: {
		"CREATE INDEX IF NOT EXISTS stations_stationType ON stations (stationType)",
		"CREATE INDEX IF NOT EXISTS stations_coords ON stations (systemX, systemY, systemZ)",
		"CREATE INDEX IF NOT EXISTS stations_updatedAt ON stations (updatedAt)",
	},
	StoreTrade: {
		"CREATE INDEX IF NOT EXISTS commodities_commodityName ON commodities (commodityName COLLATE NOCASE)",
		"CREATE INDEX IF NOT EXISTS commodities_updatedAt ON commodities (updatedAt)",
		"CREATE INDEX IF NOT EXISTS commodities_updatedAtDay ON commodities (updatedAtDay)",
	},
}

var schemas = map[string]string{
	StoreSystems:   systemsSchema,
	StoreLocations: locationsSchema,
	StoreStations:  stationsSchema,
	StoreTrade:     tradeSchema,
}

// Migrate creates tables, applies additive migrations and builds indexes for
// the store this database backs. Safe to run on every startup.
func Migrate(db *DB, skipExpensiveIndexes bool) error {
	schema, ok := schemas[db.Name()]
	if !ok {
		return fmt.Errorf("no schema registered for database %s", db.Name())
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables for %s: %w", db.Name(), err)
	}

	for _, stmt := range migrations[db.Name()] {
		if _, err := db.Exec(stmt); err != nil && !isDuplicateColumn(err) {
			return fmt.Errorf("migration failed for %s: %w", db.Name(), err)
		}
	}

	for _, stmt := range cheapIndexes[db.Name()] {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("index creation failed for %s: %w", db.Name(), err)
		}
	}

	if !skipExpensiveIndexes {
		for _, stmt := range expensiveIndexes[db.Name()] {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("index creation failed for %s: %w", db.Name(), err)
			}
		}
	}

	return nil
}
