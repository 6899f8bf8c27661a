package handlers

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/sector"
	"github.com/aristath/beacon/internal/stores"
)

type testEnv struct {
	registry  *Registry
	systems   *stores.SystemRepository
	locations *stores.LocationRepository
	stations  *stores.StationRepository
	trade     *stores.TradeRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	log := zerolog.Nop()
	stmts := database.NewStmtCache()
	t.Cleanup(func() { stmts.Close() })

	open := func(name string) *database.DB {
		db, err := database.Open(database.Config{
			Path: filepath.Join(dir, name+".db"),
			Name: name,
		})
		require.NoError(t, err)
		require.NoError(t, database.Migrate(db, true))
		t.Cleanup(func() { db.Close() })
		return db
	}

	env := &testEnv{}
	env.systems = stores.NewSystemRepository(open(database.StoreSystems), stmts, sector.New(100, 8), log)
	env.locations = stores.NewLocationRepository(open(database.StoreLocations), stmts, log)
	env.stations = stores.NewStationRepository(open(database.StoreStations), stmts, log)
	env.trade = stores.NewTradeRepository(open(database.StoreTrade), stmts, log)
	env.registry = New(env.systems, env.locations, env.stations, env.trade, log)
	return env
}

func envelope(t *testing.T, schemaSuffix string, message string) *Envelope {
	t.Helper()
	return &Envelope{
		SchemaRef: "https://eddn.edcd.io/schemas" + schemaSuffix,
		Header: Header{
			GatewayTimestamp: "2026-01-01T00:00:00Z",
			GameVersion:      "4.0.0.0",
		},
		Message: json.RawMessage(message),
	}
}

const commodityGold = `{
	"timestamp": "2026-01-01T00:00:00Z",
	"systemName": "Sol",
	"stationName": "Abe",
	"marketId": 1000,
	"commodities": [
		{"name": "Gold", "buyPrice": 9100, "sellPrice": 10334, "meanPrice": 9500, "stock": 500, "demand": 0}
	]
}`

func TestDispatch_CommodityHappyPath(t *testing.T) {
	env := newTestEnv(t)

	err := env.registry.Dispatch(envelope(t, SchemaCommodity, commodityGold))
	require.NoError(t, err)

	order, err := env.trade.Get("Gold", 1000)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, int64(9100), order.BuyPrice)
	assert.Equal(t, int64(10334), order.SellPrice)
	assert.Equal(t, int64(500), order.Stock)
	assert.Equal(t, "2026-01-01", order.UpdatedAtDay)

	station, err := env.stations.GetByMarketID(1000)
	require.NoError(t, err)
	require.NotNil(t, station)
	assert.Equal(t, "Abe", station.Name)
}

func TestDispatch_CommodityIdempotent(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.registry.Dispatch(envelope(t, SchemaCommodity, commodityGold)))
	}

	count, err := env.trade.CountForMarket(1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stations, err := env.stations.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stations)
}

func TestDispatch_CommodityWithoutMarketID(t *testing.T) {
	env := newTestEnv(t)

	err := env.registry.Dispatch(envelope(t, SchemaCommodity, `{"stationName":"Abe"}`))
	assert.Error(t, err)
}

func TestDispatch_UnrecognizedSchema(t *testing.T) {
	env := newTestEnv(t)

	err := env.registry.Dispatch(envelope(t, "/shipyard/2", `{}`))
	assert.ErrorIs(t, err, ErrUnrecognizedSchema)
}

func TestDispatch_NavRouteZeroCoordinates(t *testing.T) {
	env := newTestEnv(t)

	msg := `{
		"timestamp": "2026-01-01T00:00:00Z",
		"Route": [
			{"StarSystem": "X", "SystemAddress": 42, "StarPos": [0, 0, 0]},
			{"StarSystem": "Sol", "SystemAddress": 10477373803, "StarPos": [0, 0, 0]},
			{"StarSystem": "Alioth", "SystemAddress": 1109989017963, "StarPos": [-33.65625, 72.46875, -20.65625]}
		]
	}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaNavRoute, msg)))

	// The placeholder-coordinate hop is rejected, the origin exception and
	// the real hop are stored.
	missing, err := env.systems.GetByAddress(42)
	require.NoError(t, err)
	assert.Nil(t, missing)

	sol, err := env.systems.GetByAddress(10477373803)
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, "Sol", sol.Name)

	alioth, err := env.systems.GetByName("ALIOTH")
	require.NoError(t, err)
	require.NotNil(t, alioth)
	assert.InDelta(t, 72.46875, alioth.Y, 1e-9)
	assert.NotEmpty(t, alioth.Sector)
}

func TestDispatch_FSSDiscoveryDoesNotOverwriteCoordinates(t *testing.T) {
	env := newTestEnv(t)

	first := `{"timestamp":"2026-01-01T00:00:00Z","SystemName":"Alioth","SystemAddress":7,"StarPos":[1,2,3]}`
	second := `{"timestamp":"2026-01-02T00:00:00Z","SystemName":"Alioth","SystemAddress":7,"StarPos":[9,9,9]}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaFSSDiscoveryScan, first)))
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaFSSDiscoveryScan, second)))

	sys, err := env.systems.GetByAddress(7)
	require.NoError(t, err)
	require.NotNil(t, sys)
	assert.Equal(t, 1.0, sys.X)
	assert.Equal(t, "2026-01-01T00:00:00Z", sys.UpdatedAt)
}

func TestDispatch_ApproachSettlementWithoutMarket(t *testing.T) {
	env := newTestEnv(t)

	msg := `{
		"timestamp": "2026-01-01T00:00:00Z",
		"Name": "Anderson Point",
		"BodyID": 4,
		"BodyName": "Alioth 1 a",
		"Latitude": 12.5,
		"Longitude": -3.25,
		"StarSystem": "Alioth",
		"SystemAddress": 7,
		"StarPos": [1, 2, 3]
	}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaApproachSettlement, msg)))

	count, err := env.locations.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stations, err := env.stations.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stations)
}

func TestDispatch_ApproachSettlementConstructionSiteExcluded(t *testing.T) {
	env := newTestEnv(t)

	msg := `{
		"timestamp": "2026-01-01T00:00:00Z",
		"Name": "Planetary Construction Site: Depot Alpha",
		"BodyID": 4,
		"StarSystem": "Alioth",
		"SystemAddress": 7,
		"StarPos": [1, 2, 3]
	}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaApproachSettlement, msg)))

	count, err := env.locations.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestDispatch_ApproachSettlementPlacementKeepsEconomies(t *testing.T) {
	env := newTestEnv(t)

	commodity := `{
		"timestamp": "2026-01-01T00:00:00Z",
		"systemName": "Alioth",
		"stationName": "Golden Gate",
		"marketId": 2000,
		"economies": [{"name": "Industrial", "proportion": 1}],
		"commodities": []
	}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaCommodity, commodity)))

	approach := `{
		"timestamp": "2026-01-02T00:00:00Z",
		"Name": "Golden Gate",
		"MarketID": 2000,
		"BodyID": 4,
		"BodyName": "Alioth 1 a",
		"Latitude": 12.5,
		"Longitude": -3.25,
		"StarSystem": "Alioth",
		"SystemAddress": 7,
		"StarPos": [1, 2, 3]
	}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaApproachSettlement, approach)))

	station, err := env.stations.GetByMarketID(2000)
	require.NoError(t, err)
	require.NotNil(t, station)
	// The placement event fills body fields without wiping the economy the
	// earlier commodity event recorded.
	assert.Equal(t, "Industrial", station.PrimaryEconomy)
	assert.Equal(t, "Alioth 1 a", station.BodyName)
	assert.Equal(t, 12.5, station.Latitude)
	assert.Equal(t, "2026-01-02T00:00:00Z", station.UpdatedAt)
}

func TestDispatch_ApproachSettlementPlaceholderCoordinates(t *testing.T) {
	env := newTestEnv(t)

	first := `{
		"timestamp": "2026-01-01T00:00:00Z",
		"Name": "Golden Gate",
		"MarketID": 2000,
		"StarSystem": "Alioth",
		"SystemAddress": 7,
		"StarPos": [1, 2, 3]
	}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaApproachSettlement, first)))

	// A later event with the (0,0,0) placeholder must not drag the station
	// into the origin's neighborhood.
	second := `{
		"timestamp": "2026-01-02T00:00:00Z",
		"Name": "Golden Gate",
		"MarketID": 2000,
		"StarSystem": "Alioth",
		"SystemAddress": 7,
		"StarPos": [0, 0, 0]
	}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaApproachSettlement, second)))

	station, err := env.stations.GetByMarketID(2000)
	require.NoError(t, err)
	require.NotNil(t, station)
	assert.Equal(t, 1.0, station.SystemX)
	assert.Equal(t, 2.0, station.SystemY)
	assert.Equal(t, 3.0, station.SystemZ)
	assert.Equal(t, "2026-01-02T00:00:00Z", station.UpdatedAt)
}

func TestDispatch_JournalDockedServices(t *testing.T) {
	env := newTestEnv(t)

	msg := `{
		"timestamp": "2026-01-01T00:00:00Z",
		"event": "Docked",
		"StarSystem": "Alioth",
		"SystemAddress": 7,
		"StarPos": [1, 2, 3],
		"StationName": "Golden Gate",
		"MarketID": 2000,
		"StationType": "Coriolis",
		"DistFromStarLS": 365.2,
		"StationServices": ["Refuel", "Repair", "Rearm", "Facilitator", "Exploration"],
		"LandingPads": {"Small": 4, "Medium": 4, "Large": 2},
		"StationEconomies": [{"Name": "Industrial", "Proportion": 0.8}, {"Name": "Refinery", "Proportion": 0.2}]
	}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaJournal, msg)))

	station, err := env.stations.GetByMarketID(2000)
	require.NoError(t, err)
	require.NotNil(t, station)
	assert.Equal(t, "Coriolis", station.Type)
	assert.Equal(t, int64(3), station.MaxLandingPadSize)
	assert.Equal(t, "Industrial", station.PrimaryEconomy)
	assert.Equal(t, "Refinery", station.SecondaryEconomy)

	// Upstream aliases map onto the flag columns; unlisted services are off.
	assert.True(t, station.Services["refuel"])
	assert.True(t, station.Services["repair"])
	assert.True(t, station.Services["restock"])
	assert.True(t, station.Services["interstellarFactors"])
	assert.True(t, station.Services["universalCartographics"])
	assert.False(t, station.Services["shipyard"])
	assert.False(t, station.Services["blackMarket"])
}

func TestDispatch_JournalCarrierJumpMovesCarrier(t *testing.T) {
	env := newTestEnv(t)

	dock := `{
		"timestamp": "2026-01-01T00:00:00Z",
		"event": "Docked",
		"StarSystem": "Alioth",
		"SystemAddress": 7,
		"StarPos": [1, 2, 3],
		"StationName": "X9Z-88B",
		"MarketID": 3000,
		"StationType": "FleetCarrier",
		"CarrierDockingAccess": "all"
	}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaJournal, dock)))

	jump := `{
		"timestamp": "2026-01-02T00:00:00Z",
		"event": "CarrierJump",
		"StarSystem": "Sol",
		"SystemAddress": 10477373803,
		"StarPos": [0, 0, 0],
		"StationName": "X9Z-88B",
		"MarketID": 3000,
		"StationType": "FleetCarrier"
	}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaJournal, jump)))

	station, err := env.stations.GetByMarketID(3000)
	require.NoError(t, err)
	require.NotNil(t, station)
	assert.Equal(t, stores.FleetCarrierType, station.Type)
	assert.Equal(t, "Sol", station.SystemName)
	assert.Equal(t, "all", station.CarrierDockingAccess)

	count, err := env.stations.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDispatch_JournalUnhandledEventIgnored(t *testing.T) {
	env := newTestEnv(t)

	msg := `{"timestamp":"2026-01-01T00:00:00Z","event":"FSDJump","StarSystem":"Alioth","SystemAddress":7,"StarPos":[1,2,3]}`
	require.NoError(t, env.registry.Dispatch(envelope(t, SchemaJournal, msg)))

	count, err := env.systems.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestAcceptedGameVersion(t *testing.T) {
	tests := []struct {
		version  string
		accepted bool
	}{
		{"4.0.0.0", true},
		{"4.1.2.3", true},
		{"5.0", true},
		{"3.9.0.0", false},
		{"CAPI-Live-legacy", true},
		{"", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.accepted, AcceptedGameVersion(tt.version), "version %q", tt.version)
	}
}

func TestHeader_DedupTimestamp(t *testing.T) {
	h := Header{GatewayTimestamp: "gw", Timestamp: "ts"}
	assert.Equal(t, "gw", h.DedupTimestamp())

	h = Header{Timestamp: "ts"}
	assert.Equal(t, "ts", h.DedupTimestamp())
}

func TestLandingPad_MaxPadSize(t *testing.T) {
	assert.Equal(t, int64(0), (*LandingPad)(nil).MaxPadSize())
	assert.Equal(t, int64(3), (&LandingPad{Small: 1, Medium: 1, Large: 1}).MaxPadSize())
	assert.Equal(t, int64(2), (&LandingPad{Small: 1, Medium: 1}).MaxPadSize())
	assert.Equal(t, int64(1), (&LandingPad{Small: 1}).MaxPadSize())
	assert.Equal(t, int64(0), (&LandingPad{}).MaxPadSize())
}
