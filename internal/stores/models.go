// Package stores contains the repositories for the four embedded stores:
// systems, locations, stations and trade. All writes go through the shared
// prepared-statement cache; nothing in this package ever deletes a row.
package stores

import "strings"

// The designated origin system. The only system allowed to sit at (0,0,0);
// every other zero-coordinate payload is a placeholder and is rejected.
const (
	OriginSystemName    = "Sol"
	OriginSystemAddress = int64(10477373803)
)

// FleetCarrierType is the station type of mobile player-owned carriers.
const FleetCarrierType = "FleetCarrier"

// System is a row in the systems store
type System struct {
	Address   int64
	Name      string
	X         float64
	Y         float64
	Z         float64
	Sector    string
	UpdatedAt string
}

// Location is a surface point of interest without a market identifier
type Location struct {
	ID            string
	Name          string
	SystemAddress int64
	SystemName    string
	SystemX       float64
	SystemY       float64
	SystemZ       float64
	BodyID        int64
	BodyName      string
	Latitude      float64
	Longitude     float64
	UpdatedAt     string
}

// Station is a row in the stations store. Rows survive partial updates, so
// zero values here mean "never observed", not "absent".
type Station struct {
	MarketID           int64
	Name               string
	DistanceToArrival  float64
	Type               string
	Allegiance         string
	Government         string
	ControllingFaction string
	PrimaryEconomy     string
	SecondaryEconomy   string

	Services map[string]bool

	BodyID    int64
	BodyName  string
	Latitude  float64
	Longitude float64

	SystemAddress int64
	SystemName    string
	SystemX       float64
	SystemY       float64
	SystemZ       float64

	MaxLandingPadSize    int64
	Prohibited           string
	CarrierDockingAccess string
	UpdatedAt            string
}

// ServiceColumns lists the station service flag columns in schema order.
var ServiceColumns = []string{
	"shipyard",
	"outfitting",
	"blackMarket",
	"repair",
	"refuel",
	"restock",
	"contacts",
	"interstellarFactors",
	"materialTrader",
	"missions",
	"searchAndRescue",
	"technologyBroker",
	"tuning",
	"universalCartographics",
	"engineer",
	"frontlineSolutions",
	"apexInterstellar",
	"vistaGenomics",
	"pioneerSupplies",
	"bartender",
	"crewLounge",
}

// TradeOrder is a row in the trade store, keyed by (commodity, market).
// Latest write wins.
type TradeOrder struct {
	CommodityName string
	MarketID      int64
	BuyPrice      int64
	SellPrice     int64
	MeanPrice     int64
	Stock         int64
	Demand        int64
	StockBracket  int64
	DemandBracket int64
	UpdatedAt     string
	UpdatedAtDay  string
}

// ValidCoordinates reports whether a coordinate triple may be stored for the
// named system. (0,0,0) is the upstream's placeholder for "unknown" and is
// only real for the origin system.
func ValidCoordinates(systemName string, x, y, z float64) bool {
	if x != 0 || y != 0 || z != 0 {
		return true
	}
	return strings.EqualFold(systemName, OriginSystemName)
}
