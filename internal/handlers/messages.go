// Package handlers contains the per-schema normalizers that keep the four
// stores consistent. Each handler is pure except for writes through the
// statement cache and lookups against the stores.
package handlers

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Recognized schema reference suffixes.
const (
	SchemaCommodity          = "/commodity/3"
	SchemaFSSDiscoveryScan   = "/fssdiscoveryscan/1"
	SchemaNavRoute           = "/navroute/1"
	SchemaApproachSettlement = "/approachsettlement/1"
	SchemaJournal            = "/journal/1"
)

// MinimumGameVersionMajor gates out payloads from legacy game builds.
const MinimumGameVersionMajor = 4

// AuthoritativeVersionPrefix marks payloads relayed from the authoritative
// API, trusted regardless of the version number that follows.
const AuthoritativeVersionPrefix = "CAPI-Live-"

// Envelope is the decompressed frame shape
type Envelope struct {
	SchemaRef string          `json:"$schemaRef"`
	Header    Header          `json:"header"`
	Message   json.RawMessage `json:"message"`
}

// Header carries the relay metadata used for deduplication and version gating
type Header struct {
	GatewayTimestamp string `json:"gatewayTimestamp"`
	Timestamp        string `json:"timestamp"`
	GameVersion      string `json:"gameversion"`
	SoftwareName     string `json:"softwareName"`
	SoftwareVersion  string `json:"softwareVersion"`
}

// DedupTimestamp returns the timestamp used in the dedup key: the gateway
// timestamp when present, otherwise the header timestamp.
func (h Header) DedupTimestamp() string {
	if h.GatewayTimestamp != "" {
		return h.GatewayTimestamp
	}
	return h.Timestamp
}

// AcceptedGameVersion reports whether a payload passes the version gate:
// major version at or above the minimum, or the authoritative-API prefix.
func AcceptedGameVersion(version string) bool {
	if strings.HasPrefix(version, AuthoritativeVersionPrefix) {
		return true
	}
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return false
	}
	return n >= MinimumGameVersionMajor
}

// CommodityMessage is the body of a commodity/3 event
type CommodityMessage struct {
	Timestamp   string      `json:"timestamp"`
	SystemName  string      `json:"systemName"`
	StationName string      `json:"stationName"`
	StationType string      `json:"stationType"`
	MarketID    int64       `json:"marketId"`
	Economies   []Economy   `json:"economies"`
	Prohibited  []string    `json:"prohibited"`
	Commodities []Commodity `json:"commodities"`

	CarrierDockingAccess string `json:"carrierDockingAccess"`
}

// Economy is a station economy with its proportion
type Economy struct {
	Name       string  `json:"name"`
	Proportion float64 `json:"proportion"`
}

// Commodity is one market entry in a commodity event
type Commodity struct {
	Name          string `json:"name"`
	BuyPrice      int64  `json:"buyPrice"`
	SellPrice     int64  `json:"sellPrice"`
	MeanPrice     int64  `json:"meanPrice"`
	Stock         int64  `json:"stock"`
	Demand        int64  `json:"demand"`
	StockBracket  int64  `json:"stockBracket"`
	DemandBracket int64  `json:"demandBracket"`
}

// FSSDiscoveryScanMessage is the body of an fssdiscoveryscan/1 event
type FSSDiscoveryScanMessage struct {
	Timestamp     string     `json:"timestamp"`
	SystemName    string     `json:"SystemName"`
	SystemAddress int64      `json:"SystemAddress"`
	StarPos       [3]float64 `json:"StarPos"`
}

// NavRouteMessage is the body of a navroute/1 event
type NavRouteMessage struct {
	Timestamp string     `json:"timestamp"`
	Route     []RouteHop `json:"Route"`
}

// RouteHop is one plotted jump in a nav route
type RouteHop struct {
	StarSystem    string     `json:"StarSystem"`
	SystemAddress int64      `json:"SystemAddress"`
	StarPos       [3]float64 `json:"StarPos"`
}

// ApproachSettlementMessage is the body of an approachsettlement/1 event
type ApproachSettlementMessage struct {
	Timestamp     string     `json:"timestamp"`
	Name          string     `json:"Name"`
	MarketID      int64      `json:"MarketID"`
	BodyID        int64      `json:"BodyID"`
	BodyName      string     `json:"BodyName"`
	Latitude      float64    `json:"Latitude"`
	Longitude     float64    `json:"Longitude"`
	StarSystem    string     `json:"StarSystem"`
	SystemAddress int64      `json:"SystemAddress"`
	StarPos       [3]float64 `json:"StarPos"`
}

// Journal event kinds handled by the journal sub-dispatcher.
const (
	JournalEventLocation    = "Location"
	JournalEventDocked      = "Docked"
	JournalEventCarrierJump = "CarrierJump"
)

// JournalMessage is the body of a journal/1 event. Only the fields the
// Location, Docked and CarrierJump kinds carry are modeled.
type JournalMessage struct {
	Timestamp     string     `json:"timestamp"`
	Event         string     `json:"event"`
	StarSystem    string     `json:"StarSystem"`
	SystemAddress int64      `json:"SystemAddress"`
	StarPos       [3]float64 `json:"StarPos"`

	StationName          string      `json:"StationName"`
	MarketID             int64       `json:"MarketID"`
	StationType          string      `json:"StationType"`
	DistFromStarLS       float64     `json:"DistFromStarLS"`
	StationAllegiance    string      `json:"StationAllegiance"`
	StationGovernment    string      `json:"StationGovernment"`
	StationFaction       *Faction    `json:"StationFaction"`
	StationEconomies     []Economy2  `json:"StationEconomies"`
	StationServices      []string    `json:"StationServices"`
	LandingPads          *LandingPad `json:"LandingPads"`
	BodyID               int64       `json:"BodyID"`
	Body                 string      `json:"Body"`
	Latitude             *float64    `json:"Latitude"`
	Longitude            *float64    `json:"Longitude"`
	CarrierDockingAccess string      `json:"CarrierDockingAccess"`
	Prohibited           []string    `json:"Prohibited"`
}

// Faction is a station's controlling faction
type Faction struct {
	Name string `json:"Name"`
}

// Economy2 is the journal-event economy shape (capitalized keys)
type Economy2 struct {
	Name       string  `json:"Name"`
	Proportion float64 `json:"Proportion"`
}

// LandingPad carries pad counts by size
type LandingPad struct {
	Small  int64 `json:"Small"`
	Medium int64 `json:"Medium"`
	Large  int64 `json:"Large"`
}

// MaxPadSize collapses pad counts to the largest available size:
// 3 large, 2 medium, 1 small, 0 none.
func (p *LandingPad) MaxPadSize() int64 {
	switch {
	case p == nil:
		return 0
	case p.Large > 0:
		return 3
	case p.Medium > 0:
		return 2
	case p.Small > 0:
		return 1
	default:
		return 0
	}
}

// serviceFlags maps upstream station service names (lower-cased) to the
// stations store flag columns.
var serviceFlags = map[string]string{
	"shipyard":           "shipyard",
	"outfitting":         "outfitting",
	"blackmarket":        "blackMarket",
	"repair":             "repair",
	"refuel":             "refuel",
	"rearm":              "restock",
	"contacts":           "contacts",
	"facilitator":        "interstellarFactors",
	"materialtrader":     "materialTrader",
	"missions":           "missions",
	"searchrescue":       "searchAndRescue",
	"techbroker":         "technologyBroker",
	"tuning":             "tuning",
	"exploration":        "universalCartographics",
	"engineer":           "engineer",
	"frontlinesolutions": "frontlineSolutions",
	"apexinterstellar":   "apexInterstellar",
	"vistagenomics":      "vistaGenomics",
	"pioneersupplies":    "pioneerSupplies",
	"bartender":          "bartender",
	"crewlounge":         "crewLounge",
}
