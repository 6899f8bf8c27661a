package stats

import (
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/stores"
)

// Regional report parameters.
const (
	regionalRadiusLY  = 500.0
	regionalMinVolume = 1000
	regionalTopN      = 10
)

// region is a reference point for the regional trade reports. Coordinates
// come from the systems store at generation time, never from here.
type region struct {
	name       string
	systemName string
}

var regions = []region{
	{name: "sol", systemName: stores.OriginSystemName},
	{name: "colonia", systemName: "Colonia"},
}

// RegionalOffer is one market's standing buy or sell offer near a
// reference system.
type RegionalOffer struct {
	MarketID    int64   `json:"marketId"`
	StationName string  `json:"stationName,omitempty"`
	SystemName  string  `json:"systemName,omitempty"`
	Price       int64   `json:"price"`
	Volume      int64   `json:"volume"`
	DistanceLY  float64 `json:"distanceLy"`
}

// RegionalReport lists the best exporters and importers of one commodity
// within the region's radius.
type RegionalReport struct {
	Region          string          `json:"region"`
	ReferenceSystem string          `json:"referenceSystem"`
	RadiusLY        float64         `json:"radiusLy"`
	Commodity       string          `json:"commodity"`
	BestExporters   []RegionalOffer `json:"bestExporters"`
	BestImporters   []RegionalOffer `json:"bestImporters"`
	MaxPriceDelta   int64           `json:"maxPriceDelta,omitempty"`
	GeneratedAt     string          `json:"generatedAt"`
}

// generateRegionalReports writes one <region>-trade.json per commodity per
// configured region. A region whose reference system is absent from the
// systems store is skipped with a warning rather than guessed at.
func (g *Generator) generateRegionalReports(trade *sql.DB) error {
	if err := g.attachSnapshot(trade, database.StoreStations, "st"); err != nil {
		return err
	}

	systems, err := g.openSnapshot(database.StoreSystems)
	if err != nil {
		return err
	}
	defer systems.Close()

	generatedAt, err := dataTimestamp(trade, "commodities")
	if err != nil {
		return err
	}

	for _, reg := range regions {
		start := time.Now()
		var x, y, z float64
		err := systems.QueryRow(
			"SELECT systemX, systemY, systemZ FROM systems WHERE systemName = ? COLLATE NOCASE",
			reg.systemName,
		).Scan(&x, &y, &z)
		if err == sql.ErrNoRows {
			g.log.Warn().
				Str("region", reg.name).
				Str("system", reg.systemName).
				Msg("Reference system not in systems store, skipping regional report")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to look up reference system %s: %w", reg.systemName, err)
		}

		exporters, err := regionalOffers(trade, offerQueryExport, x, y, z)
		if err != nil {
			return fmt.Errorf("region %s: %w", reg.name, err)
		}
		importers, err := regionalOffers(trade, offerQueryImport, x, y, z)
		if err != nil {
			return fmt.Errorf("region %s: %w", reg.name, err)
		}

		written := 0
		for commodity := range mergeCommodityNames(exporters, importers) {
			report := RegionalReport{
				Region:          reg.name,
				ReferenceSystem: reg.systemName,
				RadiusLY:        regionalRadiusLY,
				Commodity:       commodity,
				BestExporters:   exporters[commodity],
				BestImporters:   importers[commodity],
				GeneratedAt:     generatedAt,
			}
			if len(report.BestExporters) > 0 && len(report.BestImporters) > 0 {
				report.MaxPriceDelta = report.BestImporters[0].Price - report.BestExporters[0].Price
			}
			rel := filepath.Join("commodities", commodity, reg.name+"-trade.json")
			if err := g.writeJSON(rel, report); err != nil {
				return err
			}
			written++
		}

		g.log.Info().
			Str("region", reg.name).
			Int("commodities", written).
			Dur("took", time.Since(start)).
			Msg("Regional reports generated")
	}
	return nil
}

type offerQuery int

const (
	offerQueryExport offerQuery = iota
	offerQueryImport
)

// regionalOffers runs the bounding-box query for one side of the market
// and keeps the best offers per commodity inside the exact radius. The box
// over-includes corners, so the Euclidean check in Go is not optional.
func regionalOffers(trade *sql.DB, kind offerQuery, x, y, z float64) (map[string][]RegionalOffer, error) {
	price, volume, order := "c.buyPrice", "c.stock", "ASC"
	if kind == offerQueryImport {
		price, volume, order = "c.sellPrice", "c.demand", "DESC"
	}

	query := fmt.Sprintf(`
		SELECT
			c.commodityName, c.marketId, %s, %s,
			s.stationName, s.systemName, s.systemX, s.systemY, s.systemZ
		FROM commodities c
		JOIN st.stations s ON s.marketId = c.marketId
		WHERE %s > 0 AND %s < ?
			AND %s >= ?
			AND (s.stationType IS NULL OR s.stationType != ?)
			AND s.systemX BETWEEN ? AND ?
			AND s.systemY BETWEEN ? AND ?
			AND s.systemZ BETWEEN ? AND ?
		ORDER BY c.commodityName, %s %s`,
		price, volume, price, price, volume, price, order,
	)

	rows, err := trade.Query(query,
		maxValidPrice, regionalMinVolume, stores.FleetCarrierType,
		x-regionalRadiusLY, x+regionalRadiusLY,
		y-regionalRadiusLY, y+regionalRadiusLY,
		z-regionalRadiusLY, z+regionalRadiusLY,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query regional offers: %w", err)
	}
	defer rows.Close()

	offers := make(map[string][]RegionalOffer)
	for rows.Next() {
		var (
			commodity       string
			offer           RegionalOffer
			station, system sql.NullString
			sx, sy, sz      sql.NullFloat64
		)
		err := rows.Scan(
			&commodity, &offer.MarketID, &offer.Price, &offer.Volume,
			&station, &system, &sx, &sy, &sz,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan regional offer: %w", err)
		}
		if len(offers[commodity]) >= regionalTopN {
			continue
		}

		dx, dy, dz := sx.Float64-x, sy.Float64-y, sz.Float64-z
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if dist > regionalRadiusLY {
			continue
		}
		offer.StationName, offer.SystemName = station.String, system.String
		offer.DistanceLY = math.Round(dist*100) / 100
		offers[commodity] = append(offers[commodity], offer)
	}
	return offers, rows.Err()
}

func mergeCommodityNames(a, b map[string][]RegionalOffer) map[string]struct{} {
	names := make(map[string]struct{}, len(a)+len(b))
	for name := range a {
		names[name] = struct{}{}
	}
	for name := range b {
		names[name] = struct{}{}
	}
	return names
}
