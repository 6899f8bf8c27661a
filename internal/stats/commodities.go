package stats

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aristath/beacon/internal/database"
)

// PriceStats is a min/avg/max triple over valid prices.
type PriceStats struct {
	Min int64   `json:"min"`
	Avg float64 `json:"avg"`
	Max int64   `json:"max"`
}

// CommodityStats is the per-commodity aggregate report. Buy prices only
// count markets with stock, sell prices only markets with demand, and
// placeholder prices outside (0, 999999) are excluded everywhere.
type CommodityStats struct {
	Name        string     `json:"name"`
	Rare        bool       `json:"rare,omitempty"`
	Buy         PriceStats `json:"buy"`
	Sell        PriceStats `json:"sell"`
	TotalStock  int64      `json:"totalStock"`
	TotalDemand int64      `json:"totalDemand"`
	GeneratedAt string     `json:"generatedAt"`
}

// GenerateCommodityStats computes the per-commodity aggregates, writes one
// JSON per commodity plus the combined commodities.json, then produces the
// regional reports unless disabled.
func (g *Generator) GenerateCommodityStats() error {
	start := time.Now()

	trade, err := g.openSnapshot(database.StoreTrade)
	if err != nil {
		return err
	}
	defer trade.Close()

	all, err := g.aggregateCommodities(trade)
	if err != nil {
		return err
	}

	for _, stats := range all {
		rel := filepath.Join("commodities", stats.Name, "stats.json")
		if err := g.writeJSON(rel, stats); err != nil {
			return err
		}
	}
	if err := g.writeJSON(CommoditiesFile, all); err != nil {
		return err
	}

	g.log.Info().
		Int("commodities", len(all)).
		Dur("took", time.Since(start)).
		Msg("Commodity aggregates generated")

	if g.skipRegional {
		g.log.Info().Msg("Regional reports disabled, skipping")
		return nil
	}
	return g.generateRegionalReports(trade)
}

func (g *Generator) aggregateCommodities(trade *sql.DB) ([]CommodityStats, error) {
	rows, err := trade.Query(`
		SELECT
			commodityName,
			MIN(CASE WHEN stock >= 1 AND buyPrice > 0 AND buyPrice < ? THEN buyPrice END),
			AVG(CASE WHEN stock >= 1 AND buyPrice > 0 AND buyPrice < ? THEN buyPrice END),
			MAX(CASE WHEN stock >= 1 AND buyPrice > 0 AND buyPrice < ? THEN buyPrice END),
			MIN(CASE WHEN demand >= 1 AND sellPrice > 0 AND sellPrice < ? THEN sellPrice END),
			AVG(CASE WHEN demand >= 1 AND sellPrice > 0 AND sellPrice < ? THEN sellPrice END),
			MAX(CASE WHEN demand >= 1 AND sellPrice > 0 AND sellPrice < ? THEN sellPrice END),
			COALESCE(SUM(stock), 0),
			COALESCE(SUM(demand), 0),
			MAX(updatedAt)
		FROM commodities
		GROUP BY commodityName
		ORDER BY commodityName`,
		maxValidPrice, maxValidPrice, maxValidPrice,
		maxValidPrice, maxValidPrice, maxValidPrice,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate commodities: %w", err)
	}
	defer rows.Close()

	var all []CommodityStats
	for rows.Next() {
		var (
			stats            CommodityStats
			buyMin, buyMax   sql.NullInt64
			sellMin, sellMax sql.NullInt64
			buyAvg, sellAvg  sql.NullFloat64
			updated          sql.NullString
		)
		err := rows.Scan(
			&stats.Name,
			&buyMin, &buyAvg, &buyMax,
			&sellMin, &sellAvg, &sellMax,
			&stats.TotalStock, &stats.TotalDemand,
			&updated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commodity aggregate: %w", err)
		}
		stats.Buy = PriceStats{Min: buyMin.Int64, Avg: buyAvg.Float64, Max: buyMax.Int64}
		stats.Sell = PriceStats{Min: sellMin.Int64, Avg: sellAvg.Float64, Max: sellMax.Int64}
		// Stamped from the data so an unchanged snapshot regenerates the
		// same bytes.
		stats.GeneratedAt = updated.String

		if IsRareCommodity(stats.Name) {
			applyRareOverride(&stats)
		}
		all = append(all, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commodity aggregates: %w", err)
	}
	return all, nil
}

// applyRareOverride replaces the market aggregates of a rare good: a single
// origin market sets the buy price, sell prices are buy plus the rare-goods
// premium, and the volume sums are meaningless so they are zeroed.
func applyRareOverride(stats *CommodityStats) {
	stats.Rare = true
	buy := stats.Buy.Min
	stats.Buy = PriceStats{Min: buy, Avg: float64(buy), Max: buy}
	sell := buy + rareGoodsPremium
	stats.Sell = PriceStats{Min: sell, Avg: float64(sell), Max: sell}
	stats.TotalStock = 0
	stats.TotalDemand = 0
}
