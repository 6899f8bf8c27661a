package stats

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/beacon/internal/database"
)

// TickerEndpoint is one side of a hot trade: where to buy or sell.
type TickerEndpoint struct {
	MarketID    int64  `json:"marketId"`
	Price       int64  `json:"price"`
	Volume      int64  `json:"volume"`
	StationName string `json:"stationName,omitempty"`
	SystemName  string `json:"systemName,omitempty"`
}

// HotTrade is a buy-here-sell-there pair ranked by profit per unit.
type HotTrade struct {
	Commodity string         `json:"commodity"`
	Profit    int64          `json:"profit"`
	Buy       TickerEndpoint `json:"buy"`
	Sell      TickerEndpoint `json:"sell"`
}

// HighValueCommodity ranks commodities by their best sell price.
type HighValueCommodity struct {
	Commodity    string `json:"commodity"`
	MaxSellPrice int64  `json:"maxSellPrice"`
	Markets      int64  `json:"markets"`
	TotalDemand  int64  `json:"totalDemand"`
}

// ActiveCommodity ranks commodities by distinct markets updated in the
// last 24 hours.
type ActiveCommodity struct {
	Commodity     string  `json:"commodity"`
	ActiveMarkets int64   `json:"activeMarkets"`
	TotalStock    int64   `json:"totalStock"`
	TotalDemand   int64   `json:"totalDemand"`
	AvgBuyPrice   float64 `json:"avgBuyPrice"`
	AvgSellPrice  float64 `json:"avgSellPrice"`
}

// Ticker is the commodity-ticker.json shape.
type Ticker struct {
	HotTrades   []HotTrade           `json:"hotTrades"`
	HighValue   []HighValueCommodity `json:"highValue"`
	MostActive  []ActiveCommodity    `json:"mostActive"`
	GeneratedAt string               `json:"generatedAt"`
}

// GenerateTicker builds the three ticker arrays from the trade snapshot,
// with station names joined in from the stations snapshot.
func (g *Generator) GenerateTicker() error {
	start := time.Now()

	trade, err := g.openSnapshot(database.StoreTrade)
	if err != nil {
		return err
	}
	defer trade.Close()
	if err := g.attachSnapshot(trade, database.StoreStations, "st"); err != nil {
		return err
	}

	ts, err := dataTimestamp(trade, "commodities")
	if err != nil {
		return err
	}

	ticker := Ticker{GeneratedAt: ts}
	if ticker.HotTrades, err = hotTrades(trade); err != nil {
		return err
	}
	if ticker.HighValue, err = highValue(trade); err != nil {
		return err
	}
	if ticker.MostActive, err = mostActive(trade, dayBefore(ts)); err != nil {
		return err
	}

	if err := g.writeJSON(TickerFile, ticker); err != nil {
		return err
	}

	g.log.Info().
		Int("hotTrades", len(ticker.HotTrades)).
		Int("highValue", len(ticker.HighValue)).
		Int("mostActive", len(ticker.MostActive)).
		Dur("took", time.Since(start)).
		Msg("Ticker generated")
	return nil
}

// hotTrades self-joins the trade store on commodity name: buy where there
// is stock, sell where there is demand, different markets, both prices
// valid, ranked by per-unit profit.
func hotTrades(trade *sql.DB) ([]HotTrade, error) {
	rows, err := trade.Query(`
		SELECT
			b.commodityName,
			s.sellPrice - b.buyPrice AS profit,
			b.marketId, b.buyPrice, b.stock, bs.stationName, bs.systemName,
			s.marketId, s.sellPrice, s.demand, ss.stationName, ss.systemName
		FROM commodities b
		JOIN commodities s
			ON s.commodityName = b.commodityName
			AND s.marketId != b.marketId
		LEFT JOIN st.stations bs ON bs.marketId = b.marketId
		LEFT JOIN st.stations ss ON ss.marketId = s.marketId
		WHERE b.stock >= 100
			AND s.demand >= 100
			AND b.buyPrice > 0 AND b.buyPrice < ?
			AND s.sellPrice > 0 AND s.sellPrice < ?
			AND s.sellPrice > b.buyPrice
		ORDER BY profit DESC
		LIMIT 20`,
		maxValidPrice, maxValidPrice,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query hot trades: %w", err)
	}
	defer rows.Close()

	var trades []HotTrade
	for rows.Next() {
		var (
			t                       HotTrade
			buyStation, buySystem   sql.NullString
			sellStation, sellSystem sql.NullString
		)
		err := rows.Scan(
			&t.Commodity, &t.Profit,
			&t.Buy.MarketID, &t.Buy.Price, &t.Buy.Volume, &buyStation, &buySystem,
			&t.Sell.MarketID, &t.Sell.Price, &t.Sell.Volume, &sellStation, &sellSystem,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hot trade: %w", err)
		}
		t.Buy.StationName, t.Buy.SystemName = buyStation.String, buySystem.String
		t.Sell.StationName, t.Sell.SystemName = sellStation.String, sellSystem.String
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func highValue(trade *sql.DB) ([]HighValueCommodity, error) {
	rows, err := trade.Query(`
		SELECT
			commodityName,
			MAX(sellPrice),
			COUNT(DISTINCT marketId),
			COALESCE(SUM(demand), 0)
		FROM commodities
		WHERE sellPrice > 0 AND sellPrice < ?
		GROUP BY commodityName
		ORDER BY MAX(sellPrice) DESC
		LIMIT 10`,
		maxValidPrice,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query high-value commodities: %w", err)
	}
	defer rows.Close()

	var out []HighValueCommodity
	for rows.Next() {
		var c HighValueCommodity
		if err := rows.Scan(&c.Commodity, &c.MaxSellPrice, &c.Markets, &c.TotalDemand); err != nil {
			return nil, fmt.Errorf("failed to scan high-value commodity: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func mostActive(trade *sql.DB, cutoff string) ([]ActiveCommodity, error) {
	rows, err := trade.Query(`
		SELECT
			commodityName,
			COUNT(DISTINCT marketId) AS activeMarkets,
			COALESCE(SUM(stock), 0),
			COALESCE(SUM(demand), 0),
			COALESCE(AVG(CASE WHEN buyPrice > 0 AND buyPrice < ? THEN buyPrice END), 0),
			COALESCE(AVG(CASE WHEN sellPrice > 0 AND sellPrice < ? THEN sellPrice END), 0)
		FROM commodities
		WHERE updatedAt > ?
		GROUP BY commodityName
		HAVING activeMarkets >= 5
		ORDER BY activeMarkets DESC
		LIMIT 10`,
		maxValidPrice, maxValidPrice, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query most-active commodities: %w", err)
	}
	defer rows.Close()

	var out []ActiveCommodity
	for rows.Next() {
		var c ActiveCommodity
		err := rows.Scan(
			&c.Commodity, &c.ActiveMarkets,
			&c.TotalStock, &c.TotalDemand,
			&c.AvgBuyPrice, &c.AvgSellPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan most-active commodity: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
