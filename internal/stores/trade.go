package stores

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/database"
)

const tradeColumns = `commodityName, marketId, buyPrice, sellPrice, meanPrice, stock, demand, stockBracket, demandBracket, updatedAt, updatedAtDay`

// TradeRepository handles trade store operations. Exactly one row per
// (commodity, market) pair; the latest write wins. Stations referenced by
// marketId may not yet exist in the stations store.
type TradeRepository struct {
	db    *database.DB
	stmts *database.StmtCache
	log   zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *database.DB, stmts *database.StmtCache, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:    db,
		stmts: stmts,
		log:   log.With().Str("repo", "trade").Logger(),
	}
}

// Upsert replaces the row for (commodity, market) with the full tuple.
// Commodity events always carry every column, so whole-row replacement is
// safe here (unlike stations).
func (r *TradeRepository) Upsert(order TradeOrder) error {
	if order.UpdatedAtDay == "" && len(order.UpdatedAt) >= 10 {
		order.UpdatedAtDay = order.UpdatedAt[:10]
	}

	rec := database.NewRecord().
		Set("commodityName", order.CommodityName).
		Set("marketId", order.MarketID).
		Set("buyPrice", order.BuyPrice).
		Set("sellPrice", order.SellPrice).
		Set("meanPrice", order.MeanPrice).
		Set("stock", order.Stock).
		Set("demand", order.Demand).
		Set("stockBracket", order.StockBracket).
		Set("demandBracket", order.DemandBracket).
		Set("updatedAt", order.UpdatedAt).
		Set("updatedAtDay", order.UpdatedAtDay)

	if err := r.stmts.InsertOrReplace(r.db, "commodities", rec); err != nil {
		return fmt.Errorf("failed to upsert trade order %s@%d: %w", order.CommodityName, order.MarketID, err)
	}
	return nil
}

// Get returns the row for (commodity, market), or nil
func (r *TradeRepository) Get(commodityName string, marketID int64) (*TradeOrder, error) {
	row := r.db.QueryRow(
		"SELECT "+tradeColumns+" FROM commodities WHERE commodityName = ? AND marketId = ?",
		commodityName, marketID,
	)

	var order TradeOrder
	var updatedAt, updatedAtDay sql.NullString
	err := row.Scan(
		&order.CommodityName, &order.MarketID,
		&order.BuyPrice, &order.SellPrice, &order.MeanPrice,
		&order.Stock, &order.Demand,
		&order.StockBracket, &order.DemandBracket,
		&updatedAt, &updatedAtDay,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan trade order: %w", err)
	}

	order.UpdatedAt = updatedAt.String
	order.UpdatedAtDay = updatedAtDay.String
	return &order, nil
}

// CountForMarket returns the number of trade rows for a market
func (r *TradeRepository) CountForMarket(marketID int64) (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM commodities WHERE marketId = ?", marketID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trade orders: %w", err)
	}
	return count, nil
}

// Count returns the total number of trade rows
func (r *TradeRepository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM commodities").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count trade orders: %w", err)
	}
	return count, nil
}
