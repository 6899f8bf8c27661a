package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/stores"
)

// HandleCommodity normalizes a commodity/3 event: it makes sure the station
// row exists, refreshes the station attributes the event carries, then
// upserts one trade row per commodity. Commodities missing from the event
// are NOT deleted - latest-seen semantics only.
func (r *Registry) HandleCommodity(raw json.RawMessage) error {
	var msg CommodityMessage
	if err := parse(raw, &msg); err != nil {
		return err
	}
	if msg.MarketID == 0 {
		return fmt.Errorf("commodity event without marketId")
	}

	if err := r.stations.Ensure(msg.MarketID, msg.StationName, msg.Timestamp); err != nil {
		return err
	}

	rec := database.NewRecord()
	if msg.StationName != "" {
		rec.Set("stationName", msg.StationName)
	}
	if msg.StationType != "" {
		rec.Set("stationType", msg.StationType)
	}
	if msg.SystemName != "" {
		rec.Set("systemName", msg.SystemName)
		if sys, err := r.systems.GetByName(msg.SystemName); err == nil && sys != nil {
			// Denormalize coordinates for the spatial pre-filter. These may
			// trail the systems store by one event, which is acceptable.
			rec.Set("systemAddress", sys.Address)
			rec.Set("systemX", sys.X)
			rec.Set("systemY", sys.Y)
			rec.Set("systemZ", sys.Z)
		}
	}
	if len(msg.Economies) > 0 {
		rec.Set("primaryEconomy", msg.Economies[0].Name)
		if len(msg.Economies) > 1 {
			rec.Set("secondaryEconomy", msg.Economies[1].Name)
		}
	}
	if msg.Prohibited != nil {
		rec.Set("prohibited", prohibitedJSON(msg.Prohibited))
	}
	if msg.CarrierDockingAccess != "" {
		rec.Set("carrierDockingAccess", msg.CarrierDockingAccess)
	}
	rec.Set("updatedAt", msg.Timestamp)

	if err := r.stations.Update(msg.MarketID, rec); err != nil {
		return err
	}

	for _, commodity := range msg.Commodities {
		if commodity.Name == "" {
			continue
		}
		err := r.trade.Upsert(stores.TradeOrder{
			CommodityName: commodity.Name,
			MarketID:      msg.MarketID,
			BuyPrice:      commodity.BuyPrice,
			SellPrice:     commodity.SellPrice,
			MeanPrice:     commodity.MeanPrice,
			Stock:         commodity.Stock,
			Demand:        commodity.Demand,
			StockBracket:  commodity.StockBracket,
			DemandBracket: commodity.DemandBracket,
			UpdatedAt:     msg.Timestamp,
		})
		if err != nil {
			return err
		}
	}

	return nil
}
