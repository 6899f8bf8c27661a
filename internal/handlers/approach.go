package handlers

import (
	"encoding/json"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/stores"
)

// HandleApproachSettlement normalizes an approachsettlement/1 event. With a
// marketId it is a station placement update; without one it is a surface
// point of interest. Either way the containing system is ensured first.
//
// A settlement that later acquires a marketId keeps its old locations row;
// the stations row simply appears alongside it.
func (r *Registry) HandleApproachSettlement(raw json.RawMessage) error {
	var msg ApproachSettlementMessage
	if err := parse(raw, &msg); err != nil {
		return err
	}

	if err := r.ensureSystem(msg.SystemAddress, msg.StarSystem, msg.StarPos, msg.Timestamp); err != nil {
		return err
	}

	if msg.MarketID != 0 {
		if err := r.stations.Ensure(msg.MarketID, msg.Name, msg.Timestamp); err != nil {
			return err
		}
		rec := database.NewRecord().
			Set("stationName", msg.Name).
			Set("bodyId", msg.BodyID).
			Set("bodyName", msg.BodyName).
			Set("latitude", msg.Latitude).
			Set("longitude", msg.Longitude).
			Set("systemAddress", msg.SystemAddress).
			Set("systemName", msg.StarSystem).
			Set("updatedAt", msg.Timestamp)
		// A (0,0,0) placeholder from a non-origin system must not land in
		// the denormalized station coordinates.
		if stores.ValidCoordinates(msg.StarSystem, msg.StarPos[0], msg.StarPos[1], msg.StarPos[2]) {
			rec.Set("systemX", msg.StarPos[0]).
				Set("systemY", msg.StarPos[1]).
				Set("systemZ", msg.StarPos[2])
		}
		return r.stations.Update(msg.MarketID, rec)
	}

	return r.locations.Upsert(stores.Location{
		Name:          msg.Name,
		SystemAddress: msg.SystemAddress,
		SystemName:    msg.StarSystem,
		SystemX:       msg.StarPos[0],
		SystemY:       msg.StarPos[1],
		SystemZ:       msg.StarPos[2],
		BodyID:        msg.BodyID,
		BodyName:      msg.BodyName,
		Latitude:      msg.Latitude,
		Longitude:     msg.Longitude,
		UpdatedAt:     msg.Timestamp,
	})
}
