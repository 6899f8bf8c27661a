package handlers

import (
	"encoding/json"
	"strings"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/stores"
)

// HandleJournal sub-dispatches a journal/1 event by its inner event kind.
// Location, Docked and CarrierJump feed the systems and stations stores;
// every other kind is ignored.
func (r *Registry) HandleJournal(raw json.RawMessage) error {
	var msg JournalMessage
	if err := parse(raw, &msg); err != nil {
		return err
	}

	switch msg.Event {
	case JournalEventLocation, JournalEventDocked, JournalEventCarrierJump:
		if err := r.ensureSystem(msg.SystemAddress, msg.StarSystem, msg.StarPos, msg.Timestamp); err != nil {
			return err
		}
		// A Docked event always names a market; a Location event only does
		// when the player logged in docked; a CarrierJump relocates the
		// carrier's existing station row.
		if msg.MarketID == 0 {
			return nil
		}
		return r.updateStationFromJournal(&msg)
	default:
		return nil
	}
}

// updateStationFromJournal ensures the station row and applies every field
// the journal event carries. Fields the event omits keep their stored
// values, so a sparse Docked event carrying only docking access and a
// prohibited list never wipes economies or services.
func (r *Registry) updateStationFromJournal(msg *JournalMessage) error {
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
	if msg.DistFromStarLS > 0 {
		rec.Set("distanceToArrival", msg.DistFromStarLS)
	}
	if msg.StationAllegiance != "" {
		rec.Set("allegiance", msg.StationAllegiance)
	}
	if msg.StationGovernment != "" {
		rec.Set("government", msg.StationGovernment)
	}
	if msg.StationFaction != nil && msg.StationFaction.Name != "" {
		rec.Set("controllingFaction", msg.StationFaction.Name)
	}
	if len(msg.StationEconomies) > 0 {
		rec.Set("primaryEconomy", msg.StationEconomies[0].Name)
		if len(msg.StationEconomies) > 1 {
			rec.Set("secondaryEconomy", msg.StationEconomies[1].Name)
		}
	}

	// A present service list is authoritative for all flags; flags are
	// appended in schema order so the record shape stays deterministic.
	if msg.StationServices != nil {
		observed := make(map[string]bool, len(msg.StationServices))
		for _, service := range msg.StationServices {
			if col, ok := serviceFlags[strings.ToLower(service)]; ok {
				observed[col] = true
			}
		}
		for _, col := range stores.ServiceColumns {
			if observed[col] {
				rec.Set(col, 1)
			} else {
				rec.Set(col, 0)
			}
		}
	}

	if msg.LandingPads != nil {
		rec.Set("maxLandingPadSize", msg.LandingPads.MaxPadSize())
	}
	if msg.BodyID != 0 {
		rec.Set("bodyId", msg.BodyID)
	}
	if msg.Body != "" {
		rec.Set("bodyName", msg.Body)
	}
	if msg.Latitude != nil {
		rec.Set("latitude", *msg.Latitude)
	}
	if msg.Longitude != nil {
		rec.Set("longitude", *msg.Longitude)
	}
	if msg.SystemAddress != 0 {
		rec.Set("systemAddress", msg.SystemAddress)
	}
	if msg.StarSystem != "" {
		rec.Set("systemName", msg.StarSystem)
	}
	if stores.ValidCoordinates(msg.StarSystem, msg.StarPos[0], msg.StarPos[1], msg.StarPos[2]) {
		rec.Set("systemX", msg.StarPos[0])
		rec.Set("systemY", msg.StarPos[1])
		rec.Set("systemZ", msg.StarPos[2])
	}
	if msg.CarrierDockingAccess != "" {
		rec.Set("carrierDockingAccess", msg.CarrierDockingAccess)
	}
	if msg.Prohibited != nil {
		rec.Set("prohibited", prohibitedJSON(msg.Prohibited))
	}
	rec.Set("updatedAt", msg.Timestamp)

	return r.stations.Update(msg.MarketID, rec)
}
