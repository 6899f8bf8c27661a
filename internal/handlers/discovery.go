package handlers

import (
	"encoding/json"
)

// HandleFSSDiscoveryScan records a scanned system. Insert-if-absent keyed by
// systemAddress; existing coordinates are never overwritten.
func (r *Registry) HandleFSSDiscoveryScan(raw json.RawMessage) error {
	var msg FSSDiscoveryScanMessage
	if err := parse(raw, &msg); err != nil {
		return err
	}
	return r.ensureSystem(msg.SystemAddress, msg.SystemName, msg.StarPos, msg.Timestamp)
}

// HandleNavRoute records every hop of a plotted route. Route echoes often
// carry (0,0,0) placeholders; those hops are skipped, except for the origin
// system which genuinely sits at the galactic origin.
func (r *Registry) HandleNavRoute(raw json.RawMessage) error {
	var msg NavRouteMessage
	if err := parse(raw, &msg); err != nil {
		return err
	}
	for _, hop := range msg.Route {
		if err := r.ensureSystem(hop.SystemAddress, hop.StarSystem, hop.StarPos, msg.Timestamp); err != nil {
			return err
		}
	}
	return nil
}
