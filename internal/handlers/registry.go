package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/stores"
)

// ErrUnrecognizedSchema marks schemas outside the recognized set; callers
// drop these silently.
var ErrUnrecognizedSchema = errors.New("unrecognized schema")

// Registry routes decoded envelopes to the schema-specific handlers.
// Callers are expected to have already applied the version gate.
type Registry struct {
	systems   *stores.SystemRepository
	locations *stores.LocationRepository
	stations  *stores.StationRepository
	trade     *stores.TradeRepository
	log       zerolog.Logger
}

// New creates a handler registry over the four store repositories
func New(
	systems *stores.SystemRepository,
	locations *stores.LocationRepository,
	stations *stores.StationRepository,
	trade *stores.TradeRepository,
	log zerolog.Logger,
) *Registry {
	return &Registry{
		systems:   systems,
		locations: locations,
		stations:  stations,
		trade:     trade,
		log:       log.With().Str("component", "handlers").Logger(),
	}
}

// Dispatch routes an envelope to its handler by schema tag
func (r *Registry) Dispatch(env *Envelope) error {
	switch {
	case strings.HasSuffix(env.SchemaRef, SchemaCommodity):
		return r.HandleCommodity(env.Message)
	case strings.HasSuffix(env.SchemaRef, SchemaFSSDiscoveryScan):
		return r.HandleFSSDiscoveryScan(env.Message)
	case strings.HasSuffix(env.SchemaRef, SchemaNavRoute):
		return r.HandleNavRoute(env.Message)
	case strings.HasSuffix(env.SchemaRef, SchemaApproachSettlement):
		return r.HandleApproachSettlement(env.Message)
	case strings.HasSuffix(env.SchemaRef, SchemaJournal):
		return r.HandleJournal(env.Message)
	default:
		return ErrUnrecognizedSchema
	}
}

// ensureSystem inserts the containing system when its coordinates are valid.
// A zero-coordinate rejection is not an error for the caller: the event's
// other effects still apply.
func (r *Registry) ensureSystem(address int64, name string, pos [3]float64, updatedAt string) error {
	if address == 0 || name == "" {
		return nil
	}
	err := r.systems.InsertIfAbsent(stores.System{
		Address:   address,
		Name:      name,
		X:         pos[0],
		Y:         pos[1],
		Z:         pos[2],
		UpdatedAt: updatedAt,
	})
	if errors.Is(err, stores.ErrZeroCoordinates) {
		return nil
	}
	return err
}

func parse(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse message body: %w", err)
	}
	return nil
}

// prohibitedJSON serializes a prohibited commodity list for storage, or
// returns nil when the event carried none.
func prohibitedJSON(prohibited []string) interface{} {
	if prohibited == nil {
		return nil
	}
	encoded, err := json.Marshal(prohibited)
	if err != nil {
		return nil
	}
	return string(encoded)
}
