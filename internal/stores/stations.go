package stores

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/database"
)

// StationRepository handles stations store operations. marketId is the
// identity; handlers ensure a stub row exists, then update only the columns
// their payload actually carries so partial updates never wipe fields.
type StationRepository struct {
	db    *database.DB
	stmts *database.StmtCache
	log   zerolog.Logger
}

// NewStationRepository creates a new station repository
func NewStationRepository(db *database.DB, stmts *database.StmtCache, log zerolog.Logger) *StationRepository {
	return &StationRepository{
		db:    db,
		stmts: stmts,
		log:   log.With().Str("repo", "stations").Logger(),
	}
}

// Ensure creates a stub station row when none exists for the market id
func (r *StationRepository) Ensure(marketID int64, stationName, updatedAt string) error {
	rec := database.NewRecord().
		Set("marketId", marketID).
		Set("stationName", stationName).
		Set("updatedAt", updatedAt)

	if err := r.stmts.InsertOrIgnore(r.db, "stations", rec); err != nil {
		return fmt.Errorf("failed to ensure station %d: %w", marketID, err)
	}
	return nil
}

// Update applies the record's columns to the station row identified by
// marketID. Columns absent from the record keep their stored values.
func (r *StationRepository) Update(marketID int64, rec *database.Record) error {
	if rec.Len() == 0 {
		return nil
	}
	where := database.NewRecord().Set("marketId", marketID)
	if err := r.stmts.Update(r.db, "stations", rec, where); err != nil {
		return fmt.Errorf("failed to update station %d: %w", marketID, err)
	}
	return nil
}

// GetByMarketID returns the station with the given market id, or nil
func (r *StationRepository) GetByMarketID(marketID int64) (*Station, error) {
	serviceList := strings.Join(ServiceColumns, ", ")
	query := `SELECT marketId, stationName, distanceToArrival, stationType,
		allegiance, government, controllingFaction, primaryEconomy, secondaryEconomy,
		` + serviceList + `,
		bodyId, bodyName, latitude, longitude,
		systemAddress, systemName, systemX, systemY, systemZ,
		maxLandingPadSize, prohibited, carrierDockingAccess, updatedAt
		FROM stations WHERE marketId = ?`

	row := r.db.QueryRow(query, marketID)

	var st Station
	var name, stationType, allegiance, government, faction sql.NullString
	var primaryEconomy, secondaryEconomy, bodyName, systemName sql.NullString
	var prohibited, dockingAccess, updatedAt sql.NullString
	var distance, latitude, longitude, x, y, z sql.NullFloat64
	var bodyID, systemAddress, padSize sql.NullInt64

	services := make([]sql.NullInt64, len(ServiceColumns))

	dest := []interface{}{
		&st.MarketID, &name, &distance, &stationType,
		&allegiance, &government, &faction, &primaryEconomy, &secondaryEconomy,
	}
	for i := range services {
		dest = append(dest, &services[i])
	}
	dest = append(dest,
		&bodyID, &bodyName, &latitude, &longitude,
		&systemAddress, &systemName, &x, &y, &z,
		&padSize, &prohibited, &dockingAccess, &updatedAt,
	)

	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan station: %w", err)
	}

	st.Name = name.String
	st.DistanceToArrival = distance.Float64
	st.Type = stationType.String
	st.Allegiance = allegiance.String
	st.Government = government.String
	st.ControllingFaction = faction.String
	st.PrimaryEconomy = primaryEconomy.String
	st.SecondaryEconomy = secondaryEconomy.String

	st.Services = make(map[string]bool, len(ServiceColumns))
	for i, col := range ServiceColumns {
		st.Services[col] = services[i].Int64 != 0
	}

	st.BodyID = bodyID.Int64
	st.BodyName = bodyName.String
	st.Latitude = latitude.Float64
	st.Longitude = longitude.Float64
	st.SystemAddress = systemAddress.Int64
	st.SystemName = systemName.String
	st.SystemX = x.Float64
	st.SystemY = y.Float64
	st.SystemZ = z.Float64
	st.MaxLandingPadSize = padSize.Int64
	st.Prohibited = prohibited.String
	st.CarrierDockingAccess = dockingAccess.String
	st.UpdatedAt = updatedAt.String
	return &st, nil
}

// Count returns the number of stored stations
func (r *StationRepository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM stations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count stations: %w", err)
	}
	return count, nil
}
