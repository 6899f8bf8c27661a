package stores

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/sector"
)

// excludedLocationPrefixes filters out colonisation build sites; they churn
// constantly and are not durable points of interest.
var excludedLocationPrefixes = []string{
	"planetary construction site:",
	"orbital construction site:",
}

const locationsColumns = `locationId, locationName, systemAddress, systemName, systemX, systemY, systemZ, bodyId, bodyName, latitude, longitude, updatedAt`

// LocationRepository handles locations store operations
type LocationRepository struct {
	db    *database.DB
	stmts *database.StmtCache
	log   zerolog.Logger
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *database.DB, stmts *database.StmtCache, log zerolog.Logger) *LocationRepository {
	return &LocationRepository{
		db:    db,
		stmts: stmts,
		log:   log.With().Str("repo", "locations").Logger(),
	}
}

// LocationID computes the content hash that keys the locations table.
func LocationID(systemAddress int64, name string, bodyID int64, latitude, longitude float64) string {
	return sector.ContentID(
		strconv.FormatInt(systemAddress, 10),
		name,
		strconv.FormatInt(bodyID, 10),
		strconv.FormatFloat(latitude, 'f', -1, 64),
		strconv.FormatFloat(longitude, 'f', -1, 64),
	)
}

// Excluded reports whether a location name matches the excluded prefix set
func Excluded(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range excludedLocationPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Upsert stores a location, replacing any row with the same content hash.
// Excluded names are silently discarded.
func (r *LocationRepository) Upsert(loc Location) error {
	if Excluded(loc.Name) {
		r.log.Debug().Str("location", loc.Name).Msg("Discarding excluded location")
		return nil
	}

	if loc.ID == "" {
		loc.ID = LocationID(loc.SystemAddress, loc.Name, loc.BodyID, loc.Latitude, loc.Longitude)
	}

	rec := database.NewRecord().
		Set("locationId", loc.ID).
		Set("locationName", loc.Name).
		Set("systemAddress", loc.SystemAddress).
		Set("systemName", loc.SystemName).
		Set("systemX", loc.SystemX).
		Set("systemY", loc.SystemY).
		Set("systemZ", loc.SystemZ).
		Set("bodyId", loc.BodyID).
		Set("bodyName", loc.BodyName).
		Set("latitude", loc.Latitude).
		Set("longitude", loc.Longitude).
		Set("updatedAt", loc.UpdatedAt)

	if err := r.stmts.InsertOrReplace(r.db, "locations", rec); err != nil {
		return fmt.Errorf("failed to upsert location %s: %w", loc.Name, err)
	}
	return nil
}

// GetByID returns the location with the given content hash, or nil
func (r *LocationRepository) GetByID(id string) (*Location, error) {
	row := r.db.QueryRow("SELECT "+locationsColumns+" FROM locations WHERE locationId = ?", id)

	var loc Location
	var name, systemName, bodyName, updatedAt sql.NullString
	var x, y, z, lat, lon sql.NullFloat64
	var systemAddress, bodyID sql.NullInt64

	err := row.Scan(&loc.ID, &name, &systemAddress, &systemName, &x, &y, &z, &bodyID, &bodyName, &lat, &lon, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan location: %w", err)
	}

	loc.Name = name.String
	loc.SystemAddress = systemAddress.Int64
	loc.SystemName = systemName.String
	loc.SystemX = x.Float64
	loc.SystemY = y.Float64
	loc.SystemZ = z.Float64
	loc.BodyID = bodyID.Int64
	loc.BodyName = bodyName.String
	loc.Latitude = lat.Float64
	loc.Longitude = lon.Float64
	loc.UpdatedAt = updatedAt.String
	return &loc, nil
}

// Count returns the number of stored locations
func (r *LocationRepository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM locations").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count locations: %w", err)
	}
	return count, nil
}
