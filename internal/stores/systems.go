package stores

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/sector"
)

// ErrZeroCoordinates is returned when a non-origin system arrives with the
// (0,0,0) placeholder position.
var ErrZeroCoordinates = errors.New("zero coordinates for non-origin system")

// systemsColumns is the column list for the systems table.
// Column order must match scanSystem().
const systemsColumns = `systemAddress, systemName, systemX, systemY, systemZ, systemSector, updatedAt`

// SystemRepository handles systems store operations
type SystemRepository struct {
	db      *database.DB
	stmts   *database.StmtCache
	sectors *sector.Hasher
	log     zerolog.Logger
}

// NewSystemRepository creates a new system repository
func NewSystemRepository(db *database.DB, stmts *database.StmtCache, sectors *sector.Hasher, log zerolog.Logger) *SystemRepository {
	return &SystemRepository{
		db:      db,
		stmts:   stmts,
		sectors: sectors,
		log:     log.With().Str("repo", "systems").Logger(),
	}
}

// InsertIfAbsent stores a system row unless one with the same address already
// exists. Existing coordinates are never overwritten; route-echo events that
// lack coordinates must not clobber a previously known position.
func (r *SystemRepository) InsertIfAbsent(sys System) error {
	if !ValidCoordinates(sys.Name, sys.X, sys.Y, sys.Z) {
		return ErrZeroCoordinates
	}

	rec := database.NewRecord().
		Set("systemAddress", sys.Address).
		Set("systemName", sys.Name).
		Set("systemX", sys.X).
		Set("systemY", sys.Y).
		Set("systemZ", sys.Z).
		Set("systemSector", r.sectors.SectorID(sys.X, sys.Y, sys.Z)).
		Set("updatedAt", sys.UpdatedAt)

	if err := r.stmts.InsertOrIgnore(r.db, "systems", rec); err != nil {
		return fmt.Errorf("failed to insert system %d: %w", sys.Address, err)
	}
	return nil
}

// GetByAddress returns the system with the given address, or nil when absent
func (r *SystemRepository) GetByAddress(address int64) (*System, error) {
	row := r.db.QueryRow("SELECT "+systemsColumns+" FROM systems WHERE systemAddress = ?", address)
	return scanSystem(row)
}

// GetByName returns the first system matching the name, case-insensitively
func (r *SystemRepository) GetByName(name string) (*System, error) {
	row := r.db.QueryRow("SELECT "+systemsColumns+" FROM systems WHERE systemName = ? COLLATE NOCASE", name)
	return scanSystem(row)
}

// Count returns the number of stored systems
func (r *SystemRepository) Count() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM systems").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count systems: %w", err)
	}
	return count, nil
}

func scanSystem(row *sql.Row) (*System, error) {
	var sys System
	var name, sectorID, updatedAt sql.NullString
	var x, y, z sql.NullFloat64

	err := row.Scan(&sys.Address, &name, &x, &y, &z, &sectorID, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan system: %w", err)
	}

	sys.Name = name.String
	sys.X = x.Float64
	sys.Y = y.Float64
	sys.Z = z.Float64
	sys.Sector = sectorID.String
	sys.UpdatedAt = updatedAt.String
	return &sys, nil
}
