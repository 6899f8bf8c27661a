package reliability

import (
	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/database"
)

// Optimizer runs vacuum and analyze over the live databases. Callers hold
// the write lock; vacuum rewrites the whole file.
type Optimizer struct {
	dbs map[string]*database.DB
	log zerolog.Logger
}

// NewOptimizer creates an optimizer over the live databases.
func NewOptimizer(dbs map[string]*database.DB, log zerolog.Logger) *Optimizer {
	return &Optimizer{
		dbs: dbs,
		log: log.With().Str("component", "optimize").Logger(),
	}
}

// VacuumAll rebuilds every database file and refreshes planner statistics.
// Per-database failures are logged and the remaining databases still run.
func (o *Optimizer) VacuumAll() {
	for name, db := range o.dbs {
		o.VacuumOne(name, db)
	}
}

// VacuumOne rebuilds a single database file, logging the reclaimed space.
func (o *Optimizer) VacuumOne(name string, db *database.DB) {
	before := db.GetStats().SizeBytes
	if err := db.Vacuum(); err != nil {
		o.log.Error().Err(err).Str("database", name).Msg("Vacuum failed")
		return
	}
	after := db.GetStats().SizeBytes
	o.log.Info().
		Str("database", name).
		Int64("beforeBytes", before).
		Int64("afterBytes", after).
		Int64("reclaimedBytes", before-after).
		Msg("Database vacuumed")

	if err := db.Analyze(); err != nil {
		o.log.Error().Err(err).Str("database", name).Msg("Analyze failed")
	}
}
