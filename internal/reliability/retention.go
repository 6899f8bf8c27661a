package reliability

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/stores"
)

// Retention deletes trade rows past their horizon. It is the only code
// path that ever deletes rows; the ingest path never does.
type Retention struct {
	trade    *database.DB
	stations *database.DB
	log      zerolog.Logger

	tradeDays      int
	rescueShipDays int
	carrierDays    int
}

// NewRetention creates a retention sweeper over the live trade and stations
// databases. Horizons are in days; a zero or negative horizon disables that
// sweep.
func NewRetention(trade, stations *database.DB, tradeDays, rescueShipDays, carrierDays int, log zerolog.Logger) *Retention {
	return &Retention{
		trade:          trade,
		stations:       stations,
		log:            log.With().Str("component", "retention").Logger(),
		tradeDays:      tradeDays,
		rescueShipDays: rescueShipDays,
		carrierDays:    carrierDays,
	}
}

// Sweep runs all enabled retention sweeps. Individual sweep failures are
// logged and do not stop the others; the next maintenance window retries.
func (r *Retention) Sweep() {
	if r.tradeDays > 0 {
		if n, err := r.sweepTrade(r.tradeDays); err != nil {
			r.log.Error().Err(err).Msg("Trade retention sweep failed")
		} else if n > 0 {
			r.log.Info().Int64("deleted", n).Int("days", r.tradeDays).Msg("Stale trade rows deleted")
		}
	}
	if r.rescueShipDays > 0 {
		if n, err := r.sweepRescueShips(r.rescueShipDays); err != nil {
			r.log.Error().Err(err).Msg("Rescue-ship retention sweep failed")
		} else if n > 0 {
			r.log.Info().Int64("deleted", n).Int("days", r.rescueShipDays).Msg("Rescue-ship trade rows deleted")
		}
	}
	if r.carrierDays > 0 {
		if n, err := r.sweepCarriers(r.carrierDays); err != nil {
			r.log.Error().Err(err).Msg("Carrier retention sweep failed")
		} else if n > 0 {
			r.log.Info().Int64("deleted", n).Int("days", r.carrierDays).Msg("Carrier trade rows deleted")
		}
	}
}

func horizon(days int) string {
	return time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
}

func (r *Retention) sweepTrade(days int) (int64, error) {
	res, err := r.trade.Exec("DELETE FROM commodities WHERE updatedAt < ?", horizon(days))
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale trade rows: %w", err)
	}
	return res.RowsAffected()
}

// sweepRescueShips removes trade rows for rescue megaships sooner than the
// general horizon: those markets relocate when their emergency ends, so
// their old prices mislead.
func (r *Retention) sweepRescueShips(days int) (int64, error) {
	n, err := r.sweepByStation(days, "stationName LIKE 'Rescue Ship%'")
	if err != nil {
		return 0, fmt.Errorf("failed to delete rescue-ship trade rows: %w", err)
	}
	return n, nil
}

// sweepCarriers removes trade rows for fleet carriers, which move freely
// and whose markets go stale faster than fixed stations'.
func (r *Retention) sweepCarriers(days int) (int64, error) {
	n, err := r.sweepByStation(days, fmt.Sprintf("stationType = '%s'", stores.FleetCarrierType))
	if err != nil {
		return 0, fmt.Errorf("failed to delete carrier trade rows: %w", err)
	}
	return n, nil
}

// sweepByStation deletes stale trade rows whose market matches a predicate
// over the stations store, attached for the duration of the sweep.
func (r *Retention) sweepByStation(days int, stationPredicate string) (int64, error) {
	if _, err := r.trade.Exec("ATTACH DATABASE ? AS st", r.stations.Path()); err != nil {
		return 0, fmt.Errorf("failed to attach stations database: %w", err)
	}
	defer r.trade.Exec("DETACH DATABASE st")

	query := fmt.Sprintf(`
		DELETE FROM commodities
		WHERE updatedAt < ?
			AND marketId IN (SELECT marketId FROM st.stations WHERE %s)`,
		stationPredicate)
	res, err := r.trade.Exec(query, horizon(days))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
