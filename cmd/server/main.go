// Command server runs the feed ingestion service: it subscribes to the
// upstream event stream, normalizes events into the four stores, and keeps
// the analytics cache and backups current.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/config"
	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/handlers"
	"github.com/aristath/beacon/internal/ingest"
	"github.com/aristath/beacon/internal/reliability"
	"github.com/aristath/beacon/internal/scheduler"
	"github.com/aristath/beacon/internal/sector"
	"github.com/aristath/beacon/internal/server"
	"github.com/aristath/beacon/internal/snapshots"
	"github.com/aristath/beacon/internal/stats"
	"github.com/aristath/beacon/internal/stores"
	"github.com/aristath/beacon/internal/writelock"
	"github.com/aristath/beacon/pkg/logger"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "beacon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: getenvBool("BEACON_PRETTY_LOGS"),
	})
	log.Info().Str("version", version).Str("dataDir", cfg.DataDir).Msg("Starting beacon")

	dbs, err := openDatabases(cfg, log)
	if err != nil {
		return err
	}
	defer closeDatabases(dbs, log)

	lock := &writelock.Lock{}
	stmts := database.NewStmtCache()
	defer stmts.Close()
	sectors := sector.New(cfg.SectorGridSize, cfg.SectorHashLength)

	systems := stores.NewSystemRepository(dbs[database.StoreSystems], stmts, sectors, log)
	locations := stores.NewLocationRepository(dbs[database.StoreLocations], stmts, log)
	stations := stores.NewStationRepository(dbs[database.StoreStations], stmts, log)
	trade := stores.NewTradeRepository(dbs[database.StoreTrade], stmts, log)
	registry := handlers.New(systems, locations, stations, trade, log)

	ingestor := ingest.New(cfg.FeedURL, registry, lock, log)

	snaps := snapshots.New(cfg.DataDir, dbs, log)
	generator := stats.New(snaps, cfg.CacheDir, cfg.SkipRegionalReports, log)
	backup := reliability.NewBackup(cfg.BackupDir, dbs, log)
	retention := reliability.NewRetention(
		dbs[database.StoreTrade], dbs[database.StoreStations],
		cfg.TradeRetentionDays, cfg.RescueShipRetentionDays, cfg.CarrierRetentionDays,
		log,
	)
	optimizer := reliability.NewOptimizer(dbs, log)

	srv := server.New(server.Config{
		Port:         cfg.Port,
		Version:      version,
		CacheControl: cfg.CacheControl,
		CacheDir:     cfg.CacheDir,
		Log:          log,
		Lock:         lock,
		Counters:     ingestor,
		Databases:    dbs,
	})
	checkIntegrity(dbs, srv, log)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := ingestor.Connect(ctx); err != nil {
		return err
	}

	sched, err := registerJobs(cfg, lock, retention, optimizer, backup, snaps, generator, dbs, log)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// A missing backup log means this host has never completed a backup;
	// run one before trusting the process to the ingest loop.
	if !backup.HasLog() && !cfg.SkipStartupMaintenance {
		if err := sched.RunNow(&scheduler.MaintenanceWindowJob{
			Lock: lock, Retention: retention, Optimizer: optimizer,
			Backup: backup, Snapshots: snaps, Log: log,
		}); err != nil {
			log.Error().Err(err).Msg("Initial backup failed")
		}
	}

	if err := ingestor.Run(ctx); err != nil {
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}

	log.Info().Msg("Shutdown complete")
	return nil
}

// openDatabases opens the four stores and applies schema migrations.
func openDatabases(cfg *config.Config, log zerolog.Logger) (map[string]*database.DB, error) {
	dbs := make(map[string]*database.DB, len(database.StoreNames))
	for _, name := range database.StoreNames {
		db, err := database.Open(database.Config{
			Path: filepath.Join(cfg.DataDir, name+".db"),
			Name: name,
		})
		if err != nil {
			closeDatabases(dbs, log)
			return nil, err
		}
		if err := database.Migrate(db, cfg.SkipExpensiveIndexes); err != nil {
			db.Close()
			closeDatabases(dbs, log)
			return nil, err
		}
		dbs[name] = db
		log.Info().Str("database", name).Str("path", db.Path()).Msg("Database ready")
	}
	return dbs, nil
}

func closeDatabases(dbs map[string]*database.DB, log zerolog.Logger) {
	for name, db := range dbs {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Str("database", name).Msg("Failed to close database")
		}
	}
}

// checkIntegrity verifies each store at startup. A corrupt store is marked
// degraded on /health but does not stop the process; the operator restores
// from backup.
func checkIntegrity(dbs map[string]*database.DB, srv *server.Server, log zerolog.Logger) {
	for name, db := range dbs {
		if err := db.IntegrityCheck(context.Background()); err != nil {
			log.Error().Err(err).Str("database", name).Msg("Integrity check failed")
			srv.MarkDegraded(name)
		}
	}
}

func registerJobs(
	cfg *config.Config,
	lock *writelock.Lock,
	retention *reliability.Retention,
	optimizer *reliability.Optimizer,
	backup *reliability.Backup,
	snaps *snapshots.Manager,
	generator *stats.Generator,
	dbs map[string]*database.DB,
	log zerolog.Logger,
) (*scheduler.Scheduler, error) {
	sched := scheduler.New(log)

	windowStart := fmt.Sprintf("0 %d * * %d", cfg.MaintenanceStartHour, cfg.MaintenanceDay)
	if err := sched.AddJob(windowStart, &scheduler.MaintenanceWindowJob{
		Lock: lock, Retention: retention, Optimizer: optimizer,
		Backup: backup, Snapshots: snaps, Log: log,
	}); err != nil {
		return nil, err
	}

	windowEnd := fmt.Sprintf("0 %d * * %d", cfg.MaintenanceEndHour, cfg.MaintenanceDay)
	if err := sched.AddJob(windowEnd, &scheduler.CommodityStatsJob{
		Snapshots: snaps, Stats: generator, Log: log,
	}); err != nil {
		return nil, err
	}

	if err := sched.AddJob("0 */6 * * *", &scheduler.CombinedStatsJob{
		Snapshots: snaps, Stats: generator, Log: log,
	}); err != nil {
		return nil, err
	}

	if err := sched.AddJob("0 3 * * 0", &scheduler.TradeVacuumJob{
		Lock: lock, Optimizer: optimizer,
		Trade: dbs[database.StoreTrade], Log: log,
	}); err != nil {
		return nil, err
	}

	return sched, nil
}

func getenvBool(key string) bool {
	v := os.Getenv(key)
	return v == "1" || v == "true"
}
