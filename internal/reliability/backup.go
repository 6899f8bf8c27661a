// Package reliability covers the maintenance-window work: online backups
// with verification, retention sweeps and compaction.
package reliability

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/database"
)

// BackupLogFile records every backup attempt, one line per attempt.
const BackupLogFile = "backup.log"

// BackupReportFile holds the latest verification report.
const BackupReportFile = "backup.json"

// minBackupSizes is the smallest plausible size per store. A verified copy
// below this is treated as corrupt regardless of what sqlite says.
var minBackupSizes = map[string]int64{
	database.StoreSystems:   4 * 1024,
	database.StoreLocations: 4 * 1024,
	database.StoreStations:  4 * 1024,
	database.StoreTrade:     4 * 1024,
}

// DatabaseBackup is the per-store section of a backup report.
type DatabaseBackup struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"sizeBytes"`
	Verified  bool   `json:"verified"`
	Error     string `json:"error,omitempty"`
}

// BackupReport is the backup.json shape.
type BackupReport struct {
	AttemptID   string           `json:"attemptId"`
	StartedAt   string           `json:"startedAt"`
	CompletedAt string           `json:"completedAt"`
	Success     bool             `json:"success"`
	Databases   []DatabaseBackup `json:"databases"`
}

// Backup copies every live database into the backup directory and verifies
// each copy. Callers hold the write lock for the duration.
type Backup struct {
	dir string
	dbs map[string]*database.DB
	log zerolog.Logger
}

// NewBackup creates a backup runner targeting dir.
func NewBackup(dir string, dbs map[string]*database.DB, log zerolog.Logger) *Backup {
	return &Backup{
		dir: dir,
		dbs: dbs,
		log: log.With().Str("component", "backup").Logger(),
	}
}

// HasLog reports whether any backup has ever been attempted. A missing log
// at startup triggers an immediate first backup.
func (b *Backup) HasLog() bool {
	_, err := os.Stat(filepath.Join(b.dir, BackupLogFile))
	return err == nil
}

// Run backs up every store, verifies the copies, appends to backup.log and
// writes backup.json. A disk-space or copy failure aborts the run; a
// verification failure is recorded but the other stores still complete.
func (b *Backup) Run() error {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	report := BackupReport{
		AttemptID: uuid.NewString(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Success:   true,
	}
	b.log.Info().Str("attemptId", report.AttemptID).Msg("Backup started")

	for name, db := range b.dbs {
		entry := b.backupOne(name, db)
		if !entry.Verified {
			report.Success = false
		}
		report.Databases = append(report.Databases, entry)
	}

	report.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	if err := b.appendLog(report); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(b.dir, BackupReportFile), report); err != nil {
		return err
	}

	if !report.Success {
		return fmt.Errorf("backup %s completed with verification failures", report.AttemptID)
	}
	b.log.Info().Str("attemptId", report.AttemptID).Msg("Backup completed and verified")
	return nil
}

func (b *Backup) backupOne(name string, db *database.DB) DatabaseBackup {
	entry := DatabaseBackup{
		Name: name,
		Path: filepath.Join(b.dir, name+".db"),
	}

	// Fold the WAL into the main file first so the copy carries every
	// committed write.
	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		b.log.Warn().Err(err).Str("database", name).Msg("WAL checkpoint before backup failed")
	}

	if err := removeBackupFiles(entry.Path); err != nil {
		entry.Error = err.Error()
		return entry
	}
	if err := db.VacuumInto(entry.Path); err != nil {
		entry.Error = err.Error()
		b.log.Error().Err(err).Str("database", name).Msg("Backup copy failed")
		return entry
	}

	if err := verifyBackup(entry.Path, name); err != nil {
		entry.Error = err.Error()
		b.log.Error().Err(err).Str("database", name).Msg("Backup verification failed")
		return entry
	}

	if info, err := os.Stat(entry.Path); err == nil {
		entry.SizeBytes = info.Size()
	}
	entry.Verified = true
	b.log.Info().
		Str("database", name).
		Int64("sizeBytes", entry.SizeBytes).
		Msg("Database backed up")
	return entry
}

// verifyBackup opens the copy read-only and checks that every required
// table exists and the file meets the per-store size floor.
func verifyBackup(path, store string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("backup file missing: %w", err)
	}
	if min := minBackupSizes[store]; info.Size() < min {
		return fmt.Errorf("backup of %s is %d bytes, below the %d byte floor", store, info.Size(), min)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return fmt.Errorf("failed to open backup of %s: %w", store, err)
	}
	defer conn.Close()

	for _, table := range database.RequiredTables[store] {
		var name string
		err := conn.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			return fmt.Errorf("backup of %s is missing table %s: %w", store, table, err)
		}
	}
	return nil
}

func (b *Backup) appendLog(report BackupReport) error {
	f, err := os.OpenFile(filepath.Join(b.dir, BackupLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open backup log: %w", err)
	}
	defer f.Close()

	status := "ok"
	if !report.Success {
		status = "failed"
	}
	line := fmt.Sprintf("%s %s %s %d databases\n",
		report.CompletedAt, report.AttemptID, status, len(report.Databases))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append backup log: %w", err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func removeBackupFiles(path string) error {
	targets := append([]string{path}, database.SideFiles(path)...)
	for _, target := range targets {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove previous backup %s: %w", target, err)
		}
	}
	return nil
}
