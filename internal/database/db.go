// Package database provides database connection and initialization functionality.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DB wraps the database connection with production-grade configuration
type DB struct {
	conn *sql.DB
	path string
	name string // Database name for logging
}

// Config holds database configuration
type Config struct {
	Path string
	Name string // Friendly name for logging (e.g., "systems", "trade")

	// CacheKB is the page cache size in kibibytes (applied as a negative
	// cache_size pragma). Defaults to 64 MB when zero.
	CacheKB int

	// MmapBytes is the memory-mapped I/O region size. Defaults to 256 MB
	// when zero.
	MmapBytes int64
}

// Open creates a new database connection with production-grade configuration
func Open(cfg Config) (*DB, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	cfg.Path = absPath

	if cfg.CacheKB <= 0 {
		cfg.CacheKB = 64000
	}
	if cfg.MmapBytes <= 0 {
		cfg.MmapBytes = 256 * 1024 * 1024
	}

	conn, err := sql.Open("sqlite", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Name, err)
	}

	// Single writer per file. The ingest loop is the only write path while
	// the process runs; one connection keeps statement state simple and
	// avoids writer contention inside the driver.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(24 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Name, err)
	}

	return &DB{
		conn: conn,
		path: cfg.Path,
		name: cfg.Name,
	}, nil
}

// buildConnectionString creates the SQLite connection string with tuned PRAGMAs
func buildConnectionString(cfg Config) string {
	connStr := cfg.Path + "?_pragma=journal_mode(WAL)"
	connStr += "&_pragma=synchronous(NORMAL)"
	connStr += "&_pragma=busy_timeout(5000)"
	connStr += fmt.Sprintf("&_pragma=cache_size(-%d)", cfg.CacheKB) // negative = KB
	connStr += "&_pragma=temp_store(MEMORY)"
	connStr += fmt.Sprintf("&_pragma=mmap_size(%d)", cfg.MmapBytes)
	connStr += "&_pragma=wal_autocheckpoint(1000)"
	return connStr
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Name returns the database name for logging
func (db *DB) Name() string {
	return db.name
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

// IntegrityCheck runs PRAGMA integrity_check and fails unless the result is "ok"
func (db *DB) IntegrityCheck(ctx context.Context) error {
	var result string
	err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed for %s: %w", db.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", db.name, result)
	}
	return nil
}

// WALCheckpoint forces a WAL checkpoint to prevent bloat
func (db *DB) WALCheckpoint(mode string) error {
	// Modes: PASSIVE, FULL, RESTART, TRUNCATE
	if mode == "" {
		mode = "TRUNCATE"
	}
	if _, err := db.conn.Exec(fmt.Sprintf("PRAGMA wal_checkpoint(%s)", mode)); err != nil {
		return fmt.Errorf("WAL checkpoint failed for %s: %w", db.name, err)
	}
	return nil
}

// Vacuum rebuilds the database file to reclaim deleted pages. Temp storage is
// forced to disk for the duration so large files don't exhaust resident
// memory, then restored to the in-memory default.
func (db *DB) Vacuum() error {
	if _, err := db.conn.Exec("PRAGMA temp_store = FILE"); err != nil {
		return fmt.Errorf("failed to set on-disk temp storage for %s: %w", db.name, err)
	}
	defer db.conn.Exec("PRAGMA temp_store = MEMORY")

	if _, err := db.conn.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed for %s: %w", db.name, err)
	}
	return nil
}

// VacuumInto writes a defragmented, consistent copy of the database to dest
// using the engine's VACUUM INTO primitive. The source only holds a brief
// read lock, so this is safe to run against a live database.
func (db *DB) VacuumInto(dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("vacuum into destination already exists: %s", dest)
	}
	if _, err := db.conn.Exec("VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("vacuum into %s failed for %s: %w", dest, db.name, err)
	}
	return nil
}

// Analyze refreshes query-planner statistics
func (db *DB) Analyze() error {
	if _, err := db.conn.Exec("ANALYZE"); err != nil {
		return fmt.Errorf("analyze failed for %s: %w", db.name, err)
	}
	return nil
}

// Stats returns database file statistics
type Stats struct {
	SizeBytes    int64
	WALSizeBytes int64
}

// GetStats reads file and WAL sizes from disk
func (db *DB) GetStats() Stats {
	var stats Stats
	if fileInfo, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = fileInfo.Size()
	}
	if fileInfo, err := os.Stat(db.path + "-wal"); err == nil {
		stats.WALSizeBytes = fileInfo.Size()
	}
	return stats
}

// SideFiles returns the journal side-file paths for a database file path.
func SideFiles(path string) []string {
	return []string{path + "-wal", path + "-shm"}
}

// isDuplicateColumn reports whether an error is SQLite's additive-migration
// "already applied" signal.
func isDuplicateColumn(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}
