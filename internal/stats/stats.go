// Package stats generates the JSON analytics consumed by the read API.
// Every query runs against snapshot copies opened read-only; the live
// databases are never touched from here.
package stats

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/beacon/internal/snapshots"
)

// Cache file names under the cache directory.
const (
	DatabaseStatsFile = "database-stats.json"
	CommoditiesFile   = "commodities.json"
	TickerFile        = "commodity-ticker.json"
)

// Prices at or beyond this value are placeholder junk and excluded from
// every aggregate.
const maxValidPrice = 999999

// Generator runs the analytics queries and writes the cache files.
type Generator struct {
	snaps        *snapshots.Manager
	cacheDir     string
	skipRegional bool
	log          zerolog.Logger
}

// New creates a stats generator writing into cacheDir.
func New(snaps *snapshots.Manager, cacheDir string, skipRegional bool, log zerolog.Logger) *Generator {
	return &Generator{
		snaps:        snaps,
		cacheDir:     cacheDir,
		skipRegional: skipRegional,
		log:          log.With().Str("component", "stats").Logger(),
	}
}

// GenerateCombined produces the database-totals report and the ticker.
func (g *Generator) GenerateCombined() error {
	if err := g.GenerateDatabaseStats(); err != nil {
		return err
	}
	return g.GenerateTicker()
}

// openSnapshot opens a snapshot file read-only. The caller closes it.
func (g *Generator) openSnapshot(store string) (*sql.DB, error) {
	path, ok := g.snaps.Paths()[store]
	if !ok {
		return nil, fmt.Errorf("no snapshot configured for store %s", store)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("snapshot for %s missing: %w", store, err)
	}
	conn, err := sql.Open("sqlite", path+"?_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot for %s: %w", store, err)
	}
	// ATTACH is per-connection state; a single pooled connection keeps the
	// attached schemas visible to every query.
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// attachSnapshot attaches another store's snapshot to an open connection
// under the given schema name, for the few cross-store analytical joins.
func (g *Generator) attachSnapshot(conn *sql.DB, store, as string) error {
	path, ok := g.snaps.Paths()[store]
	if !ok {
		return fmt.Errorf("no snapshot configured for store %s", store)
	}
	if _, err := conn.Exec(fmt.Sprintf("ATTACH DATABASE ? AS %s", as), path); err != nil {
		return fmt.Errorf("failed to attach %s snapshot: %w", store, err)
	}
	return nil
}

// writeJSON writes v to a cache file atomically via a same-directory rename.
func (g *Generator) writeJSON(relPath string, v interface{}) error {
	path := filepath.Join(g.cacheDir, relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", relPath, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", relPath, err)
	}
	return nil
}

// CacheFresh reports whether a cache file exists and is newer than maxAge.
func (g *Generator) CacheFresh(relPath string, maxAge time.Duration) bool {
	info, err := os.Stat(filepath.Join(g.cacheDir, relPath))
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < maxAge
}

// dataTimestamp returns the newest updatedAt in the table, or "" when it
// is empty. Report timestamps derive from the snapshot data rather than
// the wall clock, so regenerating from an unchanged snapshot reproduces
// the same bytes.
func dataTimestamp(conn *sql.DB, table string) (string, error) {
	var ts sql.NullString
	if err := conn.QueryRow("SELECT MAX(updatedAt) FROM " + table).Scan(&ts); err != nil {
		return "", fmt.Errorf("failed to read newest %s timestamp: %w", table, err)
	}
	return ts.String, nil
}

// dayBefore returns the RFC3339 timestamp 24 hours before ts, for the
// lexicographic updatedAt window comparisons.
func dayBefore(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Add(-24 * time.Hour).UTC().Format(time.RFC3339)
}
