// Package snapshots manages the point-in-time database copies that back the
// analytics queries, so long scans never touch the live files.
package snapshots

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/beacon/internal/database"
)

// FreshnessWindow is how recent a snapshot's mtime must be for AreFresh.
const FreshnessWindow = 2 * time.Hour

// Manager creates and inspects snapshots of the live databases in a
// dedicated directory under the data dir. The directory is disposable.
type Manager struct {
	dir string
	dbs map[string]*database.DB
	log zerolog.Logger
}

// New creates a snapshot manager over the given live databases, keyed by
// store name.
func New(dataDir string, dbs map[string]*database.DB, log zerolog.Logger) *Manager {
	return &Manager{
		dir: filepath.Join(dataDir, ".snapshots"),
		dbs: dbs,
		log: log.With().Str("component", "snapshots").Logger(),
	}
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Paths returns the snapshot file path for every store, whether or not the
// snapshot currently exists.
func (m *Manager) Paths() map[string]string {
	paths := make(map[string]string, len(m.dbs))
	for name := range m.dbs {
		paths[name] = filepath.Join(m.dir, name+".db")
	}
	return paths
}

// Refresh replaces every snapshot with a fresh consistent copy. Old files
// are deleted first to bound disk usage. The copies run concurrently; the
// source databases only hold brief read locks.
func (m *Manager) Refresh() error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	start := time.Now()
	var g errgroup.Group
	for name, db := range m.dbs {
		dest := filepath.Join(m.dir, name+".db")
		db := db
		g.Go(func() error {
			if err := removeWithSideFiles(dest); err != nil {
				return err
			}
			if err := db.VacuumInto(dest); err != nil {
				return fmt.Errorf("failed to snapshot %s: %w", db.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.log.Info().
		Int("databases", len(m.dbs)).
		Dur("took", time.Since(start)).
		Msg("Snapshots refreshed")
	return nil
}

// AreFresh reports whether every expected snapshot exists with an mtime
// inside the freshness window.
func (m *Manager) AreFresh() bool {
	cutoff := time.Now().Add(-FreshnessWindow)
	for _, path := range m.Paths() {
		info, err := os.Stat(path)
		if err != nil || info.ModTime().Before(cutoff) {
			return false
		}
	}
	return true
}

func removeWithSideFiles(path string) error {
	targets := append([]string{path}, database.SideFiles(path)...)
	for _, target := range targets {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale snapshot file %s: %w", target, err)
		}
	}
	return nil
}
