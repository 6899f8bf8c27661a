package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/stats"
)

// healthResponse is the /health body. The maintenance sub-object is
// present only while the write lock is held.
type healthResponse struct {
	Status      string             `json:"status"`
	Timestamp   string             `json:"timestamp"`
	Version     string             `json:"version"`
	Uptime      int64              `json:"uptime"`
	Degraded    []string           `json:"degraded,omitempty"`
	Maintenance *maintenanceStatus `json:"maintenance,omitempty"`
}

type maintenanceStatus struct {
	Running  bool  `json:"running"`
	Duration int64 `json:"duration"`
}

// handleHealth answers liveness probes. It never touches the databases so
// it stays responsive during vacuum and backup.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   s.version,
		Uptime:    int64(time.Since(s.started).Seconds()),
		Degraded:  s.degraded,
	}
	if len(s.degraded) > 0 {
		resp.Status = "degraded"
	}
	if s.lock.Held() {
		resp.Maintenance = &maintenanceStatus{
			Running:  true,
			Duration: int64(s.lock.Duration().Seconds()),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("Failed to write health response")
	}
}

// handleStatus renders the human-readable status page.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder

	fmt.Fprintf(&b, "beacon %s\n", s.version)
	fmt.Fprintf(&b, "uptime: %d seconds\n", int64(time.Since(s.started).Seconds()))
	if s.lock.Held() {
		fmt.Fprintf(&b, "maintenance: running for %d seconds\n", int64(s.lock.Duration().Seconds()))
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(&b, "memory: %.1f%% used (%d MB of %d MB)\n",
			vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024)
	}

	if s.counters != nil {
		fmt.Fprintf(&b, "events processed: %d\n", s.counters.EventCount())
		fmt.Fprintf(&b, "events dropped: %d\n", s.counters.DroppedCount())
		fmt.Fprintf(&b, "dedup set size: %d\n", s.counters.DedupSize())
	}

	b.WriteString("\ndatabases:\n")
	for _, name := range database.StoreNames {
		db, ok := s.dbs[name]
		if !ok {
			continue
		}
		st := db.GetStats()
		fmt.Fprintf(&b, "  %s: %d MB (wal %d MB)\n",
			name, st.SizeBytes/1024/1024, st.WALSizeBytes/1024/1024)
	}

	b.WriteString("\n")
	b.WriteString(s.renderTotals())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(b.String())); err != nil {
		s.log.Error().Err(err).Msg("Failed to write status response")
	}
}

// renderTotals formats the latest database-totals cache file, if one has
// been generated yet.
func (s *Server) renderTotals() string {
	data, err := os.ReadFile(filepath.Join(s.cacheDir, stats.DatabaseStatsFile))
	if err != nil {
		return "stats not generated yet\n"
	}
	var totals stats.DatabaseTotals
	if err := json.Unmarshal(data, &totals); err != nil {
		return "stats not generated yet\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "totals (as of %s):\n", totals.GeneratedAt)
	fmt.Fprintf(&b, "  systems: %d\n", totals.Systems)
	fmt.Fprintf(&b, "  locations: %d\n", totals.Locations)
	fmt.Fprintf(&b, "  stations: %d (+%d fleet carriers)\n", totals.Stations, totals.FleetCarriers)
	fmt.Fprintf(&b, "  trade orders: %d across %d markets\n", totals.TradeOrders, totals.UniqueMarkets)
	fmt.Fprintf(&b, "  commodities: %d\n", totals.UniqueCommodities)
	fmt.Fprintf(&b, "  updates in last 24h: %d\n", totals.UpdatesInLast24Hours)
	return b.String()
}
