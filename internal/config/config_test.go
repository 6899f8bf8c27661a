package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BEACON_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultFeedURL, cfg.FeedURL)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultMaintenanceDay, cfg.MaintenanceDay)
	assert.Equal(t, DefaultTradeRetentionDays, cfg.TradeRetentionDays)
	assert.Equal(t, DefaultSectorGridSize, cfg.SectorGridSize)
	assert.Equal(t, filepath.Join(cfg.DataDir, "cache"), cfg.CacheDir)
	assert.False(t, cfg.SkipStartupMaintenance)
	assert.False(t, cfg.SkipRegionalReports)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BEACON_DATA_DIR", t.TempDir())
	t.Setenv("BEACON_FEED_URL", "tcp://localhost:9500")
	t.Setenv("BEACON_PORT", "8080")
	t.Setenv("BEACON_TRADE_RETENTION_DAYS", "30")
	t.Setenv("BEACON_SKIP_REGIONAL_REPORTS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:9500", cfg.FeedURL)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30, cfg.TradeRetentionDays)
	assert.True(t, cfg.SkipRegionalReports)
}

func TestLoad_InvalidMaintenanceDay(t *testing.T) {
	t.Setenv("BEACON_DATA_DIR", t.TempDir())
	t.Setenv("BEACON_MAINTENANCE_DAY", "9")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maintenance day")
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "negative start hour",
			mutate:  func(c *Config) { c.MaintenanceStartHour = -1 },
			wantErr: "start hour",
		},
		{
			name:    "end hour too large",
			mutate:  func(c *Config) { c.MaintenanceEndHour = 24 },
			wantErr: "end hour",
		},
		{
			name:    "zero grid size",
			mutate:  func(c *Config) { c.SectorGridSize = 0 },
			wantErr: "grid size",
		},
		{
			name:    "hash length too short",
			mutate:  func(c *Config) { c.SectorHashLength = 2 },
			wantErr: "hash length",
		},
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				MaintenanceDay:       DefaultMaintenanceDay,
				MaintenanceStartHour: DefaultMaintenanceStartHour,
				MaintenanceEndHour:   DefaultMaintenanceEndHour,
				SectorGridSize:       DefaultSectorGridSize,
				SectorHashLength:     DefaultSectorHashLength,
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	base := t.TempDir()
	cfg := &Config{
		DataDir:      filepath.Join(base, "data"),
		CacheDir:     filepath.Join(base, "data", "cache"),
		BackupDir:    filepath.Join(base, "backup"),
		DownloadsDir: filepath.Join(base, "downloads"),
	}

	require.NoError(t, cfg.EnsureDirs())
	for _, dir := range []string{cfg.DataDir, cfg.CacheDir, cfg.BackupDir, cfg.DownloadsDir} {
		assert.DirExists(t, dir)
	}
}
