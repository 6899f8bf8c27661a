// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Default values for the upstream feed and the maintenance window.
const (
	DefaultFeedURL = "tcp://eddn.edcd.io:9500"
	DefaultPort    = 3707

	// Maintenance window: day-of-week (0 = Sunday), start/end hour in UTC.
	DefaultMaintenanceDay       = 4
	DefaultMaintenanceStartHour = 7
	DefaultMaintenanceEndHour   = 9

	// Retention horizons in days.
	DefaultTradeRetentionDays      = 90
	DefaultRescueShipRetentionDays = 7
	DefaultCarrierRetentionDays    = 90

	// Sector hasher tuning. Changing either requires a full rebuild.
	DefaultSectorGridSize   = 100.0
	DefaultSectorHashLength = 8

	DefaultCacheControl = "public, max-age=900, stale-while-revalidate=3600, stale-if-error=3600"
)

// Config holds application configuration
type Config struct {
	FeedURL string
	Port    int

	DataDir      string
	CacheDir     string
	BackupDir    string
	DownloadsDir string

	MaintenanceDay       int
	MaintenanceStartHour int
	MaintenanceEndHour   int

	TradeRetentionDays      int
	RescueShipRetentionDays int
	CarrierRetentionDays    int

	SectorGridSize   float64
	SectorHashLength int

	SkipStartupMaintenance bool
	SkipRegionalReports    bool
	SkipExpensiveIndexes   bool

	CacheControl string
	LogLevel     string
}

// Load reads configuration from the optional config file and environment variables.
// File lookup order: /etc/beacon.config, then a beacon.config sibling of the
// executable, then a local .env. Environment variables win over file values
// because godotenv never overrides existing variables.
func Load() (*Config, error) {
	loadConfigFiles()

	dataDir := getEnv("BEACON_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	cfg := &Config{
		FeedURL: getEnv("BEACON_FEED_URL", DefaultFeedURL),
		Port:    getEnvAsInt("BEACON_PORT", DefaultPort),

		DataDir:      absDataDir,
		CacheDir:     getEnv("BEACON_CACHE_DIR", filepath.Join(absDataDir, "cache")),
		BackupDir:    getEnv("BEACON_BACKUP_DIR", filepath.Join(filepath.Dir(absDataDir), "backup")),
		DownloadsDir: getEnv("BEACON_DOWNLOADS_DIR", filepath.Join(filepath.Dir(absDataDir), "downloads")),

		MaintenanceDay:       getEnvAsInt("BEACON_MAINTENANCE_DAY", DefaultMaintenanceDay),
		MaintenanceStartHour: getEnvAsInt("BEACON_MAINTENANCE_START_HOUR", DefaultMaintenanceStartHour),
		MaintenanceEndHour:   getEnvAsInt("BEACON_MAINTENANCE_END_HOUR", DefaultMaintenanceEndHour),

		TradeRetentionDays:      getEnvAsInt("BEACON_TRADE_RETENTION_DAYS", DefaultTradeRetentionDays),
		RescueShipRetentionDays: getEnvAsInt("BEACON_RESCUE_SHIP_RETENTION_DAYS", DefaultRescueShipRetentionDays),
		CarrierRetentionDays:    getEnvAsInt("BEACON_CARRIER_RETENTION_DAYS", DefaultCarrierRetentionDays),

		SectorGridSize:   getEnvAsFloat("BEACON_SECTOR_GRID_SIZE", DefaultSectorGridSize),
		SectorHashLength: getEnvAsInt("BEACON_SECTOR_HASH_LENGTH", DefaultSectorHashLength),

		SkipStartupMaintenance: getEnvAsBool("BEACON_SKIP_STARTUP_MAINTENANCE", false),
		SkipRegionalReports:    getEnvAsBool("BEACON_SKIP_REGIONAL_REPORTS", false),
		SkipExpensiveIndexes:   getEnvAsBool("BEACON_SKIP_EXPENSIVE_INDEXES", false),

		CacheControl: getEnv("BEACON_CACHE_CONTROL", DefaultCacheControl),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnsureDirs creates every storage root the service writes to.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.DataDir,
		c.CacheDir,
		filepath.Join(c.CacheDir, "commodities"),
		c.BackupDir,
		c.DownloadsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Validate checks configuration bounds
func (c *Config) Validate() error {
	if c.MaintenanceDay < 0 || c.MaintenanceDay > 6 {
		return fmt.Errorf("maintenance day must be 0-6, got %d", c.MaintenanceDay)
	}
	if c.MaintenanceStartHour < 0 || c.MaintenanceStartHour > 23 {
		return fmt.Errorf("maintenance start hour must be 0-23, got %d", c.MaintenanceStartHour)
	}
	if c.MaintenanceEndHour < 0 || c.MaintenanceEndHour > 23 {
		return fmt.Errorf("maintenance end hour must be 0-23, got %d", c.MaintenanceEndHour)
	}
	if c.SectorGridSize <= 0 {
		return fmt.Errorf("sector grid size must be positive, got %f", c.SectorGridSize)
	}
	if c.SectorHashLength < 4 || c.SectorHashLength > 32 {
		return fmt.Errorf("sector hash length must be 4-32 bytes, got %d", c.SectorHashLength)
	}
	return nil
}

func loadConfigFiles() {
	if _, err := os.Stat("/etc/beacon.config"); err == nil {
		_ = godotenv.Load("/etc/beacon.config")
	}
	if exe, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(exe), "beacon.config")
		if _, err := os.Stat(sibling); err == nil {
			_ = godotenv.Load(sibling)
		}
	}
	_ = godotenv.Load()
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
