// Package system reports on and resets the local data directory.
package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/valuescope/internal/database"
)

const bytesPerMB = 1024 * 1024

// CacheClearer empties every entity cache table.
type CacheClearer interface {
	ClearAll(ctx context.Context) (map[string]int64, error)
}

// SettingsClearer empties the settings store.
type SettingsClearer interface {
	Clear(ctx context.Context) (int64, error)
}

// DBInfo describes one database file.
type DBInfo struct {
	Name   string          `json:"name"`
	Path   string          `json:"path"`
	SizeMB float64         `json:"size_mb"`
	Stats  *database.Stats `json:"stats,omitempty"`
}

// Info is the data directory report.
type Info struct {
	DataDir           string   `json:"data_dir"`
	DataDirMB         float64  `json:"data_dir_mb"`
	Databases         []DBInfo `json:"databases"`
	DiskFreeMB        float64  `json:"disk_free_mb"`
	DiskTotalMB       float64  `json:"disk_total_mb"`
	MemoryUsedPercent float64  `json:"memory_used_percent"`
	CheckedAt         string   `json:"checked_at"`
}

// ClearResult reports how many rows a reset removed.
type ClearResult struct {
	Tables   map[string]int64 `json:"tables"`
	Settings int64            `json:"settings"`
}

// Service exposes the data directory read-only and resets its contents.
type Service struct {
	dataDir   string
	databases []*database.DB
	cache     CacheClearer
	settings  SettingsClearer
	usage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	memory    func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates the system service. databases are the open databases
// living under dataDir.
func NewService(dataDir string, databases []*database.DB, cache CacheClearer, settings SettingsClearer, log zerolog.Logger) *Service {
	return &Service{
		dataDir:   dataDir,
		databases: databases,
		cache:     cache,
		settings:  settings,
		usage:     disk.UsageWithContext,
		memory:    mem.VirtualMemoryWithContext,
		now:       time.Now,
		log:       log.With().Str("service", "system").Logger(),
	}
}

// DataDir returns the absolute data directory.
func (s *Service) DataDir() string {
	return s.dataDir
}

// Info gathers database sizes and free space of the data directory's volume.
// Host probes that fail are logged and reported as zero.
func (s *Service) Info(ctx context.Context) (*Info, error) {
	if _, err := os.Stat(s.dataDir); err != nil {
		return nil, fmt.Errorf("data directory unavailable: %w", err)
	}

	info := &Info{
		DataDir:   s.dataDir,
		DataDirMB: dirSizeMB(s.dataDir),
		Databases: make([]DBInfo, 0, len(s.databases)),
		CheckedAt: s.now().Format(time.RFC3339),
	}

	for _, db := range s.databases {
		entry := DBInfo{Name: db.Name(), Path: db.Path()}
		stats, err := db.GetStats()
		if err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
		} else {
			entry.Stats = stats
			entry.SizeMB = float64(stats.SizeBytes+stats.WALSizeBytes) / bytesPerMB
		}
		info.Databases = append(info.Databases, entry)
	}

	if usage, err := s.usage(ctx, s.dataDir); err != nil {
		s.log.Warn().Err(err).Msg("Failed to get disk usage")
	} else {
		info.DiskFreeMB = float64(usage.Free) / bytesPerMB
		info.DiskTotalMB = float64(usage.Total) / bytesPerMB
	}

	if memStat, err := s.memory(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		info.MemoryUsedPercent = memStat.UsedPercent
	}

	return info, nil
}

// ClearAll empties every cache table and the settings store, then compacts
// the databases.
func (s *Service) ClearAll(ctx context.Context) (*ClearResult, error) {
	tables, err := s.cache.ClearAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to clear cache: %w", err)
	}
	settings, err := s.settings.Clear(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to clear settings: %w", err)
	}

	for _, db := range s.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint after clear failed")
		}
		if err := db.Vacuum(); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Vacuum after clear failed")
		}
	}

	s.log.Info().
		Interface("tables", tables).
		Int64("settings", settings).
		Msg("Cleared all local data")

	return &ClearResult{Tables: tables, Settings: settings}, nil
}

func dirSizeMB(dirPath string) float64 {
	var total int64
	_ = filepath.Walk(dirPath, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return float64(total) / bytesPerMB
}
