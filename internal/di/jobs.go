// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/config"
	"github.com/aristath/valuescope/internal/modules/cleanup"
	"github.com/aristath/valuescope/internal/modules/leading"
	"github.com/aristath/valuescope/internal/scheduler"
)

// Maintenance schedules (cron with seconds)
const (
	WALCheckpointSchedule  = "0 0 * * * *"  // hourly
	CheckDatabasesSchedule = "0 0 4 * * *"  // 04:00 daily
	OrphanCleanupSchedule  = "0 30 4 * * *" // 04:30 daily
)

// RegisterJobs creates the background jobs
func RegisterJobs(container *Container, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.LeadingService == nil {
		return nil, fmt.Errorf("leading indicator service not initialized")
	}

	return &JobInstances{
		// No deadline: a full sync walks every page of the universe
		IndicatorRefresh: leading.NewRefreshJob(container.LeadingService, 0, log),
		OrphanCleanup:    cleanup.NewOrphanCleanupJob(container.CacheRepo, log),
		CheckDatabases:   scheduler.NewCheckDatabasesJob(container.Databases(), log),
		WALCheckpoint:    scheduler.NewWALCheckpointJob(container.Databases(), log),
	}, nil
}

// ScheduleJobs adds the jobs to s. The indicator refresh is only scheduled
// when cfg.RefreshSchedule is set.
func ScheduleJobs(s *scheduler.Scheduler, jobs *JobInstances, cfg *config.Config) error {
	if err := s.AddJob(WALCheckpointSchedule, jobs.WALCheckpoint); err != nil {
		return err
	}
	if err := s.AddJob(CheckDatabasesSchedule, jobs.CheckDatabases); err != nil {
		return err
	}
	if err := s.AddJob(OrphanCleanupSchedule, jobs.OrphanCleanup); err != nil {
		return err
	}
	if cfg.RefreshSchedule != "" {
		if err := s.AddJob(cfg.RefreshSchedule, jobs.IndicatorRefresh); err != nil {
			return err
		}
	}
	return nil
}
