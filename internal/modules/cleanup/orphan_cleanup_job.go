// Package cleanup provides cache maintenance jobs.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/valuescope/internal/clientdata"
)

// CacheRepository is the part of the cache repository the job needs
type CacheRepository interface {
	Count(ctx context.Context, table string) (int, error)
	DeleteOrphans(ctx context.Context, table, parent string) (int64, error)
}

// dependentTables hold per-stock data keyed by the base info id
var dependentTables = []string{
	clientdata.TableLeadingIndicators,
	clientdata.TableFinancialReports,
}

// OrphanCleanupJob removes cached indicators and reports of stocks that
// dropped out of the universe on its last sync
type OrphanCleanupJob struct {
	repo    CacheRepository
	timeout time.Duration
	log     zerolog.Logger
}

// NewOrphanCleanupJob creates a new orphan cleanup job
func NewOrphanCleanupJob(repo CacheRepository, log zerolog.Logger) *OrphanCleanupJob {
	return &OrphanCleanupJob{
		repo:    repo,
		timeout: 5 * time.Minute,
		log:     log.With().Str("job", "orphan_cleanup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *OrphanCleanupJob) Name() string {
	return "orphan_cleanup"
}

// Run executes the cleanup job. An empty universe means no sync has run
// yet, so nothing is deleted.
func (j *OrphanCleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	universe, err := j.repo.Count(ctx, clientdata.TableStockBaseInfo)
	if err != nil {
		return fmt.Errorf("failed to count stock base info: %w", err)
	}
	if universe == 0 {
		j.log.Info().Msg("Universe is empty, skipping orphan cleanup")
		return nil
	}

	var total int64
	for _, table := range dependentTables {
		deleted, err := j.repo.DeleteOrphans(ctx, table, clientdata.TableStockBaseInfo)
		if err != nil {
			return err
		}
		if deleted > 0 {
			j.log.Info().Str("table", table).Int64("deleted", deleted).Msg("Removed orphaned entries")
		}
		total += deleted
	}

	j.log.Info().Int64("deleted", total).Msg("Orphan cleanup job completed")
	return nil
}
