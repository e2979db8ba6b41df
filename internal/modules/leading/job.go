package leading

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// RefreshJob runs the leading indicator sync on a schedule. It resumes an
// interrupted sync from its checkpoint.
type RefreshJob struct {
	service *Service
	timeout time.Duration
	log     zerolog.Logger
}

// NewRefreshJob creates the scheduled refresh job. A non-positive timeout
// lets a run take as long as it needs.
func NewRefreshJob(service *Service, timeout time.Duration, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		service: service,
		timeout: timeout,
		log:     log.With().Str("job", "leading_indicator_refresh").Logger(),
	}
}

// Name returns the job name for scheduling and logging.
func (j *RefreshJob) Name() string {
	return "leading_indicator_refresh"
}

// Run executes one sync. A sync already in progress is not an error.
func (j *RefreshJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	result, err := j.service.Resume(ctx)
	if errors.Is(err, ErrSyncInProgress) {
		j.log.Info().Msg("Sync already running, skipping")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Info().
		Int("fetched", result.Fetched).
		Int("failed", len(result.Failed)).
		Bool("complete", result.Complete).
		Msg("Leading indicator refresh finished")
	return nil
}
