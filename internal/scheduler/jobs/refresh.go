package jobs

import (
	"context"
	"errors"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/pkg/logger"
)

// Refresher re-runs the current range
type Refresher interface {
	Retry(ctx context.Context) error
}

// RefreshJob periodically re-fetches the displayed history window
type RefreshJob struct {
	refresher Refresher
	schedule  string
	logger    *logger.Logger
}

// NewRefreshJob creates a new refresh job
func NewRefreshJob(refresher Refresher, schedule string, log *logger.Logger) *RefreshJob {
	return &RefreshJob{
		refresher: refresher,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "history_refresh"
}

// Schedule returns the cron schedule
func (j *RefreshJob) Schedule() string {
	return j.schedule
}

// Run re-triggers the last range. A fetch already in flight is not an error.
func (j *RefreshJob) Run(ctx context.Context) error {
	err := j.refresher.Retry(ctx)
	if errors.Is(err, contracts.ErrFetchInFlight) {
		j.logger.Debug("Refresh skipped, fetch in flight")
		return nil
	}
	return err
}
