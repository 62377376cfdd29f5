package jobs

import (
	"context"
	"time"

	"github.com/wonny/riskdash/pkg/logger"
)

// Clock reports when the store last changed
type Clock interface {
	LastUpdated() time.Time
}

// StalenessJob logs when the displayed data has not changed for too long
type StalenessJob struct {
	clock  Clock
	maxAge time.Duration
	now    func() time.Time
	logger *logger.Logger
}

// NewStalenessJob creates a new staleness check
func NewStalenessJob(clock Clock, maxAge time.Duration, log *logger.Logger) *StalenessJob {
	return &StalenessJob{
		clock:  clock,
		maxAge: maxAge,
		now:    time.Now,
		logger: log,
	}
}

// Name returns the job name
func (j *StalenessJob) Name() string {
	return "staleness_check"
}

// Schedule returns the cron schedule (every minute)
func (j *StalenessJob) Schedule() string {
	return "0 * * * * *"
}

// Run checks the data age. It never fails; stale data stays on display.
func (j *StalenessJob) Run(ctx context.Context) error {
	last := j.clock.LastUpdated()
	if last.IsZero() {
		j.logger.Debug("No data loaded yet")
		return nil
	}

	if age := j.Age(); age > j.maxAge {
		j.logger.WithFields(map[string]interface{}{
			"last_updated": last,
			"age":          age.Round(time.Second),
		}).Warn("Risk data is stale")
	}
	return nil
}

// Age returns how long ago the data last changed, 0 when never
func (j *StalenessJob) Age() time.Duration {
	last := j.clock.LastUpdated()
	if last.IsZero() {
		return 0
	}
	return j.now().Sub(last)
}
