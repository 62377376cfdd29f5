package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/pkg/logger"
)

type stubRefresher struct {
	calls int
	err   error
}

func (s *stubRefresher) Retry(ctx context.Context) error {
	s.calls++
	return s.err
}

func TestRefreshJob(t *testing.T) {
	r := &stubRefresher{}
	job := NewRefreshJob(r, "0 */15 * * * *", logger.Nop())

	assert.Equal(t, "history_refresh", job.Name())
	assert.Equal(t, "0 */15 * * * *", job.Schedule())
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, r.calls)

	r.err = contracts.ErrFetchInFlight
	assert.NoError(t, job.Run(context.Background()), "in-flight fetch is skipped")

	r.err = &contracts.TransportError{Attempts: 3, Err: errors.New("down")}
	assert.ErrorIs(t, job.Run(context.Background()), contracts.ErrTransport)
}

type fixedClock time.Time

func (c fixedClock) LastUpdated() time.Time { return time.Time(c) }

func TestStalenessJob(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	job := NewStalenessJob(fixedClock(now.Add(-10*time.Minute)), 5*time.Minute, logger.Nop())
	job.now = func() time.Time { return now }
	assert.Equal(t, 10*time.Minute, job.Age())
	assert.NoError(t, job.Run(context.Background()))

	never := NewStalenessJob(fixedClock(time.Time{}), time.Minute, logger.Nop())
	assert.Equal(t, time.Duration(0), never.Age())
	assert.NoError(t, never.Run(context.Background()))
}
