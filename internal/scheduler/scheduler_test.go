package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/riskdash/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	runs     int32
	failN    int32 // fail this many runs first
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&j.runs, 1)
	if n <= atomic.LoadInt32(&j.failN) {
		return errors.New("not yet")
	}
	return nil
}

func TestAddJob(t *testing.T) {
	s := New(logger.Nop())

	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "0 */15 * * * *"}))
	assert.Error(t, s.AddJob(&countingJob{name: "a", schedule: "0 */15 * * * *"}), "duplicate name")
	assert.Error(t, s.AddJob(&countingJob{name: "b", schedule: "not a schedule"}))

	assert.Equal(t, []string{"a"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@every 1h"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
	assert.Empty(t, s.cron.Entries())
}

func TestRunJob_RecordsHistory(t *testing.T) {
	s := New(logger.Nop())
	job := &countingJob{name: "refresh", schedule: "@every 1h"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("refresh"))
	s.Wait()

	history, err := s.GetJobHistory("refresh")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, 1, history[0].Attempts)

	stats := s.GetJobStats()["refresh"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.NotNil(t, stats.LastSuccess)
	assert.Nil(t, stats.LastFailure)

	assert.Error(t, s.RunJob("missing"))
}

func TestRunJob_Retries(t *testing.T) {
	s := New(logger.Nop()).WithRetry(2, time.Millisecond)
	job := &countingJob{name: "flaky", schedule: "@every 1h", failN: 2}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("flaky"))
	s.Wait()

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success)
	assert.Equal(t, 3, history[0].Attempts)
}

func TestRunJob_NoRetryByDefault(t *testing.T) {
	s := New(logger.Nop())
	job := &countingJob{name: "broken", schedule: "@every 1h", failN: 100}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("broken"))
	s.Wait()

	history, _ := s.GetJobHistory("broken")
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
	assert.Equal(t, "not yet", history[0].Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
}

func TestScheduledRun(t *testing.T) {
	s := New(logger.Nop())
	job := &countingJob{name: "tick", schedule: "@every 1s"}
	require.NoError(t, s.AddJob(job))

	s.Start()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&job.runs) >= 1
	}, 3*time.Second, 20*time.Millisecond)
	s.Stop()
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+20; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.Latest(5), 5)
	assert.Equal(t, 0.5, h.SuccessRate())
	assert.Empty(t, (&JobHistory{}).Latest(3))
}
