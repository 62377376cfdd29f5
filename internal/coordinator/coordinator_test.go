package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/pkg/logger"
)

// fakeFetcher records ranges; when gate is set each fetch blocks on it
type fakeFetcher struct {
	mu      sync.Mutex
	ranges  []contracts.Range
	gate    chan struct{}
	started chan struct{}
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, r contracts.Range) error {
	f.mu.Lock()
	f.ranges = append(f.ranges, r)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.err
}

func (f *fakeFetcher) calls() []contracts.Range {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]contracts.Range, len(f.ranges))
	copy(out, f.ranges)
	return out
}

type sinkRecorder struct {
	errs []error
}

func (s *sinkRecorder) SetError(err error) {
	s.errs = append(s.errs, err)
}

func TestRequest_DistinctRangesEachFetchOnce(t *testing.T) {
	f := &fakeFetcher{}
	c := New(f, nil, 180, logger.Nop())
	ctx := context.Background()

	ranges := []contracts.Range{
		contracts.Days(30),
		contracts.Days(90),
		contracts.Between("2024-01-01", "2024-03-01"),
	}
	for _, r := range ranges {
		triggered, err := c.Request(ctx, r)
		require.NoError(t, err)
		assert.True(t, triggered)
	}

	assert.Equal(t, ranges, f.calls())
}

func TestRequest_RepeatedRangeDoesNotRefetch(t *testing.T) {
	f := &fakeFetcher{}
	c := New(f, nil, 180, logger.Nop())
	ctx := context.Background()

	triggered, err := c.Request(ctx, contracts.Days(30))
	require.NoError(t, err)
	assert.True(t, triggered)

	triggered, err = c.Request(ctx, contracts.Days(30))
	require.NoError(t, err)
	assert.False(t, triggered)

	assert.Len(t, f.calls(), 1)
}

func TestRequest_EmptyRangeIsDefaultWindow(t *testing.T) {
	f := &fakeFetcher{}
	c := New(f, nil, 180, logger.Nop())
	ctx := context.Background()

	_, err := c.Request(ctx, contracts.Range{})
	require.NoError(t, err)
	triggered, err := c.Request(ctx, contracts.Days(180))
	require.NoError(t, err)

	assert.False(t, triggered, "empty range and the default window are the same range")
	assert.Equal(t, []contracts.Range{contracts.Days(180)}, f.calls())
}

func TestRequest_InvalidRange(t *testing.T) {
	f := &fakeFetcher{}
	sink := &sinkRecorder{}
	c := New(f, sink, 180, logger.Nop())

	triggered, err := c.Request(context.Background(), contracts.Between("2024-05-01", "2024-01-01"))
	assert.False(t, triggered)
	assert.ErrorIs(t, err, contracts.ErrInvalidRange)
	require.Len(t, sink.errs, 1)
	assert.ErrorIs(t, sink.errs[0], contracts.ErrInvalidRange)
	assert.Empty(t, f.calls())

	_, ok := c.Last()
	assert.False(t, ok)
}

func TestTrigger_RejectsWhileInFlight(t *testing.T) {
	f := &fakeFetcher{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := New(f, nil, 180, logger.Nop())
	ctx := context.Background()

	done, err := c.Trigger(ctx, contracts.Days(30))
	require.NoError(t, err)
	require.NotNil(t, done)
	<-f.started
	assert.True(t, c.InFlight())

	// a different range while in flight is neither queued nor coalesced
	_, err = c.Request(ctx, contracts.Days(90))
	assert.ErrorIs(t, err, contracts.ErrFetchInFlight)

	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, contracts.Days(30), last, "rejected request leaves the last range unchanged")

	_, err = c.TriggerRetry(ctx)
	assert.ErrorIs(t, err, contracts.ErrFetchInFlight)

	close(f.gate)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not complete")
	}
	c.Wait()

	assert.False(t, c.InFlight())
	assert.Equal(t, []contracts.Range{contracts.Days(30)}, f.calls())
}

func TestRetry_RerunsLastRange(t *testing.T) {
	f := &fakeFetcher{err: errors.New("upstream down")}
	c := New(f, nil, 180, logger.Nop())
	ctx := context.Background()

	triggered, err := c.Request(ctx, contracts.Days(60))
	assert.True(t, triggered)
	assert.Error(t, err)

	// same range again is not a change, only retry re-fetches
	triggered, err = c.Request(ctx, contracts.Days(60))
	assert.False(t, triggered)
	assert.NoError(t, err)

	f.err = nil
	require.NoError(t, c.Retry(ctx))
	assert.Equal(t, []contracts.Range{contracts.Days(60), contracts.Days(60)}, f.calls())
}

func TestRetry_WithoutHistoryUsesDefault(t *testing.T) {
	f := &fakeFetcher{}
	c := New(f, nil, 45, logger.Nop())

	require.NoError(t, c.Retry(context.Background()))
	assert.Equal(t, []contracts.Range{contracts.Days(45)}, f.calls())
}
