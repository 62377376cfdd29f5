package coordinator

import (
	"context"
	"sync"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/pkg/logger"
)

// Fetcher loads one history range
type Fetcher interface {
	Fetch(ctx context.Context, r contracts.Range) error
}

// ErrorSink receives range validation errors
type ErrorSink interface {
	SetError(err error)
}

// Coordinator turns range changes into fetches.
// At most one fetch runs at a time; requests made while one is in
// flight are rejected, not queued.
type Coordinator struct {
	fetcher     Fetcher
	sink        ErrorSink
	defaultDays int
	logger      *logger.Logger

	mu       sync.Mutex
	last     *contracts.Range
	inFlight bool
	wg       sync.WaitGroup
}

// New creates a coordinator. sink may be nil.
func New(fetcher Fetcher, sink ErrorSink, defaultDays int, log *logger.Logger) *Coordinator {
	return &Coordinator{
		fetcher:     fetcher,
		sink:        sink,
		defaultDays: defaultDays,
		logger:      log.WithComponent("coordinator"),
	}
}

// Request fetches r unless it equals the last triggered range.
// It blocks until the fetch completes and reports whether one ran.
func (c *Coordinator) Request(ctx context.Context, r contracts.Range) (bool, error) {
	canonical, ok, err := c.begin(r, false)
	if err != nil || !ok {
		return false, err
	}
	return true, c.run(ctx, canonical)
}

// Trigger is Request without waiting: the fetch runs in the background
// and its result is delivered on the returned channel. A nil channel
// means no fetch was started.
func (c *Coordinator) Trigger(ctx context.Context, r contracts.Range) (<-chan error, error) {
	canonical, ok, err := c.begin(r, false)
	if err != nil || !ok {
		return nil, err
	}
	return c.spawn(ctx, canonical), nil
}

// Retry re-runs the last range (or the default window if none was
// requested yet), even if it has not changed. Blocks until done.
func (c *Coordinator) Retry(ctx context.Context) error {
	canonical, _, err := c.begin(c.retryRange(), true)
	if err != nil {
		return err
	}
	return c.run(ctx, canonical)
}

// TriggerRetry is Retry without waiting
func (c *Coordinator) TriggerRetry(ctx context.Context) (<-chan error, error) {
	canonical, _, err := c.begin(c.retryRange(), true)
	if err != nil {
		return nil, err
	}
	return c.spawn(ctx, canonical), nil
}

// Last returns the last triggered range
func (c *Coordinator) Last() (contracts.Range, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return contracts.Range{}, false
	}
	return *c.last, true
}

// InFlight reports whether a fetch is running
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Wait blocks until background fetches finish
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) retryRange() contracts.Range {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return contracts.Range{}
	}
	return *c.last
}

// begin canonicalizes r and claims the in-flight slot.
// ok is false when r matches the last range and force is not set.
func (c *Coordinator) begin(r contracts.Range, force bool) (contracts.Range, bool, error) {
	canonical, err := r.Canonical(c.defaultDays)
	if err != nil {
		if c.sink != nil {
			c.sink.SetError(err)
		}
		return contracts.Range{}, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.last != nil && *c.last == canonical {
		c.logger.WithField("range", canonical.String()).Debug("Range unchanged, no fetch")
		return canonical, false, nil
	}
	if c.inFlight {
		c.logger.WithField("range", canonical.String()).Warn("Fetch in flight, request rejected")
		return contracts.Range{}, false, contracts.ErrFetchInFlight
	}

	c.inFlight = true
	c.last = &canonical
	return canonical, true, nil
}

func (c *Coordinator) spawn(ctx context.Context, r contracts.Range) <-chan error {
	done := make(chan error, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		done <- c.run(ctx, r)
		close(done)
	}()
	return done
}

func (c *Coordinator) run(ctx context.Context, r contracts.Range) error {
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	c.logger.WithField("range", r.String()).Info("Fetching range")
	return c.fetcher.Fetch(ctx, r)
}
