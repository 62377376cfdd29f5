package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/riskdash/pkg/config"
	"github.com/wonny/riskdash/pkg/logger"
	"github.com/wonny/riskdash/pkg/redis"
)

// maxBodyBytes caps how much of a response body is read
const maxBodyBytes = 32 << 20

// Client is an HTTP client wrapper with retry logic and logging
// ⭐ SSOT: 모든 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient   *http.Client
	logger       *logger.Logger
	retryConfig  RetryConfig
	limiter      *rate.Limiter
	rateLimiter  *redis.RateLimiter
	rateLimitCfg *redis.RateLimitConfig
	sleep        SleepFunc
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Enabled      bool
}

// SleepFunc waits d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// New creates a new HTTP client from config
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(cfg *config.Config, log *logger.Logger) *Client {
	up := cfg.Upstream
	c := &Client{
		httpClient: &http.Client{
			Timeout: up.Timeout,
		},
		logger: log,
		retryConfig: RetryConfig{
			MaxAttempts:  up.MaxAttempts,
			InitialDelay: up.InitialDelay,
			MaxDelay:     up.MaxDelay,
			Enabled:      true,
		},
		sleep: sleepContext,
	}

	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = 30 * time.Second
	}
	if c.retryConfig.MaxAttempts < 1 {
		c.retryConfig.MaxAttempts = 3
	}
	if c.retryConfig.InitialDelay <= 0 {
		c.retryConfig.InitialDelay = time.Second
	}
	if c.retryConfig.MaxDelay <= 0 {
		c.retryConfig.MaxDelay = 10 * time.Second
	}

	if up.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(up.RateLimit), up.RateLimit)
	}

	return c
}

// WithRetry configures retry behavior
func (c *Client) WithRetry(maxAttempts int, initialDelay time.Duration) *Client {
	c.retryConfig.MaxAttempts = maxAttempts
	c.retryConfig.InitialDelay = initialDelay
	c.retryConfig.Enabled = true
	return c
}

// DisableRetry disables automatic retry
func (c *Client) DisableRetry() *Client {
	c.retryConfig.Enabled = false
	return c
}

// WithRateLimiter sets the shared (Redis) rate limiter for this client
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *Client {
	c.rateLimiter = limiter
	c.rateLimitCfg = &cfg
	return c
}

// WithSleeper replaces the backoff wait (tests record delays through it)
func (c *Client) WithSleeper(fn SleepFunc) *Client {
	c.sleep = fn
	return c
}

// RetryConfig returns the effective retry settings
func (c *Client) RetryConfig() RetryConfig {
	return c.retryConfig
}

// Get performs a single GET request
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

// GetBody performs a single GET and reads the body.
// A non-2xx status is returned as *StatusError.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, int, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, resp.StatusCode, &StatusError{StatusCode: resp.StatusCode}
	}

	return body, resp.StatusCode, nil
}

// do executes the request with rate limiting and logging
func (c *Client) do(req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	url := req.URL.String()
	method := req.Method

	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}
	if c.rateLimiter != nil && c.rateLimitCfg != nil {
		if err := c.rateLimiter.Wait(req.Context(), *c.rateLimitCfg); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    url,
	}).Debug("HTTP request started")

	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"method":   method,
			"url":      url,
			"duration": duration,
			"error":    err.Error(),
		}).Warn("HTTP request failed")
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": resp.StatusCode,
		"duration":    duration,
	}).Debug("HTTP request completed")

	return resp, nil
}

// Retry runs op until it succeeds, returns a Permanent error, or the
// attempt budget is spent. The wait before attempt k+1 is Backoff(k).
// Exhaustion is reported as *RetryError.
func (c *Client) Retry(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	maxAttempts := c.retryConfig.MaxAttempts
	if !c.retryConfig.Enabled || maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		attempts++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if attempt == maxAttempts-1 || ctx.Err() != nil {
			break
		}

		delay := c.Backoff(attempt)
		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay,
			"error":   err.Error(),
		}).Warn("Retrying HTTP request")

		if err := c.sleep(ctx, delay); err != nil {
			break
		}
	}

	return &RetryError{Attempts: attempts, Err: lastErr}
}

// Backoff returns InitialDelay·2^attempt, capped at MaxDelay
func (c *Client) Backoff(attempt int) time.Duration {
	delay := c.retryConfig.InitialDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > c.retryConfig.MaxDelay {
			return c.retryConfig.MaxDelay
		}
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
