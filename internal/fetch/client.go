package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/normalize"
	"github.com/wonny/riskdash/internal/stats"
	"github.com/wonny/riskdash/internal/store"
	"github.com/wonny/riskdash/pkg/httputil"
	"github.com/wonny/riskdash/pkg/logger"
	"github.com/wonny/riskdash/pkg/metrics"
)

// Metric label values
const (
	resultSuccess = "success"
	resultFailure = "failure"

	outcomeSuccess = "success"
	outcomeInvalid = "invalid_range"
	outcomeFormat  = "format_error"
	outcomeFailed  = "transport_error"
	outcomeStale   = "stale"
)

// Client fetches the risk history window and commits it to the store
// ⭐ SSOT: history/summary 쓰기는 이 클라이언트를 통해서만
type Client struct {
	http        *httputil.Client
	store       *store.Store
	agg         *stats.Aggregator
	baseURL     string
	defaultDays int
	metrics     *metrics.Recorder
	logger      *logger.Logger
}

// Config holds the fetch settings taken from pkg/config
type Config struct {
	BaseURL     string
	DefaultDays int
}

// NewClient creates a history fetch client. rec may be nil.
func NewClient(http *httputil.Client, st *store.Store, agg *stats.Aggregator, cfg Config, log *logger.Logger, rec *metrics.Recorder) *Client {
	days := cfg.DefaultDays
	if days <= 0 {
		days = 180
	}
	return &Client{
		http:        http,
		store:       st,
		agg:         agg,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		defaultDays: days,
		metrics:     rec,
		logger:      log.WithComponent("fetch"),
	}
}

// DefaultDays returns the trailing window used for an empty range
func (c *Client) DefaultDays() int {
	return c.defaultDays
}

// HistoryURL builds the history endpoint URL for a canonical range
func (c *Client) HistoryURL(r contracts.Range) string {
	q := url.Values{}
	if r.IsExplicit() {
		q.Set("start_date", r.StartDate)
		q.Set("end_date", r.EndDate)
	} else {
		q.Set("days", strconv.Itoa(r.Days))
	}
	return c.baseURL + "/risk/history?" + q.Encode()
}

// Fetch loads the history for r and replaces the store's window.
// The error, if any, is also recorded in the store.
func (c *Client) Fetch(ctx context.Context, r contracts.Range) error {
	start := time.Now()

	canonical, err := r.Canonical(c.defaultDays)
	if err != nil {
		c.logger.WithError(err).Warn("Rejected history range")
		c.store.SetError(err)
		c.metrics.RecordFetch(outcomeInvalid, time.Since(start).Seconds())
		return err
	}

	requestID := uuid.NewString()
	endpoint := c.HistoryURL(canonical)
	log := c.logger.WithRequestID(requestID).WithField("range", canonical.String())

	tok := c.store.BeginFetch()
	log.Info("History fetch started")

	var result *normalize.Result
	err = c.http.Retry(ctx, func(ctx context.Context, attempt int) error {
		res, err := c.attempt(ctx, endpoint)
		if err != nil {
			c.metrics.RecordFetchAttempt(resultFailure)
			return err
		}
		c.metrics.RecordFetchAttempt(resultSuccess)
		result = res
		return nil
	})

	if err != nil {
		err = transportError(err)
		c.store.FailFetch(tok, err)
		c.metrics.RecordFetch(outcomeOf(err), time.Since(start).Seconds())
		log.WithError(err).Error("History fetch failed")
		return err
	}

	history := normalize.SanitizeAll(c.agg.Annotate(result.Observations))
	if !c.store.CommitHistory(tok, history, result.Summary) {
		c.metrics.RecordFetch(outcomeStale, time.Since(start).Seconds())
		return nil
	}

	// 스트림 스냅샷이 없으면 매 윈도우마다 history 기반 스냅샷을 다시 계산
	if snap := c.agg.DeriveSnapshot(history); snap != nil {
		c.store.ReplaceDerivedSnapshot(normalize.SanitizeSnapshot(snap))
	}

	c.metrics.RecordFetch(outcomeSuccess, time.Since(start).Seconds())
	log.WithFields(map[string]interface{}{
		"shape":        result.Shape,
		"observations": len(history),
		"valid":        result.ValidCount(),
		"duration":     time.Since(start),
	}).Info("History fetch completed")

	return nil
}

// attempt runs one GET and normalizes the body.
// A normalization failure is permanent; everything else is retried.
func (c *Client) attempt(ctx context.Context, endpoint string) (*normalize.Result, error) {
	body, _, err := c.http.GetBody(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	if msg, ok := normalize.UpstreamError(body); ok {
		return nil, fmt.Errorf("upstream error: %s", msg)
	}

	res, err := normalize.Normalize(body)
	if err != nil {
		return nil, httputil.Permanent(err)
	}
	return res, nil
}

// transportError converts retry exhaustion into contracts.TransportError.
// Permanent errors (format failures, cancellation) pass through.
func transportError(err error) error {
	var re *httputil.RetryError
	if errors.As(err, &re) {
		return &contracts.TransportError{
			Attempts:   re.Attempts,
			StatusCode: re.StatusCode(),
			Err:        re.Err,
		}
	}
	return err
}

func outcomeOf(err error) string {
	if errors.Is(err, contracts.ErrFormat) {
		return outcomeFormat
	}
	return outcomeFailed
}
