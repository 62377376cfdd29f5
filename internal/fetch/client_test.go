package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/stats"
	"github.com/wonny/riskdash/internal/store"
	"github.com/wonny/riskdash/internal/thresholds"
	"github.com/wonny/riskdash/pkg/config"
	"github.com/wonny/riskdash/pkg/httputil"
	"github.com/wonny/riskdash/pkg/logger"
	"github.com/wonny/riskdash/pkg/metrics"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return nil
}

type fixture struct {
	client  *Client
	store   *store.Store
	sleeper *sleepRecorder
	metrics *metrics.Recorder
}

func newFixture(t *testing.T, baseURL string) *fixture {
	t.Helper()

	cfg := &config.Config{
		Env: "development",
		Upstream: config.UpstreamConfig{
			BaseURL:      baseURL,
			Timeout:      5 * time.Second,
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
		},
	}
	log := logger.Nop()
	sleeper := &sleepRecorder{}
	httpClient := httputil.New(cfg, log).WithSleeper(sleeper.sleep)

	st := store.New(log)
	agg := stats.NewAggregator(thresholds.Default(), log.Zerolog())
	rec := metrics.New()

	return &fixture{
		client:  NewClient(httpClient, st, agg, Config{BaseURL: baseURL, DefaultDays: 180}, log, rec),
		store:   st,
		sleeper: sleeper,
		metrics: rec,
	}
}

func legacyBody(n int) string {
	var b strings.Builder
	b.WriteString("[")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		level := "low"
		if i%3 == 0 {
			level = "high"
		}
		fmt.Fprintf(&b, `{"timestamp":%q,"systemic_risk":%d,"risk_level":%q}`,
			start.AddDate(0, 0, i).Format("2006-01-02"), i%10, level)
	}
	b.WriteString("]")
	return b.String()
}

func TestHistoryURL(t *testing.T) {
	f := newFixture(t, "http://upstream/api/v2/")

	assert.Equal(t, "http://upstream/api/v2/risk/history?days=90", f.client.HistoryURL(contracts.Days(90)))
	assert.Equal(t,
		"http://upstream/api/v2/risk/history?end_date=2024-03-31&start_date=2024-01-01",
		f.client.HistoryURL(contracts.Between("2024-01-01", "2024-03-31")))
}

func TestFetch_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/risk/history", r.URL.Path)
		assert.Equal(t, "180", r.URL.Query().Get("days"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(legacyBody(5)))
	}))
	defer server.Close()

	f := newFixture(t, server.URL)
	err := f.client.Fetch(context.Background(), contracts.Range{})
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	require.Len(t, f.sleeper.delays, 2)
	assert.GreaterOrEqual(t, f.sleeper.delays[0], time.Second)
	assert.GreaterOrEqual(t, f.sleeper.delays[1], 2*time.Second)

	st := f.store.Snapshot()
	assert.Len(t, st.History, 5)
	assert.NoError(t, st.Err)
	assert.False(t, st.IsLoading)

	// one series per result label: failure and success
	n, err := testutil.GatherAndCount(f.metrics.Registry(), "riskdash_fetch_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFetch_ExhaustsAttemptsAndKeepsHistory(t *testing.T) {
	var calls int32
	fail := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if atomic.LoadInt32(&fail) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(legacyBody(4)))
	}))
	defer server.Close()

	f := newFixture(t, server.URL)
	require.NoError(t, f.client.Fetch(context.Background(), contracts.Days(30)))
	before := f.store.History()

	atomic.StoreInt32(&fail, 1)
	atomic.StoreInt32(&calls, 0)

	err := f.client.Fetch(context.Background(), contracts.Days(30))
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrTransport)

	var te *contracts.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	st := f.store.Snapshot()
	assert.Equal(t, before, st.History)
	assert.Equal(t, err, st.Err)
	assert.False(t, st.IsLoading)
}

func TestFetch_UpstreamErrorFieldIsRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte(`{"error": "model warming up"}`))
			return
		}
		_, _ = w.Write([]byte(legacyBody(2)))
	}))
	defer server.Close()

	f := newFixture(t, server.URL)
	require.NoError(t, f.client.Fetch(context.Background(), contracts.Days(7)))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Len(t, f.store.History(), 2)
}

func TestFetch_FormatErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`"just a string"`))
	}))
	defer server.Close()

	f := newFixture(t, server.URL)
	err := f.client.Fetch(context.Background(), contracts.Days(7))

	assert.ErrorIs(t, err, contracts.ErrFormat)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, f.sleeper.delays)
	assert.ErrorIs(t, f.store.Err(), contracts.ErrFormat)
	assert.False(t, f.store.IsLoading())
}

func TestFetch_InvalidRangeMakesNoRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	f := newFixture(t, server.URL)

	tests := []contracts.Range{
		{Days: -5},
		{Days: 30, StartDate: "2024-01-01", EndDate: "2024-02-01"},
		{StartDate: "2024-02-01", EndDate: "2024-01-01"},
		{StartDate: "2024-01-01"},
		{StartDate: "01/01/2024", EndDate: "2024-02-01"},
	}

	for _, r := range tests {
		err := f.client.Fetch(context.Background(), r)
		assert.ErrorIs(t, err, contracts.ErrInvalidRange, "range %+v", r)
		assert.ErrorIs(t, f.store.Err(), contracts.ErrInvalidRange)
		assert.False(t, f.store.IsLoading())
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestFetch_EndToEndLegacyWindow(t *testing.T) {
	body := legacyBody(90)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "90", r.URL.Query().Get("days"))
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	f := newFixture(t, server.URL)
	require.NoError(t, f.client.Fetch(context.Background(), contracts.Days(90)))

	st := f.store.Snapshot()
	require.Len(t, st.History, 90)
	require.NotNil(t, st.Summary)

	sum := 0.0
	for i := 0; i < 90; i++ {
		sum += float64(i % 10)
	}
	assert.InDelta(t, sum/90, st.Summary.PeriodMean, 1e-9)
	assert.Equal(t, 90, st.Summary.DataPoints)
	assert.NoError(t, st.Err)
	assert.False(t, st.IsLoading)

	// rows carry the display annotations
	assert.NotNil(t, st.History[0].ZScore)
	assert.NotEmpty(t, st.History[0].RiskInterpretation)

	// no stream yet: the window provides the current snapshot
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, stats.SourceHistory, st.Snapshot.Source)
	assert.Equal(t, st.History[89].Date, st.Snapshot.Timestamp)
}

func TestFetch_EnhancedSummaryKept(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": [
				{"date": "2024-01-02", "systemic_risk_score": 0.4, "market_regime": "YELLOW"},
				{"date": "2024-01-01", "systemic_risk_score": 0.2, "market_regime": "GREEN"}
			],
			"summary": {"period_mean": 0.77, "data_points": 2}
		}`))
	}))
	defer server.Close()

	f := newFixture(t, server.URL)
	require.NoError(t, f.client.Fetch(context.Background(), contracts.Days(2)))

	st := f.store.Snapshot()
	require.NotNil(t, st.Summary)
	assert.Equal(t, 0.77, st.Summary.PeriodMean)
	assert.Equal(t, "2024-01-01", st.History[0].Date)
}

func TestFetch_StreamSnapshotNotOverwritten(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(legacyBody(3)))
	}))
	defer server.Close()

	f := newFixture(t, server.URL)
	live := &contracts.CurrentSnapshot{Timestamp: "2024-06-01T00:00:00", Source: "stream"}
	f.store.ReplaceSnapshot(live)

	require.NoError(t, f.client.Fetch(context.Background(), contracts.Days(3)))
	assert.Same(t, live, f.store.Current())
}

func TestFetch_DerivedSnapshotFollowsWindow(t *testing.T) {
	var body atomic.Value
	body.Store(`[{"timestamp":"2024-01-01","systemic_risk":1,"risk_level":"low"},` +
		`{"timestamp":"2024-01-02","systemic_risk":3,"risk_level":"high"}]`)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body.Load().(string)))
	}))
	defer server.Close()

	f := newFixture(t, server.URL)

	require.NoError(t, f.client.Fetch(context.Background(), contracts.Days(90)))
	first := f.store.Current()
	require.NotNil(t, first)
	assert.Equal(t, "2024-01-02", first.Timestamp)
	assert.InDelta(t, 2.0, *first.SystemicMean, 1e-9)

	body.Store(`[{"timestamp":"2024-03-01","systemic_risk":10,"risk_level":"low"},` +
		`{"timestamp":"2024-03-02","systemic_risk":20,"risk_level":"high"}]`)
	require.NoError(t, f.client.Fetch(context.Background(), contracts.Days(30)))

	second := f.store.Current()
	require.NotNil(t, second)
	assert.Equal(t, stats.SourceHistory, second.Source)
	assert.Equal(t, "2024-03-02", second.Timestamp)
	assert.InDelta(t, 20.0, *second.SystemicRisk, 1e-9)
	assert.InDelta(t, 15.0, *second.SystemicMean, 1e-9)
	assert.InDelta(t, 5.0, *second.SystemicStd, 1e-9)
}

func TestFetch_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newFixture(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.client.Fetch(ctx, contracts.Days(3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, contracts.ErrTransport))
	assert.False(t, f.store.IsLoading())
}
