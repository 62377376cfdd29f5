package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wonny/riskdash/pkg/config"
	"github.com/wonny/riskdash/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Env: "development",
		Upstream: config.UpstreamConfig{
			Timeout:      5 * time.Second,
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
		},
	}
}

// recorder captures backoff delays without sleeping
type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestNew(t *testing.T) {
	client := New(testConfig(), logger.Nop())
	if client.httpClient == nil {
		t.Fatal("Expected http.Client to be initialized")
	}
	if client.retryConfig.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts=3, got %d", client.retryConfig.MaxAttempts)
	}
	if client.limiter != nil {
		t.Error("Expected no local limiter when FETCH_RATE_LIMIT is 0")
	}
}

func TestNewFillsDefaults(t *testing.T) {
	client := New(&config.Config{}, logger.Nop())
	if client.httpClient.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", client.httpClient.Timeout)
	}
	if client.retryConfig.InitialDelay != time.Second {
		t.Errorf("Expected default InitialDelay=1s, got %v", client.retryConfig.InitialDelay)
	}
}

func TestWithRetryAndDisable(t *testing.T) {
	client := New(testConfig(), logger.Nop()).WithRetry(5, 2*time.Second)
	if client.retryConfig.MaxAttempts != 5 || client.retryConfig.InitialDelay != 2*time.Second {
		t.Errorf("Unexpected retry config %+v", client.retryConfig)
	}

	client.DisableRetry()
	if client.retryConfig.Enabled {
		t.Error("Expected retry to be disabled")
	}
}

func TestBackoff(t *testing.T) {
	client := New(testConfig(), logger.Nop())

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for attempt, w := range want {
		if got := client.Backoff(attempt); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestGetBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET request, got %s", r.Method)
		}
		if r.URL.Query().Get("days") != "90" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New(testConfig(), logger.Nop())

	body, status, err := client.GetBody(context.Background(), server.URL+"?days=90")
	if err != nil {
		t.Fatalf("GET request failed: %v", err)
	}
	if status != http.StatusOK || string(body) != `{"status":"ok"}` {
		t.Errorf("Unexpected response %d %s", status, body)
	}

	_, status, err = client.GetBody(context.Background(), server.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest || status != http.StatusBadRequest {
		t.Errorf("Expected StatusError 400, got %v", err)
	}
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	rec := &recorder{}
	client := New(testConfig(), logger.Nop()).WithSleeper(rec.sleep)

	err := client.Retry(context.Background(), func(ctx context.Context, attempt int) error {
		_, _, err := client.GetBody(ctx, server.URL)
		return err
	})
	if err != nil {
		t.Fatalf("Request failed after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
	if len(rec.delays) != 2 || rec.delays[0] < time.Second || rec.delays[1] < 2*time.Second {
		t.Errorf("Unexpected delays %v", rec.delays)
	}
}

func TestRetryExhausted(t *testing.T) {
	rec := &recorder{}
	client := New(testConfig(), logger.Nop()).WithSleeper(rec.sleep)

	calls := 0
	err := client.Retry(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return &StatusError{StatusCode: http.StatusBadGateway}
	})

	var re *RetryError
	if !errors.As(err, &re) {
		t.Fatalf("Expected RetryError, got %v", err)
	}
	if re.Attempts != 3 || calls != 3 {
		t.Errorf("Expected 3 attempts, got %d (calls %d)", re.Attempts, calls)
	}
	if re.StatusCode() != http.StatusBadGateway {
		t.Errorf("Expected last status 502, got %d", re.StatusCode())
	}
	if len(rec.delays) != 2 {
		t.Errorf("Expected 2 waits, got %v", rec.delays)
	}
}

func TestRetryPermanentStopsImmediately(t *testing.T) {
	rec := &recorder{}
	client := New(testConfig(), logger.Nop()).WithSleeper(rec.sleep)
	terminal := errors.New("bad payload")

	calls := 0
	err := client.Retry(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return Permanent(terminal)
	})

	if !errors.Is(err, terminal) {
		t.Errorf("Expected terminal error, got %v", err)
	}
	var re *RetryError
	if errors.As(err, &re) {
		t.Error("Permanent errors must not be wrapped in RetryError")
	}
	if calls != 1 || len(rec.delays) != 0 {
		t.Errorf("Expected a single attempt without waits, got %d calls, %v", calls, rec.delays)
	}
}

func TestRetryDisabledRunsOnce(t *testing.T) {
	client := New(testConfig(), logger.Nop()).DisableRetry()

	calls := 0
	err := client.Retry(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("boom")
	})
	if err == nil || calls != 1 {
		t.Errorf("Expected one failed attempt, got %d (%v)", calls, err)
	}
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	client := New(testConfig(), logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := client.Retry(ctx, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("Expected cancellation after one attempt, got %d (%v)", calls, err)
	}
}
