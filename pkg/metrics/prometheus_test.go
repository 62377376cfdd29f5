package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()

	r.RecordFetchAttempt("transport")
	r.RecordFetchAttempt("transport")
	r.RecordFetchAttempt("ok")
	r.RecordFetch("success", 3.1)
	r.RecordStreamMessage("accepted")
	r.SetStreamState("open")
	r.SetSystemicRisk(0.42)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.fetchAttempts.WithLabelValues("transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchOutcomes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.streamState.WithLabelValues("open")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.streamState.WithLabelValues("reconnecting")))
	assert.Equal(t, 0.42, testutil.ToFloat64(r.systemicRisk))

	r.SetStreamState("reconnecting")
	assert.Equal(t, 0.0, testutil.ToFloat64(r.streamState.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.streamState.WithLabelValues("reconnecting")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordFetchAttempt("ok")
		r.RecordFetch("success", 1)
		r.RecordStreamMessage("dropped")
		r.SetStreamState("open")
		r.RecordReconnect()
		r.SetSystemicRisk(1)
		r.SetRegimeScore(1)
		r.RecordHTTP("/health", "GET", "200", 0.01)
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.RecordReconnect()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "riskdash_stream_reconnects_total 1")
}
