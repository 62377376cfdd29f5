package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes dashboard metrics to Prometheus.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	fetchAttempts  *prometheus.CounterVec
	fetchOutcomes  *prometheus.CounterVec
	fetchDuration  prometheus.Histogram
	streamMessages *prometheus.CounterVec
	streamState    *prometheus.GaugeVec
	reconnects     prometheus.Counter
	systemicRisk   prometheus.Gauge
	regimeScore    prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// StreamStates lists the label values of the stream state gauge
var StreamStates = []string{"connecting", "open", "closed", "reconnecting"}

// New creates a recorder on its own registry (Go and process collectors included)
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetchAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskdash_fetch_attempts_total",
			Help: "History fetch attempts by result",
		}, []string{"result"}),
		fetchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskdash_fetch_outcomes_total",
			Help: "Completed history fetches by outcome",
		}, []string{"outcome"}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskdash_fetch_duration_seconds",
			Help:    "Wall time of a history fetch including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		streamMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskdash_stream_messages_total",
			Help: "Stream messages by disposition",
		}, []string{"disposition"}),
		streamState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskdash_stream_state",
			Help: "1 for the current stream connection state",
		}, []string{"state"}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "riskdash_stream_reconnects_total",
			Help: "Scheduled stream reconnects",
		}),
		systemicRisk: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskdash_systemic_risk",
			Help: "Latest systemic risk value in the store",
		}),
		regimeScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskdash_regime_score",
			Help: "Latest composite regime score",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskdash_http_requests_total",
			Help: "API requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskdash_http_request_duration_seconds",
			Help:    "API request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordFetchAttempt counts one attempt ("ok", "transport", "status", "upstream_error", "format")
func (r *Recorder) RecordFetchAttempt(result string) {
	if r == nil {
		return
	}
	r.fetchAttempts.WithLabelValues(result).Inc()
}

// RecordFetch records a completed fetch
func (r *Recorder) RecordFetch(outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.fetchOutcomes.WithLabelValues(outcome).Inc()
	r.fetchDuration.Observe(seconds)
}

// RecordStreamMessage counts a message ("accepted", "dropped", "error")
func (r *Recorder) RecordStreamMessage(disposition string) {
	if r == nil {
		return
	}
	r.streamMessages.WithLabelValues(disposition).Inc()
}

// SetStreamState flips the state gauge to state
func (r *Recorder) SetStreamState(state string) {
	if r == nil {
		return
	}
	for _, s := range StreamStates {
		v := 0.0
		if s == state {
			v = 1
		}
		r.streamState.WithLabelValues(s).Set(v)
	}
}

// RecordReconnect counts a scheduled reconnect
func (r *Recorder) RecordReconnect() {
	if r == nil {
		return
	}
	r.reconnects.Inc()
}

// SetSystemicRisk updates the latest systemic risk gauge
func (r *Recorder) SetSystemicRisk(v float64) {
	if r == nil {
		return
	}
	r.systemicRisk.Set(v)
}

// SetRegimeScore updates the regime score gauge
func (r *Recorder) SetRegimeScore(v float64) {
	if r == nil {
		return
	}
	r.regimeScore.Set(v)
}

// RecordHTTP records one API request
func (r *Recorder) RecordHTTP(route, method, status string, seconds float64) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(seconds)
}
