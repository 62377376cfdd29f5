package views

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/quality"
	"github.com/wonny/riskdash/internal/regime"
	"github.com/wonny/riskdash/internal/stats"
	"github.com/wonny/riskdash/internal/store"
	"github.com/wonny/riskdash/internal/thresholds"
)

// ErrUnknownChart is returned for an unsupported chart kind
var ErrUnknownChart = errors.New("unknown chart kind")

// Views derives display structures from one store.State.
// Every method is a pure function of its input state.
type Views struct {
	classifier *regime.Classifier
	detector   *regime.Detector
	aggregator *stats.Aggregator
	scorer     *quality.Scorer
}

// New creates the view layer from thresholds
func New(cfg *thresholds.Config, log zerolog.Logger) *Views {
	return &Views{
		classifier: regime.NewClassifier(cfg),
		detector:   regime.NewDetector(cfg),
		aggregator: stats.NewAggregator(cfg, log),
		scorer:     quality.NewScorer(cfg, log),
	}
}

// Aggregator exposes the statistics aggregator shared with the fetch path
func (v *Views) Aggregator() *stats.Aggregator {
	return v.aggregator
}

// Latest returns the most recent observation, nil for an empty window
func (v *Views) Latest(st store.State) *contracts.RiskObservation {
	if len(st.History) == 0 {
		return nil
	}
	o := st.History[len(st.History)-1]
	return &o
}

// Window is the full display window with its summary
type Window struct {
	Observations []contracts.RiskObservation  `json:"observations"`
	Summary      *contracts.SummaryStatistics `json:"summary,omitempty"`
	IsLoading    bool                         `json:"is_loading"`
	Error        string                       `json:"error,omitempty"`
	LastUpdated  string                       `json:"last_updated,omitempty"`
}

// Window returns the display window. Stale data is kept alongside an error.
func (v *Views) Window(st store.State) Window {
	w := Window{
		Observations: st.History,
		Summary:      st.Summary,
		IsLoading:    st.IsLoading,
		Error:        ErrorText(st.Err),
	}
	if w.Observations == nil {
		w.Observations = []contracts.RiskObservation{}
	}
	if !st.LastUpdated.IsZero() {
		w.LastUpdated = st.LastUpdated.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return w
}

// Regime returns the current-regime descriptor
func (v *Views) Regime(st store.State) regime.Descriptor {
	return v.classifier.Describe(st.Snapshot, st.Summary)
}

// WarningView adds the divergence flag to the detector output
type WarningView struct {
	regime.Warning
	Diverges bool `json:"diverges"`
}

// Warning returns the warning descriptor for the current snapshot
func (v *Views) Warning(st store.State) WarningView {
	w := v.detector.Evaluate(st.Snapshot)
	return WarningView{Warning: w, Diverges: w.Diverges()}
}

// Stats returns the period metrics for the window
func (v *Views) Stats(st store.State) stats.PeriodMetrics {
	return v.aggregator.Compute(st.History, st.Snapshot)
}

// Quality scores the current snapshot
func (v *Views) Quality(st store.State) quality.Report {
	return v.scorer.Score(st.Snapshot)
}

// Chart kinds
const (
	ChartTimeseries   = "timeseries"
	ChartComponents   = "components"
	ChartSignals      = "signals"
	ChartDistribution = "distribution"
)

// ChartKinds lists the supported projections
var ChartKinds = []string{ChartTimeseries, ChartComponents, ChartSignals, ChartDistribution}

// Chart dispatches to the projection for kind
func (v *Views) Chart(kind string, st store.State) (interface{}, error) {
	switch kind {
	case ChartTimeseries:
		return v.Timeseries(st), nil
	case ChartComponents:
		return v.Components(st), nil
	case ChartSignals:
		return v.Signals(st), nil
	case ChartDistribution:
		return v.Distribution(st), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownChart, kind)
}

// ErrorText renders err for a display payload
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
