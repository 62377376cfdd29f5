package views

import (
	"sort"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/regime"
	"github.com/wonny/riskdash/internal/store"
)

// Trace is one plotted line. Missing values are plotted as 0.
type Trace struct {
	Name   string    `json:"name"`
	Color  string    `json:"color"`
	X      []string  `json:"x"`
	Y      []float64 `json:"y"`
	Points int       `json:"points"` // values actually present
}

// Period is a shaded date span
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ChartMeta is shared by every projection
type ChartMeta struct {
	DateRange  contracts.DateRange `json:"date_range"`
	DataPoints int                 `json:"data_points"`
}

// TimeseriesChart is the systemic risk line with reference lines
type TimeseriesChart struct {
	Systemic       Trace             `json:"systemic"`
	Thresholds     regime.Thresholds `json:"thresholds"`
	WarningPeriods []Period          `json:"warning_periods"`
	Regimes        []string          `json:"regimes"` // per point
	Meta           ChartMeta         `json:"metadata"`
}

// Timeseries projects the window onto the main risk chart
func (v *Views) Timeseries(st store.State) TimeseriesChart {
	h := st.History
	c := TimeseriesChart{
		Systemic:       trace("Systemic Risk", "red", h, func(o contracts.RiskObservation) *float64 { return &o.SystemicRiskScore }),
		Thresholds:     v.classifier.DisplayThresholds(st.Summary),
		WarningPeriods: warningPeriods(h),
		Regimes:        make([]string, len(h)),
		Meta:           meta(h),
	}
	for i, o := range h {
		c.Regimes[i] = string(o.MarketRegime.Level())
	}
	return c
}

// ComponentsChart breaks the risk score into its components
type ComponentsChart struct {
	Series        map[string]Trace   `json:"series"`
	ZScores       map[string]float64 `json:"z_scores,omitempty"`
	Contributions map[string]float64 `json:"contributions,omitempty"`
	RegimeScore   *float64           `json:"regime_score,omitempty"`
	Meta          ChartMeta          `json:"metadata"`
}

// Components projects per-row component values and the snapshot breakdown
func (v *Views) Components(st store.State) ComponentsChart {
	h := st.History
	c := ComponentsChart{
		Series: make(map[string]Trace),
		Meta:   meta(h),
	}

	names := map[string]struct{}{}
	for _, o := range h {
		for k := range o.Components {
			names[k] = struct{}{}
		}
	}
	for name := range names {
		c.Series[name] = trace(name, "", h, func(o contracts.RiskObservation) *float64 {
			if val, ok := o.Components[name]; ok {
				return &val
			}
			return nil
		})
	}

	if snap := st.Snapshot; snap != nil && snap.RegimeDetails != nil {
		c.ZScores = snap.RegimeDetails.ComponentZScores
		c.Contributions = snap.RegimeDetails.ComponentContributions
		score := snap.RegimeDetails.RegimeScore
		c.RegimeScore = &score
	}
	return c
}

// SignalsChart is the per-signal panel
type SignalsChart struct {
	Signals          map[string]Trace `json:"signals"`
	AvailableSignals []string         `json:"available_signals"`
	Meta             ChartMeta        `json:"metadata"`
}

type signalDef struct {
	name  string
	label string
	color string
	get   func(contracts.RiskObservation) *float64
}

var signalDefs = []signalDef{
	{contracts.SignalPCA, "PCA Signal", "red", func(o contracts.RiskObservation) *float64 { return o.PCASignalScore }},
	{contracts.SignalCredit, "Credit Signal", "brown", func(o contracts.RiskObservation) *float64 { return o.CreditSignalScore }},
	{contracts.SignalQuantile, "Quantile Signal", "purple", func(o contracts.RiskObservation) *float64 { return o.QuantileSignal }},
	{contracts.SignalDCC, "DCC Correlation", "darkorange", func(o contracts.RiskObservation) *float64 { return o.DCCCorrelation }},
	{contracts.SignalHAR, "HAR Excess Vol", "green", func(o contracts.RiskObservation) *float64 { return o.HARExcessVol }},
	{contracts.SignalComposite, "Composite Risk Score", "blue", func(o contracts.RiskObservation) *float64 { return o.CompositeRiskScore }},
}

// Signals projects each signal present somewhere in the window
func (v *Views) Signals(st store.State) SignalsChart {
	h := st.History
	c := SignalsChart{
		Signals:          make(map[string]Trace),
		AvailableSignals: []string{},
		Meta:             meta(h),
	}
	for _, def := range signalDefs {
		t := trace(def.label, def.color, h, def.get)
		if t.Points == 0 {
			continue
		}
		c.Signals[def.name] = t
		c.AvailableSignals = append(c.AvailableSignals, def.name)
	}
	sort.Strings(c.AvailableSignals)
	return c
}

// DistributionChart is the regime mix of the window
type DistributionChart struct {
	Percentages map[contracts.Regime]int `json:"percentages"`
	Counts      map[contracts.Regime]int `json:"counts"`
	Current     contracts.Regime         `json:"current,omitempty"`
	Meta        ChartMeta                `json:"metadata"`
}

// Distribution projects the regime distribution
func (v *Views) Distribution(st store.State) DistributionChart {
	m := v.aggregator.Compute(st.History, st.Snapshot)
	c := DistributionChart{
		Percentages: m.RegimeDistribution,
		Counts: map[contracts.Regime]int{
			contracts.RegimeHigh:   0,
			contracts.RegimeMedium: 0,
			contracts.RegimeLow:    0,
		},
		Current: v.Regime(st).Level,
		Meta:    meta(st.History),
	}
	for _, o := range st.History {
		if lvl := o.MarketRegime.Level(); lvl != "" {
			c.Counts[lvl]++
		}
	}
	return c
}

func trace(name, color string, h []contracts.RiskObservation, get func(contracts.RiskObservation) *float64) Trace {
	t := Trace{
		Name:  name,
		Color: color,
		X:     make([]string, len(h)),
		Y:     make([]float64, len(h)),
	}
	for i, o := range h {
		t.X[i] = o.Date
		if p := get(o); p != nil {
			t.Y[i] = *p
			t.Points++
		}
	}
	return t
}

// warningPeriods returns the spans of consecutive is_warning rows
func warningPeriods(h []contracts.RiskObservation) []Period {
	periods := []Period{}
	start := -1
	for i, o := range h {
		switch {
		case o.IsWarning && start < 0:
			start = i
		case !o.IsWarning && start >= 0:
			periods = append(periods, Period{Start: h[start].Date, End: h[i-1].Date})
			start = -1
		}
	}
	if start >= 0 {
		periods = append(periods, Period{Start: h[start].Date, End: h[len(h)-1].Date})
	}
	return periods
}

func meta(h []contracts.RiskObservation) ChartMeta {
	m := ChartMeta{DataPoints: len(h)}
	if len(h) > 0 {
		m.DateRange = contracts.DateRange{Start: h[0].Date, End: h[len(h)-1].Date}
	}
	return m
}
