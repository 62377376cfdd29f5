package stats

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/regime"
	"github.com/wonny/riskdash/internal/thresholds"
)

// PeriodMetrics summarizes the displayed history window
type PeriodMetrics struct {
	Observations       int                      `json:"observations"`
	PeriodMean         float64                  `json:"period_mean"`
	PeriodStd          float64                  `json:"period_std"`
	AvgPCASignal       *float64                 `json:"avg_pca_signal,omitempty"`
	AvgCreditSignal    *float64                 `json:"avg_credit_signal,omitempty"`
	RegimeDistribution map[contracts.Regime]int `json:"regime_distribution"` // percent, rounded
	CurrentValue       *float64                 `json:"current_value,omitempty"`
	CurrentZScore      float64                  `json:"current_z_score"`
	AvgZScore          float64                  `json:"avg_z_score"`
	Percentile         float64                  `json:"percentile"`
	PeriodRegime       contracts.Regime         `json:"period_regime,omitempty"`
}

// Aggregator computes window statistics
type Aggregator struct {
	period     thresholds.PeriodConfig
	classifier *regime.Classifier
	log        zerolog.Logger
}

// NewAggregator 새 집계기 생성
func NewAggregator(cfg *thresholds.Config, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		period:     cfg.Period,
		classifier: regime.NewClassifier(cfg),
		log:        log.With().Str("component", "stats.aggregator").Logger(),
	}
}

// Compute derives PeriodMetrics from the window and the live snapshot (may be nil)
func (a *Aggregator) Compute(history []contracts.RiskObservation, snap *contracts.CurrentSnapshot) PeriodMetrics {
	m := PeriodMetrics{
		Observations: len(history),
		RegimeDistribution: map[contracts.Regime]int{
			contracts.RegimeHigh:   0,
			contracts.RegimeMedium: 0,
			contracts.RegimeLow:    0,
		},
	}

	values := scores(history)
	m.PeriodMean = Mean(values)
	m.PeriodStd = PopulationStd(values)

	pca := make([]*float64, len(history))
	credit := make([]*float64, len(history))
	zs := make([]*float64, len(history))
	counts := map[contracts.Regime]int{}
	for i, o := range history {
		pca[i] = o.PCASignalScore
		credit[i] = o.CreditSignalScore
		zs[i] = o.ZScore
		if level := o.MarketRegime.Level(); level != "" {
			counts[level]++
		}
	}

	if v := collect(pca); len(v) > 0 {
		avg := Mean(v)
		m.AvgPCASignal = &avg
	}
	if v := collect(credit); len(v) > 0 {
		avg := Mean(v)
		m.AvgCreditSignal = &avg
	}

	if n := len(history); n > 0 {
		for level, c := range counts {
			m.RegimeDistribution[level] = int(math.Round(float64(c) / float64(n) * 100))
		}
	}

	rowZ := collect(zs)
	m.AvgZScore = Mean(rowZ)
	m.Percentile = 0.5 + m.AvgZScore/6

	m.CurrentValue = currentValue(history, snap)

	switch {
	case snap != nil && snap.SystemicRisk != nil && len(values) > 0 && m.PeriodStd > 0:
		m.CurrentZScore = (*snap.SystemicRisk - m.PeriodMean) / m.PeriodStd
	case len(rowZ) > 0:
		m.CurrentZScore = m.AvgZScore
	}

	if m.CurrentValue != nil && len(values) > 0 {
		m.PeriodRegime = a.PeriodRegime(*m.CurrentValue, m.PeriodMean, m.PeriodStd)
	}

	a.log.Debug().
		Int("observations", m.Observations).
		Float64("period_mean", m.PeriodMean).
		Float64("period_std", m.PeriodStd).
		Str("period_regime", string(m.PeriodRegime)).
		Msg("period metrics computed")

	return m
}

// PeriodRegime places v against mean + k·std
func (a *Aggregator) PeriodRegime(v, mean, std float64) contracts.Regime {
	switch {
	case v >= mean+a.period.HighStd*std:
		return contracts.RegimeHigh
	case v >= mean+a.period.MediumStd*std:
		return contracts.RegimeMedium
	default:
		return contracts.RegimeLow
	}
}

// Synthesize builds summary statistics from observations.
// Returns nil for an empty window.
func Synthesize(history []contracts.RiskObservation) *contracts.SummaryStatistics {
	if len(history) == 0 {
		return nil
	}

	values := scores(history)
	lo, hi := MinMax(values)
	last := history[len(history)-1].SystemicRiskScore

	return &contracts.SummaryStatistics{
		CurrentRisk: &last,
		PeriodMean:  Mean(values),
		PeriodStd:   PopulationStd(values),
		PeriodMin:   lo,
		PeriodMax:   hi,
		DataPoints:  len(history),
		DateRange: contracts.DateRange{
			Start: history[0].Date,
			End:   history[len(history)-1].Date,
		},
	}
}

func scores(history []contracts.RiskObservation) []float64 {
	out := make([]float64, 0, len(history))
	for _, o := range history {
		if finite(o.SystemicRiskScore) {
			out = append(out, o.SystemicRiskScore)
		}
	}
	return out
}

func currentValue(history []contracts.RiskObservation, snap *contracts.CurrentSnapshot) *float64 {
	if snap != nil && snap.SystemicRisk != nil {
		v := *snap.SystemicRisk
		return &v
	}
	if len(history) > 0 {
		v := history[len(history)-1].SystemicRiskScore
		return &v
	}
	return nil
}
