package stats

import (
	"math"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/regime"
)

// SourceHistory marks snapshots derived from the batch window
const SourceHistory = "history"

// DeriveSnapshot builds a period-metrics snapshot from the latest
// observation, standardizing each component against the window.
// Returns nil for an empty window.
func (a *Aggregator) DeriveSnapshot(history []contracts.RiskObservation) *contracts.CurrentSnapshot {
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]

	values := scores(history)
	mean, std := Mean(values), PopulationStd(values)

	pca := make([]*float64, len(history))
	credit := make([]*float64, len(history))
	for i, o := range history {
		pca[i] = o.PCASignalScore
		credit[i] = o.CreditSignalScore
	}

	z := regime.ComponentZ{
		Systemic: standardize(last.SystemicRiskScore, mean, std),
	}
	if last.PCASignalScore != nil {
		xs := collect(pca)
		z.PCA = standardize(*last.PCASignalScore, Mean(xs), PopulationStd(xs))
	}
	if last.CreditSignalScore != nil {
		xs := collect(credit)
		z.Credit = standardize(*last.CreditSignalScore, Mean(xs), PopulationStd(xs))
	}
	if last.DCCCorrelation != nil {
		v := a.classifier.DCCZ(*last.DCCCorrelation)
		z.DCC = &v
	}

	score := a.classifier.Score(z)
	systemic := last.SystemicRiskScore

	snap := &contracts.CurrentSnapshot{
		Timestamp:    last.Date,
		SystemicRisk: &systemic,
		SystemicMean: &mean,
		SystemicStd:  &std,
		RiskLevel:    a.classifier.Band(score),
		RegimeDetails: &contracts.RegimeDetails{
			RegimeScore:      score,
			ComponentZScores: zMap(z),
		},
		PCASignalScore:     last.PCASignalScore,
		CreditSignalScore:  last.CreditSignalScore,
		QuantileSignal:     last.QuantileSignal,
		DCCCorrelation:     last.DCCCorrelation,
		HARExcessVol:       last.HARExcessVol,
		CreditSpreadChange: last.CreditSpreadChange,
		VIXChange:          last.VIXChange,
		CompositeRiskScore: last.CompositeRiskScore,
		CompositeWarning:   last.IsWarning,
		DataPoints:         len(history),
		Source:             SourceHistory,
	}
	snap.AvailableSignals = snap.PresentSignals()

	a.log.Debug().
		Str("timestamp", snap.Timestamp).
		Float64("regime_score", score).
		Str("risk_level", string(snap.RiskLevel)).
		Msg("snapshot derived from history")

	return snap
}

// Annotate fills the per-row display fields the upstream omits
// (z_score, percentile, relative_to_current, market_regime,
// risk_interpretation). Values already present are kept.
func (a *Aggregator) Annotate(history []contracts.RiskObservation) []contracts.RiskObservation {
	if len(history) == 0 {
		return history
	}

	values := scores(history)
	mean, std := Mean(values), PopulationStd(values)
	current := history[len(history)-1].SystemicRiskScore

	out := make([]contracts.RiskObservation, len(history))
	for i, o := range history {
		v := o.SystemicRiskScore

		if o.ZScore == nil {
			z := 0.0
			if std > 0 {
				z = (v - mean) / std
			}
			o.ZScore = &z
		}
		if o.Percentile == nil {
			p := math.Min(math.Max(0, (*o.ZScore+2)/4), 1)
			o.Percentile = &p
		}
		if o.RelativeToCurrent == nil {
			rel := v - current
			o.RelativeToCurrent = &rel
		}
		if !o.MarketRegime.Valid() {
			o.MarketRegime = rowBand(a.PeriodRegime(v, mean, std))
		}
		if o.RiskInterpretation == "" {
			o.RiskInterpretation = regime.Interpretation(o.MarketRegime)
		}
		out[i] = o
	}
	return out
}

func rowBand(level contracts.Regime) contracts.Regime {
	switch level {
	case contracts.RegimeHigh:
		return contracts.RegimeRed
	case contracts.RegimeMedium:
		return contracts.RegimeYellow
	}
	return contracts.RegimeGreen
}

func standardize(v, mean, std float64) *float64 {
	z := 0.0
	if std > 0 {
		z = (v - mean) / std
	}
	return &z
}

func zMap(z regime.ComponentZ) map[string]float64 {
	out := map[string]float64{}
	for name, v := range map[string]*float64{
		"systemic": z.Systemic,
		"pca":      z.PCA,
		"credit":   z.Credit,
		"dcc":      z.DCC,
	} {
		if v != nil {
			out[name] = *v
		}
	}
	return out
}
