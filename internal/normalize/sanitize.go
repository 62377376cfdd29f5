package normalize

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/wonny/riskdash/internal/contracts"
)

// Precision is the number of decimals kept by Sanitize
const Precision = 6

// Sanitize rounds every numeric field to Precision decimals and drops
// non-finite values. Sanitize(Sanitize(o)) == Sanitize(o).
func Sanitize(o contracts.RiskObservation) contracts.RiskObservation {
	o.SystemicRiskScore = roundOrZero(o.SystemicRiskScore)

	o.PCASignalScore = roundPtr(o.PCASignalScore)
	o.CreditSignalScore = roundPtr(o.CreditSignalScore)
	o.QuantileSignal = roundPtr(o.QuantileSignal)
	o.DCCCorrelation = roundPtr(o.DCCCorrelation)
	o.HARExcessVol = roundPtr(o.HARExcessVol)
	o.CompositeRiskScore = roundPtr(o.CompositeRiskScore)
	o.CreditSpreadChange = roundPtr(o.CreditSpreadChange)
	o.VIXChange = roundPtr(o.VIXChange)
	o.ZScore = roundPtr(o.ZScore)
	o.Percentile = roundPtr(o.Percentile)
	o.RelativeToCurrent = roundPtr(o.RelativeToCurrent)

	if o.Components != nil {
		comps := make(map[string]float64, len(o.Components))
		for k, v := range o.Components {
			if finite(v) {
				comps[k] = round(v)
			}
		}
		o.Components = comps
	}

	return o
}

// SanitizeAll applies Sanitize to a copy of history
func SanitizeAll(history []contracts.RiskObservation) []contracts.RiskObservation {
	out := make([]contracts.RiskObservation, len(history))
	for i, o := range history {
		out[i] = Sanitize(o)
	}
	return out
}

// SanitizeSnapshot applies the same rounding to the snapshot's signal fields
func SanitizeSnapshot(s *contracts.CurrentSnapshot) *contracts.CurrentSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	for _, p := range []**float64{
		&c.SystemicRisk, &c.SystemicMean, &c.SystemicStd,
		&c.PCASignalScore, &c.CreditSignalScore, &c.QuantileSignal,
		&c.DCCCorrelation, &c.HARExcessVol, &c.CreditSpreadChange,
		&c.VIXChange, &c.CompositeRiskScore,
		&c.CreditSpread, &c.MarketVolatility, &c.ForecastNextRisk,
	} {
		*p = roundPtr(*p)
	}
	return &c
}

func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(Precision).InexactFloat64()
}

func roundOrZero(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return round(v)
}

func roundPtr(p *float64) *float64 {
	if p == nil || !finite(*p) {
		return nil
	}
	v := round(*p)
	return &v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
