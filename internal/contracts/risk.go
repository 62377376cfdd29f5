package contracts

import "strings"

// Regime is a risk classification label.
// Level labels (high/medium/low) come from the period thresholds,
// band labels (RED/YELLOW/GREEN) from the composite regime score.
type Regime string

const (
	RegimeHigh   Regime = "high"
	RegimeMedium Regime = "medium"
	RegimeLow    Regime = "low"

	RegimeRed    Regime = "RED"
	RegimeYellow Regime = "YELLOW"
	RegimeGreen  Regime = "GREEN"
)

// ParseRegime accepts any of the six known labels
func ParseRegime(s string) (Regime, bool) {
	r := Regime(s)
	if r.Valid() {
		return r, true
	}
	return "", false
}

// Valid reports whether r is one of the six known labels
func (r Regime) Valid() bool {
	switch r {
	case RegimeHigh, RegimeMedium, RegimeLow, RegimeRed, RegimeYellow, RegimeGreen:
		return true
	}
	return false
}

// Level folds band labels onto the high/medium/low scale.
// Unknown labels return "".
func (r Regime) Level() Regime {
	switch Regime(strings.TrimSpace(string(r))) {
	case RegimeHigh, RegimeRed:
		return RegimeHigh
	case RegimeMedium, RegimeYellow:
		return RegimeMedium
	case RegimeLow, RegimeGreen:
		return RegimeLow
	}
	return ""
}

// RiskObservation is one dated row of the risk history.
// ⭐ SSOT: history 행 구조는 여기서만 정의
type RiskObservation struct {
	Date              string  `json:"date"`
	SystemicRiskScore float64 `json:"systemic_risk_score"`

	PCASignalScore     *float64 `json:"pca_signal_score,omitempty"`
	CreditSignalScore  *float64 `json:"credit_signal_score,omitempty"`
	QuantileSignal     *float64 `json:"quantile_signal,omitempty"`
	DCCCorrelation     *float64 `json:"dcc_correlation,omitempty"`
	HARExcessVol       *float64 `json:"har_excess_vol,omitempty"`
	CompositeRiskScore *float64 `json:"composite_risk_score,omitempty"`
	CreditSpreadChange *float64 `json:"credit_spread_change,omitempty"`
	VIXChange          *float64 `json:"vix_change,omitempty"`

	ZScore            *float64 `json:"z_score,omitempty"`
	Percentile        *float64 `json:"percentile,omitempty"`
	RelativeToCurrent *float64 `json:"relative_to_current,omitempty"`

	MarketRegime       Regime             `json:"market_regime,omitempty"`
	RiskInterpretation string             `json:"risk_interpretation,omitempty"`
	IsWarning          bool               `json:"is_warning"`
	Components         map[string]float64 `json:"components,omitempty"`
}

// DateRange is the inclusive span covered by a history window
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RiskDistribution carries the upstream's period thresholds
type RiskDistribution struct {
	HighThreshold   float64 `json:"high_threshold"`
	MediumThreshold float64 `json:"medium_threshold"`
	CurrentRegime   Regime  `json:"current_regime,omitempty"`
}

// SummaryStatistics describes a history window as a whole
type SummaryStatistics struct {
	CurrentRisk      *float64          `json:"current_risk,omitempty"`
	PeriodMean       float64           `json:"period_mean"`
	PeriodStd        float64           `json:"period_std"`
	PeriodMin        float64           `json:"period_min"`
	PeriodMax        float64           `json:"period_max"`
	DataPoints       int               `json:"data_points"`
	DateRange        DateRange         `json:"date_range"`
	RiskDistribution *RiskDistribution `json:"risk_distribution,omitempty"`
	SignalSummary    map[string]any    `json:"signal_summary,omitempty"`
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
