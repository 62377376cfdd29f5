package contracts

import "sort"

// Signal names used in CurrentSnapshot.AvailableSignals
const (
	SignalPCA          = "pca_signal_score"
	SignalCredit       = "credit_signal_score"
	SignalQuantile     = "quantile_signal"
	SignalDCC          = "dcc_correlation"
	SignalHAR          = "har_excess_vol"
	SignalCreditSpread = "credit_spread_change"
	SignalVIX          = "vix_change"
	SignalComposite    = "composite_risk_score"
)

// RegimeDetails is the upstream breakdown of the composite regime score
type RegimeDetails struct {
	RegimeScore            float64            `json:"regime_score"`
	ComponentZScores       map[string]float64 `json:"component_z_scores,omitempty"`
	ComponentContributions map[string]float64 `json:"component_contributions,omitempty"`
	Thresholds             map[string]any     `json:"thresholds,omitempty"`
}

// QuantileSummary carries tail-risk figures from the quantile model
type QuantileSummary struct {
	VaR95         *float64 `json:"var_95,omitempty"`
	VaRNormal     *float64 `json:"var_normal,omitempty"`
	CapitalBuffer *float64 `json:"capital_buffer,omitempty"`
}

// CurrentSnapshot is the latest point-in-time risk state.
// It is always replaced as a whole, never patched field by field.
type CurrentSnapshot struct {
	Timestamp    string   `json:"timestamp"`
	SystemicRisk *float64 `json:"systemic_risk,omitempty"`
	SystemicMean *float64 `json:"systemic_mean,omitempty"`
	SystemicStd  *float64 `json:"systemic_std,omitempty"`
	RiskLevel    Regime   `json:"risk_level,omitempty"`

	RegimeDetails *RegimeDetails `json:"regime_details,omitempty"`

	PCASignalScore     *float64 `json:"pca_signal_score,omitempty"`
	CreditSignalScore  *float64 `json:"credit_signal_score,omitempty"`
	QuantileSignal     *float64 `json:"quantile_signal,omitempty"`
	DCCCorrelation     *float64 `json:"dcc_correlation,omitempty"`
	HARExcessVol       *float64 `json:"har_excess_vol,omitempty"`
	CreditSpreadChange *float64 `json:"credit_spread_change,omitempty"`
	VIXChange          *float64 `json:"vix_change,omitempty"`
	CompositeRiskScore *float64 `json:"composite_risk_score,omitempty"`
	CompositeWarning   bool     `json:"composite_warning"`

	ComponentAnalysis map[string]any   `json:"component_analysis,omitempty"`
	SignalAnalysis    map[string]any   `json:"signal_analysis,omitempty"`
	PCAVariance       any              `json:"pca_variance,omitempty"`
	QuantileSummary   *QuantileSummary `json:"quantile_summary,omitempty"`

	CreditSpread     *float64 `json:"credit_spread,omitempty"`
	MarketVolatility *float64 `json:"market_volatility,omitempty"`
	ForecastNextRisk *float64 `json:"forecast_next_risk,omitempty"`

	DataPoints       int      `json:"data_points,omitempty"`
	AvailableSignals []string `json:"available_signals,omitempty"`
	Source           string   `json:"source,omitempty"`
}

// HasSignal reports whether name is listed as available
func (s *CurrentSnapshot) HasSignal(name string) bool {
	for _, n := range s.AvailableSignals {
		if n == name {
			return true
		}
	}
	return false
}

// PresentSignals lists the optional signal fields that carry a value, sorted
func (s *CurrentSnapshot) PresentSignals() []string {
	fields := map[string]*float64{
		SignalPCA:          s.PCASignalScore,
		SignalCredit:       s.CreditSignalScore,
		SignalQuantile:     s.QuantileSignal,
		SignalDCC:          s.DCCCorrelation,
		SignalHAR:          s.HARExcessVol,
		SignalCreditSpread: s.CreditSpreadChange,
		SignalVIX:          s.VIXChange,
		SignalComposite:    s.CompositeRiskScore,
	}

	names := make([]string, 0, len(fields))
	for name, v := range fields {
		if v != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ConnectionState tracks the live stream lifecycle
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateOpen
	StateClosed
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// MarshalText renders the state by name in JSON payloads
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
