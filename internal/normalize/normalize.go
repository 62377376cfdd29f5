package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/stats"
)

// Shape names reported in Result.Shape
const (
	ShapeEnhanced = "enhanced"
	ShapeLegacy   = "legacy"
)

// Result is a canonical history payload
type Result struct {
	Shape        string
	Observations []contracts.RiskObservation
	Valid        []bool // per observation, same order
	Summary      *contracts.SummaryStatistics
}

// ValidCount returns how many observations passed validation
func (r *Result) ValidCount() int {
	n := 0
	for _, ok := range r.Valid {
		if ok {
			n++
		}
	}
	return n
}

// Normalize turns a history response body into a Result.
// Every item is kept; the batch fails only when it is non-empty and no
// item validates.
func Normalize(body []byte) (*Result, error) {
	switch s := Detect(body).(type) {
	case Enhanced:
		res, err := decodeItems(ShapeEnhanced, s.Items)
		if err != nil {
			return nil, err
		}
		if s.Summary != nil {
			var summary contracts.SummaryStatistics
			if err := json.Unmarshal(s.Summary, &summary); err != nil {
				return nil, &contracts.FormatError{Reason: fmt.Sprintf("summary: %v", err)}
			}
			res.Summary = &summary
		}
		return res, nil

	case Legacy:
		res, err := decodeItems(ShapeLegacy, s.Items)
		if err != nil {
			return nil, err
		}
		res.Summary = stats.Synthesize(res.Observations)
		return res, nil

	case Invalid:
		return nil, &contracts.FormatError{Reason: s.Reason}
	}

	return nil, &contracts.FormatError{Reason: "unrecognized response shape"}
}

func decodeItems(shape string, items []json.RawMessage) (*Result, error) {
	res := &Result{
		Shape:        shape,
		Observations: make([]contracts.RiskObservation, len(items)),
		Valid:        make([]bool, len(items)),
	}
	for i, raw := range items {
		res.Observations[i], res.Valid[i] = decodeObservation(raw)
	}

	if len(items) > 0 && res.ValidCount() == 0 {
		return nil, &contracts.FormatError{Reason: fmt.Sprintf("none of %d observations validated", len(items))}
	}
	return res, nil
}

// decodeObservation maps one item, accepting legacy field aliases.
// The bool reports whether the item has a numeric score, a known
// regime label and a string date.
func decodeObservation(raw json.RawMessage) (contracts.RiskObservation, bool) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return contracts.RiskObservation{}, false
	}

	var o contracts.RiskObservation

	date, hasDate := str(m, "date")
	if !hasDate {
		date, hasDate = str(m, "timestamp")
	}
	o.Date = date

	score := num(m, "systemic_risk_score")
	if score == nil {
		score = num(m, "systemic_risk")
	}
	if score != nil {
		o.SystemicRiskScore = *score
	}

	label, ok := str(m, "market_regime")
	if !ok {
		label, _ = str(m, "risk_level")
	}
	o.MarketRegime = contracts.Regime(label)

	o.PCASignalScore = num(m, "pca_signal_score")
	o.CreditSignalScore = num(m, "credit_signal_score")
	o.QuantileSignal = num(m, "quantile_signal")
	o.DCCCorrelation = num(m, "dcc_correlation")
	o.HARExcessVol = num(m, "har_excess_vol")
	o.CompositeRiskScore = num(m, "composite_risk_score")
	o.CreditSpreadChange = num(m, "credit_spread_change")
	o.VIXChange = num(m, "vix_change")
	o.ZScore = num(m, "z_score")
	o.Percentile = num(m, "percentile")
	o.RelativeToCurrent = num(m, "relative_to_current")
	o.RiskInterpretation, _ = str(m, "risk_interpretation")
	o.IsWarning, _ = m["is_warning"].(bool)

	if comps, ok := m["components"].(map[string]any); ok {
		o.Components = make(map[string]float64, len(comps))
		for k, v := range comps {
			if x, ok := v.(float64); ok {
				o.Components[k] = x
			}
		}
	}

	valid := score != nil && o.MarketRegime.Valid() && hasDate
	return o, valid
}

func str(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

func num(m map[string]any, key string) *float64 {
	if v, ok := m[key].(float64); ok {
		return &v
	}
	return nil
}
