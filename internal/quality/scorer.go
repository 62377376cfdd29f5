package quality

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/thresholds"
)

// FieldStatus describes one scorable field
type FieldStatus struct {
	Present bool `json:"present"`
	Valid   bool `json:"valid"`
	Points  int  `json:"points"`
}

// Report is the completeness score of a snapshot
type Report struct {
	Score    float64                `json:"score"` // 0-100
	Earned   int                    `json:"earned"`
	Possible int                    `json:"possible"`
	Fields   map[string]FieldStatus `json:"fields"`
}

// Scorer grades snapshot completeness for display
type Scorer struct {
	cfg thresholds.QualityConfig
	log zerolog.Logger
}

// NewScorer creates a scorer
func NewScorer(cfg *thresholds.Config, log zerolog.Logger) *Scorer {
	return &Scorer{
		cfg: cfg.Quality,
		log: log.With().Str("component", "quality.scorer").Logger(),
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Score grades snap. Absent fields are not counted against it.
func (s *Scorer) Score(snap *contracts.CurrentSnapshot) Report {
	r := Report{Fields: map[string]FieldStatus{}}
	if snap == nil {
		return r
	}

	core := s.cfg.CorePoints
	r.add("systemic_risk", snap.SystemicRisk != nil, snap.SystemicRisk != nil && finite(*snap.SystemicRisk), core)
	r.add("risk_level", snap.RiskLevel != "", snap.RiskLevel.Valid(), core)
	r.add("timestamp", snap.Timestamp != "", validTimestamp(snap.Timestamp), core)

	opt := s.cfg.OptionalPoints
	for _, sig := range []struct {
		name string
		v    *float64
	}{
		{contracts.SignalQuantile, snap.QuantileSignal},
		{contracts.SignalDCC, snap.DCCCorrelation},
		{contracts.SignalHAR, snap.HARExcessVol},
		{contracts.SignalComposite, snap.CompositeRiskScore},
		{contracts.SignalCreditSpread, snap.CreditSpreadChange},
		{contracts.SignalVIX, snap.VIXChange},
	} {
		r.add(sig.name, sig.v != nil, sig.v != nil && finite(*sig.v), opt)
	}

	if r.Possible > 0 {
		r.Score = float64(r.Earned) / float64(r.Possible) * 100
	}

	s.log.Debug().
		Int("earned", r.Earned).
		Int("possible", r.Possible).
		Float64("score", r.Score).
		Msg("snapshot scored")

	return r
}

func (r *Report) add(name string, present, valid bool, points int) {
	if !present {
		return
	}
	st := FieldStatus{Present: true, Valid: valid}
	r.Possible += points
	if valid {
		r.Earned += points
		st.Points = points
	}
	r.Fields[name] = st
}

func validTimestamp(ts string) bool {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, ts); err == nil {
			return true
		}
	}
	return false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
