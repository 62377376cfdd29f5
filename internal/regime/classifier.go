package regime

import (
	"math"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/thresholds"
)

// Interpretation strings shown next to the regime badge
const (
	InterpretationHigh   = "High systemic risk detected. Monitor markets closely."
	InterpretationMedium = "Elevated risk levels. Increased vigilance recommended."
	InterpretationLow    = "Normal market conditions. Standard monitoring procedures."
)

// Source of a regime label
const (
	SourceUpstream = "upstream"
	SourceFallback = "fallback"
	SourceNone     = "none"
)

// ComponentZ holds the z-scores that feed the regime score.
// A nil entry contributes nothing.
type ComponentZ struct {
	Systemic *float64
	PCA      *float64
	Credit   *float64
	DCC      *float64
}

// Thresholds used for the traffic light and chart reference lines
type Thresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
	Source string  `json:"source"` // "summary" or "default"
}

// Descriptor is the rendered regime for the current state
type Descriptor struct {
	Regime         contracts.Regime `json:"regime,omitempty"`
	Level          contracts.Regime `json:"level,omitempty"`
	Score          *float64         `json:"score,omitempty"`
	Source         string           `json:"source"`
	Interpretation string           `json:"interpretation,omitempty"`
	Thresholds     Thresholds       `json:"thresholds"`
}

// Classifier turns snapshots into regime descriptors
type Classifier struct {
	cfg     thresholds.RegimeConfig
	display thresholds.DisplayConfig
}

// NewClassifier creates a classifier from thresholds
func NewClassifier(cfg *thresholds.Config) *Classifier {
	return &Classifier{cfg: cfg.Regime, display: cfg.Display}
}

// Score is the weighted sum of the available component z-scores
func (c *Classifier) Score(z ComponentZ) float64 {
	w := c.cfg.Weights
	score := 0.0
	score += weighted(w.Systemic, z.Systemic)
	score += weighted(w.PCA, z.PCA)
	score += weighted(w.Credit, z.Credit)
	score += weighted(w.DCC, z.DCC)
	return score
}

// DCCZ maps a DCC correlation onto the z-score scale
func (c *Classifier) DCCZ(corr float64) float64 {
	return (corr - c.cfg.DCCCenter) / c.cfg.DCCScale
}

// Band classifies a regime score: ≥ red → RED, ≥ yellow → YELLOW, else GREEN
func (c *Classifier) Band(score float64) contracts.Regime {
	switch {
	case score >= c.cfg.Red:
		return contracts.RegimeRed
	case score >= c.cfg.Yellow:
		return contracts.RegimeYellow
	default:
		return contracts.RegimeGreen
	}
}

// DisplayThresholds prefers the summary's thresholds over the defaults
func (c *Classifier) DisplayThresholds(summary *contracts.SummaryStatistics) Thresholds {
	if summary != nil && summary.RiskDistribution != nil {
		return Thresholds{
			High:   summary.RiskDistribution.HighThreshold,
			Medium: summary.RiskDistribution.MediumThreshold,
			Source: "summary",
		}
	}
	return Thresholds{High: c.display.High, Medium: c.display.Medium, Source: "default"}
}

// Describe renders the regime for snap.
// An upstream label is trusted as-is. Without one, the band is derived
// from the regime_details score.
func (c *Classifier) Describe(snap *contracts.CurrentSnapshot, summary *contracts.SummaryStatistics) Descriptor {
	d := Descriptor{Source: SourceNone, Thresholds: c.DisplayThresholds(summary)}
	if snap == nil {
		return d
	}

	if score, ok := c.snapshotScore(snap); ok {
		d.Score = &score
	}

	if snap.RiskLevel.Valid() {
		d.Regime = snap.RiskLevel
		d.Source = SourceUpstream
	} else if d.Score != nil {
		d.Regime = c.Band(*d.Score)
		d.Source = SourceFallback
	}

	d.Level = d.Regime.Level()
	d.Interpretation = Interpretation(d.Level)
	return d
}

func (c *Classifier) snapshotScore(snap *contracts.CurrentSnapshot) (float64, bool) {
	if snap.RegimeDetails == nil {
		return 0, false
	}
	return snap.RegimeDetails.RegimeScore, true
}

// Interpretation returns the human-readable reading of a level
func Interpretation(level contracts.Regime) string {
	switch level.Level() {
	case contracts.RegimeHigh:
		return InterpretationHigh
	case contracts.RegimeMedium:
		return InterpretationMedium
	case contracts.RegimeLow:
		return InterpretationLow
	}
	return ""
}

func weighted(w float64, z *float64) float64 {
	if z == nil || math.IsNaN(*z) || math.IsInf(*z, 0) {
		return 0
	}
	return w * *z
}
