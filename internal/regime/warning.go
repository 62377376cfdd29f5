package regime

import (
	"fmt"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/thresholds"
)

// Warning is the early-warning descriptor for a snapshot.
// IsWarning is the upstream composite_warning flag as sent; Reasons are
// recomputed locally and may disagree with it.
type Warning struct {
	IsWarning bool     `json:"is_warning"`
	Reasons   []string `json:"reasons"`
}

// Diverges reports whether the local rules disagree with the upstream flag
func (w Warning) Diverges() bool {
	return w.IsWarning != (len(w.Reasons) > 0)
}

// Detector evaluates the early-warning trip wires
type Detector struct {
	cfg thresholds.WarningConfig
}

// NewDetector creates a detector from thresholds
func NewDetector(cfg *thresholds.Config) *Detector {
	return &Detector{cfg: cfg.Warning}
}

// Evaluate lists the local rules that trip:
//   - HAR excess volatility above its limit
//   - DCC correlation above its limit
//   - systemic risk above mean + k·std
//
// Rules whose inputs are absent are skipped.
func (d *Detector) Evaluate(snap *contracts.CurrentSnapshot) Warning {
	w := Warning{Reasons: []string{}}
	if snap == nil {
		return w
	}
	w.IsWarning = snap.CompositeWarning

	if v := snap.HARExcessVol; v != nil && *v > d.cfg.HARExcessVol {
		w.Reasons = append(w.Reasons, fmt.Sprintf("HAR excess volatility %.2f above %.2f", *v, d.cfg.HARExcessVol))
	}

	if v := snap.DCCCorrelation; v != nil && *v > d.cfg.DCCCorrelation {
		w.Reasons = append(w.Reasons, fmt.Sprintf("DCC correlation %.2f above %.2f", *v, d.cfg.DCCCorrelation))
	}

	if snap.SystemicRisk != nil && snap.SystemicMean != nil && snap.SystemicStd != nil {
		limit := *snap.SystemicMean + *snap.SystemicStd*d.cfg.SystemicStd
		if *snap.SystemicRisk > limit {
			w.Reasons = append(w.Reasons, fmt.Sprintf("systemic risk %.2f above mean+%.1fσ (%.2f)", *snap.SystemicRisk, d.cfg.SystemicStd, limit))
		}
	}

	return w
}
