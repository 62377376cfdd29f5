package thresholds

// Config holds every tunable cut-off used by the derived views.
// ⭐ SSOT: 임계값은 여기서만 정의
type Config struct {
	Regime  RegimeConfig  `yaml:"regime" json:"regime"`
	Period  PeriodConfig  `yaml:"period" json:"period"`
	Display DisplayConfig `yaml:"display" json:"display"`
	Warning WarningConfig `yaml:"warning" json:"warning"`
	Quality QualityConfig `yaml:"quality" json:"quality"`
}

// RegimeConfig weights the component z-scores into the regime score
type RegimeConfig struct {
	Weights Weights `yaml:"weights" json:"weights"`
	Red     float64 `yaml:"red" json:"red"`       // score > red → RED
	Yellow  float64 `yaml:"yellow" json:"yellow"` // score > yellow → YELLOW

	// dcc_z = (corr - DCCCenter) / DCCScale
	DCCCenter float64 `yaml:"dcc_center" json:"dcc_center"`
	DCCScale  float64 `yaml:"dcc_scale" json:"dcc_scale"`
}

// Weights for systemic, PCA, credit and DCC z-scores
type Weights struct {
	Systemic float64 `yaml:"systemic" json:"systemic"`
	PCA      float64 `yaml:"pca" json:"pca"`
	Credit   float64 `yaml:"credit" json:"credit"`
	DCC      float64 `yaml:"dcc" json:"dcc"`
}

// Sum returns the total weight
func (w Weights) Sum() float64 {
	return w.Systemic + w.PCA + w.Credit + w.DCC
}

// PeriodConfig places the window's current value against mean + k·std
type PeriodConfig struct {
	HighStd   float64 `yaml:"high_std" json:"high_std"`
	MediumStd float64 `yaml:"medium_std" json:"medium_std"`
}

// DisplayConfig is the traffic-light fallback when the summary has no thresholds
type DisplayConfig struct {
	High   float64 `yaml:"high" json:"high"`
	Medium float64 `yaml:"medium" json:"medium"`
}

// WarningConfig holds the early-warning trip wires
type WarningConfig struct {
	HARExcessVol   float64 `yaml:"har_excess_vol" json:"har_excess_vol"`
	DCCCorrelation float64 `yaml:"dcc_correlation" json:"dcc_correlation"`
	SystemicStd    float64 `yaml:"systemic_std" json:"systemic_std"`
}

// QualityConfig holds the completeness point values
type QualityConfig struct {
	CorePoints     int `yaml:"core_points" json:"core_points"`
	OptionalPoints int `yaml:"optional_points" json:"optional_points"`
}

// Default returns the built-in thresholds
func Default() *Config {
	return &Config{
		Regime: RegimeConfig{
			Weights:   Weights{Systemic: 0.4, PCA: 0.25, Credit: 0.2, DCC: 0.15},
			Red:       0.5,
			Yellow:    0.0,
			DCCCenter: 0.5,
			DCCScale:  0.2,
		},
		Period: PeriodConfig{
			HighStd:   1.0,
			MediumStd: 0.5,
		},
		Display: DisplayConfig{
			High:   0.5,
			Medium: 0.0,
		},
		Warning: WarningConfig{
			HARExcessVol:   2.0,
			DCCCorrelation: 0.95,
			SystemicStd:    1.0,
		},
		Quality: QualityConfig{
			CorePoints:     20,
			OptionalPoints: 5,
		},
	}
}
