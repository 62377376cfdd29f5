package thresholds

import (
	"fmt"
	"math"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks internal consistency of cfg
func Validate(cfg *Config) error {
	// === Regime ===
	w := cfg.Regime.Weights
	for field, v := range map[string]float64{
		"regime.weights.systemic": w.Systemic,
		"regime.weights.pca":      w.PCA,
		"regime.weights.credit":   w.Credit,
		"regime.weights.dcc":      w.DCC,
	} {
		if v < 0 {
			return ValidationError{field, "must be >= 0"}
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-6 {
		return ValidationError{"regime.weights", fmt.Sprintf("must sum to 1.0, got %.4f", w.Sum())}
	}
	if cfg.Regime.Red <= cfg.Regime.Yellow {
		return ValidationError{"regime.red", "must be greater than regime.yellow"}
	}
	if cfg.Regime.DCCScale <= 0 {
		return ValidationError{"regime.dcc_scale", "must be > 0"}
	}

	// === Period ===
	if cfg.Period.MediumStd < 0 {
		return ValidationError{"period.medium_std", "must be >= 0"}
	}
	if cfg.Period.HighStd <= cfg.Period.MediumStd {
		return ValidationError{"period.high_std", "must be greater than period.medium_std"}
	}

	// === Display ===
	if cfg.Display.High <= cfg.Display.Medium {
		return ValidationError{"display.high", "must be greater than display.medium"}
	}

	// === Warning ===
	if cfg.Warning.HARExcessVol <= 0 {
		return ValidationError{"warning.har_excess_vol", "must be > 0"}
	}
	if cfg.Warning.DCCCorrelation <= 0 || cfg.Warning.DCCCorrelation > 1 {
		return ValidationError{"warning.dcc_correlation", "must be in (0, 1]"}
	}
	if cfg.Warning.SystemicStd < 0 {
		return ValidationError{"warning.systemic_std", "must be >= 0"}
	}

	// === Quality ===
	if cfg.Quality.CorePoints <= 0 || cfg.Quality.OptionalPoints < 0 {
		return ValidationError{"quality", "core_points must be > 0 and optional_points >= 0"}
	}

	return nil
}
