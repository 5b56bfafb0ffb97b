package soil

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r1"
)

// Config describes the physical constants, action lattice, and reward
// shaping of a Soil environment. Shaping constants were chosen
// empirically and should be treated as tunable.
type Config struct {
	// Moisture thresholds, as fractions of saturation in [0, 1]
	WiltingPoint     float64 // Terminal failure below this moisture
	WarningThreshold float64 // Quadratic penalty below this moisture
	Saturation       float64 // Linear penalty above this moisture

	// Reward shaping weights
	WaterCostPerMM    float64 // Linear cost per mm of irrigation
	WarningPenalty    float64 // Weight of the squared distance below warning
	WiltPenalty       float64 // Fixed penalty on wilting
	SaturationPenalty float64 // Weight of the distance above saturation

	// Action lattice: action i applies i * ActionStepMM mm of water
	ActionStepMM float64
	NumActions   int

	// ForecastWindow is the number of upcoming days of rain and ET
	// included in each observation
	ForecastWindow int

	// MMPerUnit is the net water, in mm, that changes moisture by 1.0
	MMPerUnit float64

	// StartBounds bounds the uniformly drawn starting moisture of
	// training episodes
	StartBounds r1.Interval
}

// DefaultConfig returns the default Soil environment configuration: 21
// irrigation levels from 0 to 10 mm, a 7 day forecast window, and the
// default reward shaping.
func DefaultConfig() Config {
	return Config{
		WiltingPoint:     0.20,
		WarningThreshold: 0.30,
		Saturation:       0.80,

		WaterCostPerMM:    0.1,
		WarningPenalty:    50,
		WiltPenalty:       200,
		SaturationPenalty: 10,

		ActionStepMM: 0.5,
		NumActions:   21,

		ForecastWindow: 7,
		MMPerUnit:      100,

		StartBounds: r1.Interval{Min: 0.3, Max: 0.7},
	}
}

// Validate checks a Config to ensure it describes a valid environment
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"wilting point":     c.WiltingPoint,
		"warning threshold": c.WarningThreshold,
		"saturation":        c.Saturation,
	} {
		if !(v >= 0 && v <= 1) {
			return fmt.Errorf("validate: %v must be in [0, 1], have(%v)",
				name, v)
		}
	}
	if c.WiltingPoint > c.WarningThreshold ||
		c.WarningThreshold > c.Saturation {
		return fmt.Errorf("validate: thresholds must be ordered wilting "+
			"point <= warning threshold <= saturation, have(%v, %v, %v)",
			c.WiltingPoint, c.WarningThreshold, c.Saturation)
	}

	if c.NumActions < 1 {
		return fmt.Errorf("validate: at least one action required, have(%v)",
			c.NumActions)
	}
	if !(c.ActionStepMM >= 0) || math.IsInf(c.ActionStepMM, 0) {
		return fmt.Errorf("validate: action step must be non-negative, "+
			"have(%v)", c.ActionStepMM)
	}
	if c.ForecastWindow < 1 {
		return fmt.Errorf("validate: forecast window must be positive, "+
			"have(%v)", c.ForecastWindow)
	}
	if !(c.MMPerUnit > 0) || math.IsInf(c.MMPerUnit, 0) {
		return fmt.Errorf("validate: mm per unit must be positive, have(%v)",
			c.MMPerUnit)
	}

	b := c.StartBounds
	if b.Min > b.Max || b.Min < 0 || b.Max > 1 {
		return fmt.Errorf("validate: start bounds must be an interval in "+
			"[0, 1], have(%v)", b)
	}
	return nil
}

// Amount returns the irrigation amount in mm applied by an action
func (c Config) Amount(action int) float64 {
	return float64(action) * c.ActionStepMM
}

// ObservationSize returns the number of features in an observation:
// moisture, moisture change, crop need, and the rain and ET window.
func (c Config) ObservationSize() int {
	return 3 + 2*c.ForecastWindow
}
