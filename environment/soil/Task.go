package soil

import "math"

// Reward returns the shaped reward for ending a day at the given
// moisture after applying water mm of irrigation, and whether the crop
// wilted. Penalties stack, so a wilted crop also pays the warning
// penalty.
func (c Config) Reward(moisture, water float64) (float64, bool) {
	reward := -water * c.WaterCostPerMM

	if moisture < c.WarningThreshold {
		reward -= c.WarningPenalty * math.Pow(c.WarningThreshold-moisture, 2)
	}

	wilted := moisture < c.WiltingPoint
	if wilted {
		reward -= c.WiltPenalty
	}

	if moisture > c.Saturation {
		reward -= c.SaturationPenalty * (moisture - c.Saturation)
	}

	return reward, wilted
}
