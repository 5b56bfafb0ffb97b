// Package forecast implements the daily weather forecast that drives
// the soil moisture environment, as well as parsing of the rain and
// evapotranspiration series a forecast is built from.
package forecast

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptySeries is returned when a series holds no values
	ErrEmptySeries = errors.New("empty series")

	// ErrShortSeries is returned when a series is shorter than the
	// requested horizon
	ErrShortSeries = errors.New("series shorter than horizon")
)

// Day is the forecasted weather for a single day
type Day struct {
	RainMM float64 `json:"rain_mm"`
	ETMM   float64 `json:"et_mm"`
}

// Forecast is an immutable, ordered sequence of daily forecasts
type Forecast struct {
	days []Day
}

// New creates a new Forecast of horizon days from an
// evapotranspiration series and an optional rain series. If horizon is
// not positive, the length of et is used. If rain is nil, no rain is
// forecast. Both series are truncated to the horizon.
func New(et, rain []float64, horizon int) (Forecast, error) {
	if horizon <= 0 {
		horizon = len(et)
	}
	if horizon == 0 {
		return Forecast{}, fmt.Errorf("new: et: %w", ErrEmptySeries)
	}
	if rain == nil {
		rain = make([]float64, horizon)
	}

	if len(et) < horizon {
		return Forecast{}, fmt.Errorf("new: et length (%d) shorter than "+
			"horizon (%d): %w", len(et), horizon, ErrShortSeries)
	}
	if len(rain) < horizon {
		return Forecast{}, fmt.Errorf("new: rain length (%d) shorter than "+
			"horizon (%d): %w", len(rain), horizon, ErrShortSeries)
	}

	days := make([]Day, horizon)
	for i := range days {
		days[i] = Day{RainMM: rain[i], ETMM: et[i]}
	}
	return FromDays(days)
}

// FromDays creates a new Forecast from a sequence of Days. The Days
// are copied.
func FromDays(days []Day) (Forecast, error) {
	if len(days) == 0 {
		return Forecast{}, fmt.Errorf("fromdays: %w", ErrEmptySeries)
	}

	for i, d := range days {
		if !finite(d.RainMM) || !finite(d.ETMM) {
			return Forecast{}, fmt.Errorf("fromdays: day %d: rain and et "+
				"must be finite, have(rain=%v, et=%v)", i, d.RainMM, d.ETMM)
		}
		if d.RainMM < 0 || d.ETMM < 0 {
			return Forecast{}, fmt.Errorf("fromdays: day %d: rain and et "+
				"must be non-negative, have(rain=%v, et=%v)", i, d.RainMM,
				d.ETMM)
		}
	}

	copied := make([]Day, len(days))
	copy(copied, days)
	return Forecast{days: copied}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Constant returns a Forecast of n identical days
func Constant(rainMM, etMM float64, n int) (Forecast, error) {
	days := make([]Day, n)
	for i := range days {
		days[i] = Day{RainMM: rainMM, ETMM: etMM}
	}
	return FromDays(days)
}

// Len returns the number of forecasted days
func (f Forecast) Len() int {
	return len(f.days)
}

// At returns the forecast for day i
func (f Forecast) At(i int) Day {
	return f.days[i]
}

// Days returns a copy of the forecasted days
func (f Forecast) Days() []Day {
	days := make([]Day, len(f.days))
	copy(days, f.days)
	return days
}
