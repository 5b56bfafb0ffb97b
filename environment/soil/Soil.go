// Package soil implements a single-crop soil moisture environment in
// which an agent chooses how much to irrigate on each day of a finite
// planning horizon.
package soil

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	env "github.com/samuelfneumann/goirrigate/environment"
	"github.com/samuelfneumann/goirrigate/forecast"
	ts "github.com/samuelfneumann/goirrigate/timestep"
	"github.com/samuelfneumann/goirrigate/utils/floatutils"
)

// ActionDims is the dimensionality of actions
const ActionDims = 1

var moistureBounds = r1.Interval{Min: 0, Max: 1}

// Soil implements a soil moisture environment driven by a weather
// forecast. Each step is one day: the chosen irrigation amount plus the
// day's rain minus the day's evapotranspiration (ET) changes the soil
// moisture, which is kept in [0, 1].
//
// Observations consist of the current moisture, the change in moisture
// since the previous day, the crop water need, and the rain and ET of
// up to ForecastWindow upcoming days laid out as
//
//	[moisture, Δmoisture, need, rain_0..rain_n-1, et_0..et_n-1, 0...]
//
// where n is the number of forecasted days remaining in the window.
// Observations are zero-padded on the right, so their size does not
// depend on the horizon.
//
// Actions are discrete in {0, 1, ..., NumActions-1}, and action i
// irrigates i * ActionStepMM mm. An episode ends when the horizon is
// reached or the moisture falls below the wilting point.
//
// Soil implements the environment.Environment interface.
type Soil struct {
	Config
	forecast forecast.Forecast
	cropNeed float64
	horizon  int
	starter  env.Starter

	moisture     float64
	prevMoisture float64
	day          int
	done         bool
}

// New creates a new Soil environment over the first horizon days of a
// forecast. If horizon is not positive, the whole forecast is used.
// Starting moistures of training episodes are drawn from src.
//
// The returned environment must be Reset before stepping.
func New(f forecast.Forecast, cropNeed float64, horizon int, c Config,
	src rand.Source) (*Soil, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	if math.IsNaN(cropNeed) || math.IsInf(cropNeed, 0) {
		return nil, fmt.Errorf("new: crop need must be finite, have(%v)",
			cropNeed)
	}

	if horizon <= 0 {
		horizon = f.Len()
	}
	if horizon == 0 {
		return nil, fmt.Errorf("new: empty forecast")
	}
	if f.Len() < horizon {
		return nil, fmt.Errorf("new: forecast length (%d) shorter than "+
			"horizon (%d): %w", f.Len(), horizon, forecast.ErrShortSeries)
	}

	starter := env.NewUniformStarter([]r1.Interval{c.StartBounds}, src)

	return &Soil{
		Config:   c,
		forecast: f,
		cropNeed: cropNeed,
		horizon:  horizon,
		starter:  starter,
		done:     true,
	}, nil
}

// Reset resets the environment to a starting moisture drawn uniformly
// from the configured start bounds
func (s *Soil) Reset() (ts.TimeStep, error) {
	return s.ResetTo(s.starter.Start().AtVec(0))
}

// ResetTo resets the environment to a literal starting moisture
func (s *Soil) ResetTo(moisture float64) (ts.TimeStep, error) {
	if moisture < 0 || moisture > 1 || math.IsNaN(moisture) {
		return ts.TimeStep{}, fmt.Errorf("resetto: moisture must be in "+
			"[0, 1], have(%v)", moisture)
	}

	s.moisture = moisture
	s.prevMoisture = moisture
	s.day = 0
	s.done = false

	return ts.New(ts.First, 0, s.Observe(), 0), nil
}

// Observe returns the observation of the current state
func (s *Soil) Observe() mat.Vector {
	obs := make([]float64, s.ObservationSize())
	obs[0] = s.moisture
	obs[1] = s.moisture - s.prevMoisture
	obs[2] = s.cropNeed

	remaining := s.ForecastWindow
	if left := s.horizon - s.day; left < remaining {
		remaining = left
	}

	for i := 0; i < remaining; i++ {
		day := s.forecast.At(s.day + i)
		obs[3+i] = day.RainMM
		obs[3+remaining+i] = day.ETMM
	}

	return mat.NewVecDense(len(obs), obs)
}

// Step takes one environmental step given an action, returning the next
// timestep and whether or not the episode has ended
func (s *Soil) Step(action int) (ts.TimeStep, bool, error) {
	if s.done {
		return ts.TimeStep{}, true, fmt.Errorf("step: episode has ended, " +
			"environment must be reset")
	}
	if action < 0 || action >= s.NumActions {
		return ts.TimeStep{}, false, fmt.Errorf("step: action must be in "+
			"[0, %d], have(%d)", s.NumActions-1, action)
	}

	water := s.Amount(action)
	weather := s.forecast.At(s.day)

	delta := (weather.RainMM + water - weather.ETMM) / s.MMPerUnit
	s.prevMoisture = s.moisture
	s.moisture = floatutils.ClipInterval(s.moisture+delta, moistureBounds)

	reward, wilted := s.Reward(s.moisture, water)

	s.day++
	s.done = wilted || s.day >= s.horizon

	stepType := ts.Mid
	if s.done {
		stepType = ts.Last
	}

	return ts.New(stepType, reward, s.Observe(), s.day), s.done, nil
}

// ActionSpec returns the action specification of the environment
func (s *Soil) ActionSpec() env.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims, []float64{0})
	upperBound := mat.NewVecDense(ActionDims,
		[]float64{float64(s.NumActions - 1)})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Discrete)
}

// ObservationSpec returns the observation specification of the
// environment
func (s *Soil) ObservationSpec() env.Spec {
	size := s.ObservationSize()
	shape := mat.NewVecDense(size, nil)

	lower := make([]float64, size)
	upper := make([]float64, size)
	lower[0], upper[0] = 0, 1
	lower[1], upper[1] = -1, 1
	lower[2], upper[2] = s.cropNeed, s.cropNeed
	for i := 3; i < size; i++ {
		upper[i] = math.Inf(1)
	}

	return env.NewSpec(shape, env.Observation, mat.NewVecDense(size, lower),
		mat.NewVecDense(size, upper), env.Continuous)
}

// Moisture returns the current soil moisture
func (s *Soil) Moisture() float64 {
	return s.moisture
}

// Day returns the number of days simulated in the current episode
func (s *Soil) Day() int {
	return s.day
}

// Done returns whether the current episode has ended
func (s *Soil) Done() bool {
	return s.done
}

// Horizon returns the maximum number of days in an episode
func (s *Soil) Horizon() int {
	return s.horizon
}

// CropNeed returns the crop water need included in observations
func (s *Soil) CropNeed() float64 {
	return s.cropNeed
}

// String returns a string representation of the environment
func (s *Soil) String() string {
	str := "Soil  |  Day: %v/%v  |  Moisture: %.4f  |  Done: %v"
	return fmt.Sprintf(str, s.day, s.horizon, s.moisture, s.done)
}
