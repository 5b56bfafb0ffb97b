package experiment

import (
	"fmt"

	"github.com/samuelfneumann/goirrigate/agent"
	env "github.com/samuelfneumann/goirrigate/environment"
	ts "github.com/samuelfneumann/goirrigate/timestep"
)

// IrrigationEnv is an environment which can be reset to a literal soil
// moisture and which maps actions to irrigation amounts
type IrrigationEnv interface {
	env.Environment
	ResetTo(moisture float64) (ts.TimeStep, error)
	Amount(action int) float64
	Moisture() float64
}

// Schedule is a day-by-day irrigation schedule produced by rolling out
// a policy
type Schedule struct {
	// WaterMM is the irrigation applied on each simulated day
	WaterMM []float64

	TotalWaterMM float64

	// Moisture is the soil moisture trajectory, starting with the
	// moisture before any irrigation, so that it holds one more value
	// than WaterMM
	Moisture []float64
}

// Days returns the number of simulated days in the schedule
func (s Schedule) Days() int {
	return len(s.WaterMM)
}

// FinalMoisture returns the soil moisture at the end of the schedule
func (s Schedule) FinalMoisture() float64 {
	return s.Moisture[len(s.Moisture)-1]
}

// RunPolicy rolls out p in evaluation mode on e from a starting soil
// moisture until the episode ends and returns the resulting schedule.
// The evaluation mode of p is restored before returning.
func RunPolicy(e IrrigationEnv, p agent.Policy, moisture float64) (Schedule,
	error) {
	if !p.IsEval() {
		p.Eval()
		defer p.Train()
	}

	step, err := e.ResetTo(moisture)
	if err != nil {
		return Schedule{}, fmt.Errorf("runpolicy: %w", err)
	}

	schedule := Schedule{Moisture: []float64{e.Moisture()}}
	for !step.Last() {
		action := p.SelectAction(step)
		water := e.Amount(action)

		if step, _, err = e.Step(action); err != nil {
			return Schedule{}, fmt.Errorf("runpolicy: %w", err)
		}

		schedule.WaterMM = append(schedule.WaterMM, water)
		schedule.TotalWaterMM += water
		schedule.Moisture = append(schedule.Moisture, e.Moisture())
	}

	return schedule, nil
}
