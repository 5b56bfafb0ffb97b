package timestep

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewTransition(t *testing.T) {
	obs := mat.NewVecDense(2, []float64{0.5, 0.0})
	nextObs := mat.NewVecDense(2, []float64{0.4, -0.1})

	step := New(First, 0, obs, 0)
	next := New(Last, -3.5, nextObs, 1)

	tr := NewTransition(step, 4, next)
	if tr.Action != 4 {
		t.Errorf("action: want(4) have(%v)", tr.Action)
	}
	if tr.Reward != -3.5 {
		t.Errorf("reward: want(-3.5) have(%v)", tr.Reward)
	}
	if !tr.Done {
		t.Error("done: transition into a Last timestep should be done")
	}
	if tr.State != obs || tr.NextState != nextObs {
		t.Error("states: transition should reference the timestep observations")
	}
}

func TestStepType(t *testing.T) {
	step := New(Mid, 0, nil, 3)
	if step.First() || step.Last() || !step.Mid() {
		t.Errorf("step type: want(Mid) have(%v)", step.StepType)
	}
	if got := step.StepType.String(); got != "Mid" {
		t.Errorf("string: want(Mid) have(%v)", got)
	}
}
