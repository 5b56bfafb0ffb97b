package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single (state, action, reward, next state, done)
// tuple of experience. A Transition does not own its vectors; an
// experience replay buffer copies them on insertion.
type Transition struct {
	State     mat.Vector
	Action    int
	Reward    float64
	NextState mat.Vector
	Done      bool
}

// NewTransition creates a Transition from the TimeStep an action was
// taken in and the TimeStep that the action led to.
func NewTransition(step TimeStep, action int, nextStep TimeStep) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		NextState: nextStep.Observation,
		Done:      nextStep.Last(),
	}
}

func (t Transition) String() string {
	str := "Transition | Action: %v  |  Reward:  %.2f  |  Done: %v"

	return fmt.Sprintf(str, t.Action, t.Reward, t.Done)
}
