// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/goirrigate/timestep"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() mat.Vector
}

// Environment implements a simulated environment with discrete actions
// enumerated from 0.
type Environment interface {
	// Reset resets the environment between episodes, returning the
	// first TimeStep of the next episode
	Reset() (ts.TimeStep, error)

	// Step takes one environmental step given an action index, returning
	// the next TimeStep and whether or not the episode has ended
	Step(action int) (ts.TimeStep, bool, error)

	ObservationSpec() Spec
	ActionSpec() Spec
}
