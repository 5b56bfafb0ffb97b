// Package agent defines an agent interface
package agent

import (
	"github.com/samuelfneumann/goirrigate/network"
	ts "github.com/samuelfneumann/goirrigate/timestep"
)

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. The Policy chooses which actions
// are taken, and the Learner uses these actions to update the Policy.
type Agent interface {
	Learner
	Policy
}

// A Closer is an agent that must be closed after it is done learning
type Closer interface {
	Agent
	Close() error
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Step performs a single update to the learner. If the learner
	// does not yet have enough experience to update, Step does nothing.
	Step() error

	// Observe records a transition of experience
	Observe(t ts.Transition) error

	// EndEpisode performs cleanup at the end of an episode
	EndEpisode()
}

// LossReporter is a Learner which can report the loss of its most
// recent update
type LossReporter interface {
	Learner

	// Loss returns the loss of the most recent call to Step and
	// whether or not that call updated the learner
	Loss() (float64, bool)
}

// Policy represents a policy that an agent can have.
//
// Policies determine how agents select actions. Agents usually have a
// target and behaviour policy. For a given agent, the Policy and Learner
// should have pointers to the same weights so that any changes the learner
// makes to the weights are reflected in the actions the Policy chooses
type Policy interface {
	SelectAction(t ts.TimeStep) int
	Eval()        // Set policy to evaluation mode
	Train()       // Set policy to training mode
	IsEval() bool // Indicates if in evaluation mode
}

// NNPolicy represents a policy that uses neural network function
// approximation.
type NNPolicy interface {
	Policy
	Network() network.NeuralNet
	Close() error
}

// EGreedyNNPolicy implements an epsilon greedy policy using neural
// network function approximation. In evaluation mode the policy is
// greedy.
type EGreedyNNPolicy interface {
	NNPolicy
	SetEpsilon(float64)
	Epsilon() float64
}
