// Package policy implements policies using neural network function
// approximation with Gorgonia.
package policy

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/goirrigate/network"
	ts "github.com/samuelfneumann/goirrigate/timestep"
	"github.com/samuelfneumann/goirrigate/utils/floatutils"
)

// MultiHeadEGreedyMLP implements an epsilon greedy policy using a
// feedforward neural network/MLP. Given an environment with N actions,
// the neural network will produce N outputs, each predicting the
// value of a distinct action.
//
// Unlike the networks it wraps, a MultiHeadEGreedyMLP owns a VM that
// runs its network, so selecting an action is a single call:
//
//	Get state observation vector:  obs
//	Select an action:              action = policy.SelectAction(obs)
//
// The network must have a batch size of 1. Ties between maximum
// action values are broken toward the lowest action index.
type MultiHeadEGreedyMLP struct {
	net     network.NeuralNet
	vm      G.VM
	epsilon float64
	eval    bool

	rng *rand.Rand
}

// NewMultiHeadEGreedyMLP creates and returns a new MultiHeadEGreedyMLP
// which selects actions with net. Random actions are drawn from rng,
// which may be nil for a policy that is only used greedily.
func NewMultiHeadEGreedyMLP(epsilon float64, net network.NeuralNet,
	rng *rand.Rand) (*MultiHeadEGreedyMLP, error) {
	if net.BatchSize() != 1 {
		return nil, fmt.Errorf("newmultiheadegreedymlp: network must have "+
			"batch size 1, have(%v)", net.BatchSize())
	}
	if epsilon < 0 || epsilon > 1 {
		return nil, fmt.Errorf("newmultiheadegreedymlp: epsilon must be in "+
			"[0, 1], have(%v)", epsilon)
	}
	if rng == nil && epsilon > 0 {
		return nil, fmt.Errorf("newmultiheadegreedymlp: exploring policy " +
			"requires a random number generator")
	}

	return &MultiHeadEGreedyMLP{
		net:     net,
		vm:      G.NewTapeMachine(net.Graph()),
		epsilon: epsilon,
		rng:     rng,
	}, nil
}

// NewGreedyMLP returns a MultiHeadEGreedyMLP with epsilon 0 in
// evaluation mode
func NewGreedyMLP(net network.NeuralNet) (*MultiHeadEGreedyMLP, error) {
	p, err := NewMultiHeadEGreedyMLP(0, net, nil)
	if err != nil {
		return nil, fmt.Errorf("newgreedymlp: %v", err)
	}
	p.Eval()
	return p, nil
}

// Network returns the neural network function approximator that the
// policy uses.
func (e *MultiHeadEGreedyMLP) Network() network.NeuralNet {
	return e.net
}

// SetEpsilon sets the value for epsilon in the epsilon greedy policy.
func (e *MultiHeadEGreedyMLP) SetEpsilon(ε float64) {
	e.epsilon = ε
}

// Epsilon gets the value of epsilon for the policy.
func (e *MultiHeadEGreedyMLP) Epsilon() float64 {
	return e.epsilon
}

// ActionValues runs the network on an observation and returns the
// predicted value of each action
func (e *MultiHeadEGreedyMLP) ActionValues(obs mat.Vector) []float64 {
	if obs.Len() != e.net.Features() {
		panic(fmt.Sprintf("actionvalues: observation has %d features, "+
			"network expects %d", obs.Len(), e.net.Features()))
	}

	input := make([]float64, obs.Len())
	for i := range input {
		input[i] = obs.AtVec(i)
	}
	if err := e.net.SetInput(input); err != nil {
		panic(fmt.Sprintf("actionvalues: could not set input: %v", err))
	}
	if err := e.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("actionvalues: could not run network: %v", err))
	}
	defer e.vm.Reset()

	return append([]float64{}, e.net.Output()...)
}

// SelectAction selects an action in the state observed at a timestep.
// With probability epsilon a uniformly random action is selected
// when in training mode, and otherwise the action of maximum value is
// selected.
func (e *MultiHeadEGreedyMLP) SelectAction(t ts.TimeStep) int {
	if !e.eval && e.epsilon > 0 && e.rng.Float64() < e.epsilon {
		return e.rng.Intn(e.numActions())
	}
	return floatutils.ArgMax(e.ActionValues(t.Observation))
}

// Eval sets the policy to evaluation mode, where actions are always
// selected greedily
func (e *MultiHeadEGreedyMLP) Eval() {
	e.eval = true
}

// Train sets the policy to training mode
func (e *MultiHeadEGreedyMLP) Train() {
	e.eval = false
}

// IsEval returns whether the policy is in evaluation mode
func (e *MultiHeadEGreedyMLP) IsEval() bool {
	return e.eval
}

// Close closes the policy's VM
func (e *MultiHeadEGreedyMLP) Close() error {
	return e.vm.Close()
}

// numActions returns the number of actions that the policy chooses
// between.
func (e *MultiHeadEGreedyMLP) numActions() int {
	return e.net.Outputs()
}
