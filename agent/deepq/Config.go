package deepq

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/goirrigate/agent"
	env "github.com/samuelfneumann/goirrigate/environment"
	"github.com/samuelfneumann/goirrigate/initwfn"
	"github.com/samuelfneumann/goirrigate/network"
	"github.com/samuelfneumann/goirrigate/solver"
)

// Config implements a configuration for a Double DQN agent
type Config struct {
	HiddenLayers []int                 // Layer sizes in neural net
	Biases       []bool                // Whether each layer should have a bias
	Activations  []*network.Activation // Activation of each layer
	Solver       *solver.Solver        // Solver for learning weights

	// Initialization algorithm for weights
	InitWFn *initwfn.InitWFn

	// Experience replay parameters
	BatchSize      int
	ReplayCapacity int

	Gamma       float64 // Discount factor
	Tau         float64 // Polyak averaging constant for target updates
	MaxGradNorm float64 // Ceiling on the global gradient norm, <= 0 for none

	// Behaviour policy exploration, decayed once per episode down to
	// EpsilonMin
	EpsilonStart float64
	EpsilonMin   float64
	EpsilonDecay float64
}

// DefaultConfig returns the default Double DQN configuration: a
// 128x128 ReLU network trained with Adam using a step size of 3e-4.
func DefaultConfig() Config {
	init, err := initwfn.NewGlorotU(math.Sqrt2)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: %v", err))
	}

	// The loss is a batch mean, so the solver does not rescale gradients
	adam, err := solver.NewDefaultAdam(3e-4, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultconfig: %v", err))
	}

	return Config{
		HiddenLayers: []int{128, 128},
		Biases:       []bool{true, true},
		Activations:  []*network.Activation{network.ReLU(), network.ReLU()},
		Solver:       adam,
		InitWFn:      init,

		BatchSize:      128,
		ReplayCapacity: 100_000,

		Gamma:       0.99,
		Tau:         0.005,
		MaxGradNorm: 1.0,

		EpsilonStart: 1.0,
		EpsilonMin:   0.05,
		EpsilonDecay: 0.9995,
	}
}

// WithStepSize returns a copy of the Config whose solver is an Adam
// solver with the given step size
func (c Config) WithStepSize(stepSize float64) (Config, error) {
	adam, err := solver.NewDefaultAdam(stepSize, 1)
	if err != nil {
		return c, fmt.Errorf("withstepsize: %w", err)
	}
	c.Solver = adam
	return c, nil
}

// Validate checks a Config to ensure it is a valid configuration of a
// Double DQN agent.
func (c Config) Validate() error {
	if len(c.HiddenLayers) != len(c.Biases) {
		return fmt.Errorf("validate: invalid number of biases\n\twant(%v)"+
			"\n\thave(%v)", len(c.HiddenLayers), len(c.Biases))
	}
	if len(c.HiddenLayers) != len(c.Activations) {
		return fmt.Errorf("validate: invalid number of activations\n\t"+
			"want(%v)\n\thave(%v)", len(c.HiddenLayers), len(c.Activations))
	}
	for i, size := range c.HiddenLayers {
		if size < 1 {
			return fmt.Errorf("validate: hidden layer %d must have at least "+
				"one unit, have(%v)", i, size)
		}
	}
	if c.Solver == nil || c.Solver.Config == nil {
		return fmt.Errorf("validate: no solver")
	}
	if c.InitWFn == nil || c.InitWFn.Config == nil {
		return fmt.Errorf("validate: no weight initializer")
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive, have(%v)",
			c.BatchSize)
	}
	if c.ReplayCapacity < c.BatchSize {
		return fmt.Errorf("validate: replay capacity (%v) must be at least "+
			"the batch size (%v)", c.ReplayCapacity, c.BatchSize)
	}

	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("validate: gamma must be in [0, 1], have(%v)",
			c.Gamma)
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: tau must be in (0, 1], have(%v)", c.Tau)
	}

	if c.EpsilonStart < 0 || c.EpsilonStart > 1 {
		return fmt.Errorf("validate: starting epsilon must be in [0, 1], "+
			"have(%v)", c.EpsilonStart)
	}
	if c.EpsilonMin < 0 || c.EpsilonMin > c.EpsilonStart {
		return fmt.Errorf("validate: epsilon floor must be in [0, %v], "+
			"have(%v)", c.EpsilonStart, c.EpsilonMin)
	}
	if c.EpsilonDecay <= 0 || c.EpsilonDecay > 1 {
		return fmt.Errorf("validate: epsilon decay must be in (0, 1], "+
			"have(%v)", c.EpsilonDecay)
	}

	return nil
}

// CreateAgent creates a new Double DQN agent based on the configuration
func (c Config) CreateAgent(e env.Environment,
	rng *rand.Rand) (agent.Agent, error) {
	return New(e, c, rng)
}
