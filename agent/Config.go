package agent

import (
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/goirrigate/environment"
)

// Config represents a configuration for creating an agent
type Config interface {
	// CreateAgent creates the agent that the config describes. All
	// randomness of the agent is drawn from rng.
	CreateAgent(env environment.Environment, rng *rand.Rand) (Agent, error)

	// Validate returns an error describing whether or not the
	// configuration is valid or not.
	Validate() error
}
