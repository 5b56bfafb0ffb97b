// Package experiment implements functionality for running an experiment:
// training an agent online over a number of episodes and rolling out
// a trained policy to produce an irrigation schedule.
package experiment

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/goirrigate/agent"
	env "github.com/samuelfneumann/goirrigate/environment"
	"github.com/samuelfneumann/goirrigate/experiment/tracker"
)

// Experiment outlines structs that can run experiments. The Run()
// method runs all episodes of the experiment, and the RunEpisode()
// method runs a single episode, returning whether or not the last
// episode of the experiment has been run.
//
// Experiments send each TimeStep to Trackers using the Tracker's
// Track() method. New Trackers can be registered with an Experiment
// through the constructor or through the Register() method.
type Experiment interface {
	Run() error
	RunEpisode() (bool, error)
	Register(t tracker.Tracker)
	Save() error
}

// DefaultEpisodes is the default number of training episodes
const DefaultEpisodes = 1000

// Config represents a configuration of an experiment
type Config struct {
	Episodes  int
	AgentConf agent.Config
}

// Validate checks a Config for errors
func (c Config) Validate() error {
	if c.Episodes < 0 {
		return fmt.Errorf("validate: episodes must be non-negative, "+
			"have(%v)", c.Episodes)
	}
	if c.AgentConf == nil {
		return fmt.Errorf("validate: no agent configuration")
	}
	return c.AgentConf.Validate()
}

// CreateExp creates the agent described by the configuration on e and
// returns an online experiment training it
func (c Config) CreateExp(e env.Environment, rng *rand.Rand,
	t ...tracker.Tracker) (*Online, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("createexp: %w", err)
	}

	a, err := c.AgentConf.CreateAgent(e, rng)
	if err != nil {
		return nil, fmt.Errorf("createexp: could not create agent: %w", err)
	}

	return NewOnline(e, a, c.Episodes, t...), nil
}
