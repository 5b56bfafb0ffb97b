package experiment

import (
	"fmt"
	"log"

	"github.com/samuelfneumann/goirrigate/agent"
	env "github.com/samuelfneumann/goirrigate/environment"
	"github.com/samuelfneumann/goirrigate/experiment/checkpointer"
	"github.com/samuelfneumann/goirrigate/experiment/tracker"
	"github.com/samuelfneumann/goirrigate/metrics"
	ts "github.com/samuelfneumann/goirrigate/timestep"
	"github.com/samuelfneumann/goirrigate/utils/progressbar"
)

const (
	// ReportEvery is the number of episodes between progress reports
	ReportEvery = 100

	// LossWindow is the number of updates averaged in progress reports
	LossWindow = 100
)

// Online is an Experiment that trains an agent online for a fixed
// number of episodes. On each step the agent observes the transition
// and then performs a single update.
type Online struct {
	env.Environment
	agent.Agent

	episodes       int
	currentEpisode int
	steps          int

	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	returns       *tracker.Return
	losses        *tracker.Loss

	metrics  *metrics.Training
	progress *progressbar.ProgressBar
	logger   *log.Logger
}

var _ Experiment = (*Online)(nil)

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The episodes parameter determines
// how many episodes the experiment is run for, and t determines which
// additional data is tracked.
func NewOnline(e env.Environment, a agent.Agent, episodes int,
	t ...tracker.Tracker) *Online {
	return &Online{
		Environment: e,
		Agent:       a,
		episodes:    episodes,
		trackers:    t,
		returns:     tracker.NewReturn(""),
		losses:      tracker.NewLoss(""),
	}
}

// Register registers a tracker.Tracker with the Experiment so that
// data generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RegisterCheckpointer registers a checkpointer.Checkpointer which is
// given each TimeStep of the experiment
func (o *Online) RegisterCheckpointer(c checkpointer.Checkpointer) {
	o.checkpointers = append(o.checkpointers, c)
}

// SetMetrics sets the metrics updated during training
func (o *Online) SetMetrics(m *metrics.Training) {
	o.metrics = m
}

// SetProgressBar sets a progress bar which is incremented after each
// episode
func (o *Online) SetProgressBar(p *progressbar.ProgressBar) {
	o.progress = p
}

// SetLogger sets a logger to which progress reports are written
func (o *Online) SetLogger(l *log.Logger) {
	o.logger = l
}

// RunEpisode runs a single episode of the experiment and returns
// whether or not the last episode of the experiment has been run
func (o *Online) RunEpisode() (bool, error) {
	if o.currentEpisode >= o.episodes {
		return true, nil
	}

	step, err := o.Environment.Reset()
	if err != nil {
		return false, fmt.Errorf("runepisode: could not reset: %w", err)
	}
	o.track(step)

	for !step.Last() {
		action := o.Agent.SelectAction(step)
		next, _, err := o.Environment.Step(action)
		if err != nil {
			return false, fmt.Errorf("runepisode: %w", err)
		}
		o.steps++
		if o.metrics != nil {
			o.metrics.ObserveEnvStep()
		}

		if err := o.Agent.Observe(ts.NewTransition(step, action,
			next)); err != nil {
			return false, fmt.Errorf("runepisode: %w", err)
		}
		if err := o.Agent.Step(); err != nil {
			return false, fmt.Errorf("runepisode: %w", err)
		}
		o.recordLoss()

		o.track(next)
		step = next
	}

	o.Agent.EndEpisode()
	o.currentEpisode++
	o.endEpisode(step)

	if err := o.checkpoint(step); err != nil {
		return false, fmt.Errorf("runepisode: %w", err)
	}

	return o.currentEpisode >= o.episodes, nil
}

// Run runs the entire experiment for all episodes
func (o *Online) Run() error {
	for ended := o.currentEpisode >= o.episodes; !ended; {
		var err error
		if ended, err = o.RunEpisode(); err != nil {
			return err
		}
	}

	if o.progress != nil {
		o.progress.Close()
		o.progress = nil
	}
	return nil
}

// recordLoss records the loss of the agent's most recent update, if
// the agent reports one
func (o *Online) recordLoss() {
	reporter, ok := o.Agent.(agent.LossReporter)
	if !ok {
		return
	}

	loss, updated := reporter.Loss()
	if !updated {
		return
	}
	o.losses.Add(loss)
	if o.metrics != nil {
		o.metrics.ObserveGradientStep(loss)
	}
}

// endEpisode updates metrics and progress reports after an episode
func (o *Online) endEpisode(last ts.TimeStep) {
	ret, _ := o.returns.Last()

	if o.metrics != nil {
		epsilon := 0.0
		if e, ok := o.Agent.(interface{ Epsilon() float64 }); ok {
			epsilon = e.Epsilon()
		}
		o.metrics.ObserveEpisode(ret, last.Number, epsilon)
	}

	if o.currentEpisode%ReportEvery != 0 {
		if o.progress != nil {
			o.progress.Increment()
		}
		return
	}

	loss, ok := o.losses.TrailingMean(LossWindow)
	if o.progress != nil {
		if ok {
			o.progress.SetPostfix("return=%.2f loss=%.4f", ret, loss)
		} else {
			o.progress.SetPostfix("return=%.2f", ret)
		}
		o.progress.Increment()
	}
	if o.logger != nil {
		o.logger.Printf("train: episode %d/%d: return=%.2f loss=%.4f "+
			"updates=%d", o.currentEpisode, o.episodes, ret, loss,
			o.losses.Len())
	}
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}

// Episodes returns the number of completed episodes
func (o *Online) Episodes() int {
	return o.currentEpisode
}

// Steps returns the number of environment steps taken
func (o *Online) Steps() int {
	return o.steps
}

// Returns returns the return of each completed episode
func (o *Online) Returns() []float64 {
	return o.returns.Returns()
}

// Losses returns the loss of each update performed by the agent
func (o *Online) Losses() *tracker.Loss {
	return o.losses
}

// track tracks the current timestep by caching its data in each
// Tracker
func (o *Online) track(t ts.TimeStep) {
	o.returns.Track(t)
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}

// checkpoint passes the current timestep to each Checkpointer
func (o *Online) checkpoint(t ts.TimeStep) error {
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return err
		}
	}
	return nil
}
