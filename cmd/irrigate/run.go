package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"golang.org/x/exp/rand"

	"github.com/samuelfneumann/goirrigate/agent/deepq"
	"github.com/samuelfneumann/goirrigate/environment/soil"
	"github.com/samuelfneumann/goirrigate/experiment"
	"github.com/samuelfneumann/goirrigate/experiment/checkpointer"
	"github.com/samuelfneumann/goirrigate/experiment/tracker"
	"github.com/samuelfneumann/goirrigate/forecast"
	"github.com/samuelfneumann/goirrigate/metrics"
	"github.com/samuelfneumann/goirrigate/plot"
	"github.com/samuelfneumann/goirrigate/utils/floatutils"
	"github.com/samuelfneumann/goirrigate/utils/progressbar"
)

// lossTail is the number of final updates averaged in the result
const lossTail = 500

// CLI holds the command line flags of irrigate
type CLI struct {
	CropNeed        float64 `name:"crop-need" required:"" help:"Crop need (e.g., 3.0)."`
	ET              string  `name:"et" required:"" help:"ET time-series: '5,5,5' or path to .json/.csv."`
	Rain            string  `name:"rain" help:"Rain time-series (optional): '0,0,0' or path to .json/.csv."`
	InitialMoisture float64 `name:"initial-moisture" default:"0.5" help:"Initial soil moisture fraction [0..1]."`
	MaxDays         int     `name:"max-days" default:"0" help:"Simulation days (0 for the length of the ET series)."`

	Episodes  int     `default:"1000" help:"Training episodes."`
	BatchSize int     `name:"batch-size" default:"128" help:"Batch size."`
	Tau       float64 `default:"0.005" help:"Soft target update factor."`
	Gamma     float64 `default:"0.99" help:"Discount factor."`
	LR        float64 `name:"lr" default:"3e-4" help:"Learning rate."`
	Seed      int64   `default:"-1" help:"Random seed (negative to seed from the clock)."`

	SaveModel       string `name:"save-model" help:"Path to save the trained policy network (gob)."`
	CheckpointEvery int    `name:"checkpoint-every" default:"0" help:"Also checkpoint the learned network every N episodes next to --save-model (0 to disable)."`
	SavePlot        string `name:"save-plot" help:"Path to save the moisture plot (PNG)."`
	SaveLossChart   string `name:"save-loss-chart" help:"Path to save the training loss chart (HTML)."`
	SaveReturns     string `name:"save-returns" help:"Path to save the training episode returns (gob)."`
	SaveLengths     string `name:"save-lengths" help:"Path to save the training episode lengths (gob)."`
	MetricsFile     string `name:"metrics-file" help:"Path to write training metrics in the Prometheus text format."`
	JSONOut         string `name:"json-out" help:"Path to write the JSON result; defaults to stdout."`
	NoProgress      bool   `name:"no-progress" help:"Disable the progress bar."`
}

// Result is the JSON document describing a learned irrigation schedule
type Result struct {
	ScheduleMM     []float64 `json:"schedule_mm"`
	TotalWaterMM   float64   `json:"total_water_mm"`
	FinalMoisture  float64   `json:"final_moisture"`
	AvgLossLast500 *float64  `json:"avg_loss_last_500"`
	Episodes       int       `json:"episodes"`
	Days           int       `json:"days"`
	RunID          string    `json:"run_id"`
}

// Validate checks the flags for errors
func (c *CLI) Validate() error {
	if c.InitialMoisture < 0 || c.InitialMoisture > 1 {
		return fmt.Errorf("--initial-moisture must be in [0, 1], have(%v)",
			c.InitialMoisture)
	}
	if c.Episodes < 0 {
		return fmt.Errorf("--episodes must be non-negative, have(%v)",
			c.Episodes)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("--batch-size must be positive, have(%v)",
			c.BatchSize)
	}
	if c.CheckpointEvery > 0 && c.SaveModel == "" {
		return fmt.Errorf("--checkpoint-every requires --save-model")
	}
	return nil
}

// Run trains an agent, rolls out its greedy policy, and writes the
// result as JSON to stdout or the --json-out file. Progress is reported
// to stderr.
func (c *CLI) Run(stdout, stderr io.Writer) error {
	if err := c.Validate(); err != nil {
		return err
	}

	f, err := c.forecast()
	if err != nil {
		return err
	}

	seed := uint64(c.Seed)
	if c.Seed < 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewSource(seed))

	envConf := soil.DefaultConfig()
	env, err := soil.New(f, c.CropNeed, f.Len(), envConf, rng)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	agentConf := deepq.DefaultConfig()
	agentConf.BatchSize = c.BatchSize
	agentConf.Tau = c.Tau
	agentConf.Gamma = c.Gamma
	if agentConf, err = agentConf.WithStepSize(c.LR); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	var trackers []tracker.Tracker
	if c.SaveReturns != "" {
		trackers = append(trackers, tracker.NewReturn(c.SaveReturns))
	}
	if c.SaveLengths != "" {
		trackers = append(trackers, tracker.NewEpisodeLength(c.SaveLengths))
	}

	expConf := experiment.Config{Episodes: c.Episodes, AgentConf: agentConf}
	exp, err := expConf.CreateExp(env, rng, trackers...)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	learner, ok := exp.Agent.(*deepq.DoubleDQN)
	if !ok {
		return fmt.Errorf("run: agent %T is not a Double DQN", exp.Agent)
	}
	defer learner.Close()

	runID := uuid.NewString()
	m := metrics.NewTraining(runID)
	exp.SetMetrics(m)

	if !c.NoProgress && isTerminal(stdout) {
		exp.SetProgressBar(progressbar.NewProgressBar(stderr, 40, c.Episodes))
	} else {
		exp.SetLogger(log.New(stderr, "", log.LstdFlags))
	}

	if c.CheckpointEvery > 0 {
		net, ok := learner.Network().(checkpointer.Serializable)
		if !ok {
			return fmt.Errorf("run: network %T cannot be checkpointed",
				learner.Network())
		}
		ext := filepath.Ext(c.SaveModel)
		exp.RegisterCheckpointer(checkpointer.NewNEpisode(c.CheckpointEvery,
			net, checkpointer.FilenameEnumerator(0,
				strings.TrimSuffix(c.SaveModel, ext)+"-", ext)))
	}

	if err := exp.Run(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := exp.Save(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if exp.Losses().Len() == 0 {
		fmt.Fprintf(stderr, "Warning: replay buffer never held a full "+
			"batch of %d transitions, the policy is untrained\n", c.BatchSize)
	}

	policy, err := learner.Policy()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer policy.Close()

	schedule, err := experiment.RunPolicy(env, policy, c.InitialMoisture)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if c.SaveModel != "" {
		net, ok := policy.Network().(checkpointer.Serializable)
		if !ok {
			return fmt.Errorf("run: network %T cannot be saved",
				policy.Network())
		}
		if err := checkpointer.Save(c.SaveModel, net); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	if c.SavePlot != "" {
		chart := plot.NewMoistureChart(schedule.Moisture, envConf.WiltingPoint,
			envConf.Saturation)
		if err := chart.Save(c.SavePlot); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	if c.SaveLossChart != "" {
		chart := plot.NewLossChart(exp.Losses().Losses(),
			experiment.LossWindow)
		if err := chart.Save(c.SaveLossChart); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	if c.MetricsFile != "" {
		if err := m.WriteTextfile(c.MetricsFile); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}

	result := Result{
		ScheduleMM:    schedule.WaterMM,
		TotalWaterMM:  floatutils.Round(schedule.TotalWaterMM, 3),
		FinalMoisture: floatutils.Round(schedule.FinalMoisture(), 4),
		Episodes:      c.Episodes,
		Days:          f.Len(),
		RunID:         runID,
	}
	if result.ScheduleMM == nil {
		result.ScheduleMM = []float64{}
	}
	if loss, ok := exp.Losses().TrailingMean(lossTail); ok {
		result.AvgLossLast500 = &loss
	}

	return c.write(stdout, result)
}

// forecast builds the forecast described by the flags
func (c *CLI) forecast() (forecast.Forecast, error) {
	et, err := forecast.ParseSeries(c.ET)
	if err != nil {
		return forecast.Forecast{}, fmt.Errorf("--et: %w", err)
	}

	var rain []float64
	if c.Rain != "" {
		if rain, err = forecast.ParseSeries(c.Rain); err != nil {
			return forecast.Forecast{}, fmt.Errorf("--rain: %w", err)
		}
	}

	f, err := forecast.New(et, rain, c.MaxDays)
	if err != nil {
		return forecast.Forecast{}, fmt.Errorf("forecast: %w", err)
	}
	return f, nil
}

// write writes the result as JSON to the --json-out file, or to stdout
// followed by a newline
func (c *CLI) write(stdout io.Writer, result Result) error {
	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if c.JSONOut != "" {
		if err := os.WriteFile(c.JSONOut, out, 0o644); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		return nil
	}

	_, err = fmt.Fprintln(stdout, string(out))
	return err
}

// isTerminal returns whether w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
