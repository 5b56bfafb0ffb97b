package experiment

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/samuelfneumann/goirrigate/agent/deepq"
	"github.com/samuelfneumann/goirrigate/environment/soil"
	"github.com/samuelfneumann/goirrigate/experiment/checkpointer"
	"github.com/samuelfneumann/goirrigate/experiment/tracker"
	"github.com/samuelfneumann/goirrigate/forecast"
	"github.com/samuelfneumann/goirrigate/metrics"
	"github.com/samuelfneumann/goirrigate/network"
	ts "github.com/samuelfneumann/goirrigate/timestep"
	"github.com/samuelfneumann/goirrigate/utils/progressbar"
)

func newSoil(t *testing.T, rain, et float64, days int) *soil.Soil {
	t.Helper()

	f, err := forecast.Constant(rain, et, days)
	if err != nil {
		t.Fatal(err)
	}
	s, err := soil.New(f, 3, days, soil.DefaultConfig(), rand.NewSource(1))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func smallConfig(t *testing.T, batch int) deepq.Config {
	t.Helper()

	c := deepq.DefaultConfig()
	c.HiddenLayers = []int{16}
	c.Biases = []bool{true}
	c.Activations = []*network.Activation{network.ReLU()}
	c.BatchSize = batch
	c.ReplayCapacity = 1000

	c, err := c.WithStepSize(1e-2)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func newAgent(t *testing.T, e *soil.Soil, batch int) *deepq.DoubleDQN {
	t.Helper()

	d, err := deepq.New(e, smallConfig(t, batch), rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// constant is a Policy that always selects the same action
type constant struct {
	action int
	eval   bool
}

func (c *constant) SelectAction(ts.TimeStep) int { return c.action }
func (c *constant) Eval()                        { c.eval = true }
func (c *constant) Train()                       { c.eval = false }
func (c *constant) IsEval() bool                 { return c.eval }

func TestRunPolicyUntrained(t *testing.T) {
	e := newSoil(t, 1, 4, 10)
	d := newAgent(t, e, 8)

	p, err := d.Policy()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	schedule, err := RunPolicy(e, p, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	if schedule.Days() == 0 || schedule.Days() > e.Horizon() {
		t.Fatalf("days: want in [1, %v] have(%v)", e.Horizon(),
			schedule.Days())
	}
	if len(schedule.Moisture) != schedule.Days()+1 {
		t.Errorf("moisture: want(%v) values have(%v)", schedule.Days()+1,
			len(schedule.Moisture))
	}
	if schedule.Moisture[0] != 0.5 {
		t.Errorf("moisture: want initial 0.5 have(%v)", schedule.Moisture[0])
	}
	if total := floats.Sum(schedule.WaterMM); !scalar.EqualWithinAbs(total,
		schedule.TotalWaterMM, 1e-9) {
		t.Errorf("total water: want(%v) have(%v)", total,
			schedule.TotalWaterMM)
	}
	if schedule.FinalMoisture() != e.Moisture() {
		t.Errorf("final moisture: want(%v) have(%v)", e.Moisture(),
			schedule.FinalMoisture())
	}
}

func TestRunPolicyRestoresMode(t *testing.T) {
	e := newSoil(t, 0, 0, 5)
	p := &constant{action: 4}

	schedule, err := RunPolicy(e, p, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if p.IsEval() {
		t.Error("runpolicy: training mode should be restored")
	}
	if schedule.Days() != 5 || schedule.TotalWaterMM != 10 {
		t.Errorf("schedule: want(5 days, 10 mm) have(%v days, %v mm)",
			schedule.Days(), schedule.TotalWaterMM)
	}

	p.Eval()
	if _, err := RunPolicy(e, p, 0.5); err != nil {
		t.Fatal(err)
	}
	if !p.IsEval() {
		t.Error("runpolicy: evaluation mode should be kept")
	}
}

func TestRunPolicyWilt(t *testing.T) {
	e := newSoil(t, 0, 0, 7)

	schedule, err := RunPolicy(e, &constant{}, 0.15)
	if err != nil {
		t.Fatal(err)
	}
	if schedule.Days() != 1 || len(schedule.Moisture) != 2 {
		t.Errorf("wilt: want(1 day, 2 moistures) have(%v, %v)",
			schedule.Days(), len(schedule.Moisture))
	}

	if _, err := RunPolicy(e, &constant{}, 2); err == nil {
		t.Error("runpolicy: invalid starting moisture should fail")
	}
}

func TestOnlineWithoutUpdates(t *testing.T) {
	e := newSoil(t, 1, 4, 3)
	d := newAgent(t, e, 128)

	o := NewOnline(e, d, 2)
	if err := o.Run(); err != nil {
		t.Fatal(err)
	}

	if o.Episodes() != 2 || len(o.Returns()) != 2 {
		t.Errorf("episodes: want(2) have(%v, %v returns)", o.Episodes(),
			len(o.Returns()))
	}
	if o.Losses().Len() != 0 || d.GradientSteps() != 0 {
		t.Errorf("updates: want(0) have(%v)", o.Losses().Len())
	}
	if _, ok := o.Losses().TrailingMean(LossWindow); ok {
		t.Error("loss: no updates should report no trailing loss")
	}

	if ended, err := o.RunEpisode(); !ended || err != nil {
		t.Errorf("runepisode: finished experiment should report ended, "+
			"have(%v, %v)", ended, err)
	}
}

func TestOnlineTrains(t *testing.T) {
	dir := t.TempDir()
	e := newSoil(t, 1, 4, 10)
	d := newAgent(t, e, 8)
	m := metrics.NewTraining("test")

	var out bytes.Buffer
	lengths := tracker.NewEpisodeLength(filepath.Join(dir, "lengths.bin"))
	o := NewOnline(e, d, 20, lengths)
	o.SetMetrics(m)
	o.SetProgressBar(progressbar.NewProgressBar(&out, 20, 20))

	net, ok := d.Network().(checkpointer.Serializable)
	if !ok {
		t.Fatal("network should be serializable")
	}
	o.RegisterCheckpointer(checkpointer.NewNEpisode(5, net,
		checkpointer.FilenameEnumerator(0, filepath.Join(dir, "net"), ".bin")))

	start := d.Epsilon()
	if err := o.Run(); err != nil {
		t.Fatal(err)
	}

	if o.Losses().Len() == 0 || o.Losses().Len() != d.GradientSteps() {
		t.Errorf("losses: want(%v) have(%v)", d.GradientSteps(),
			o.Losses().Len())
	}
	if d.Epsilon() >= start {
		t.Errorf("epsilon: should decay per episode, have(%v)", d.Epsilon())
	}

	if n := testutil.ToFloat64(m.EpisodesTotal); n != 20 {
		t.Errorf("metrics: want(20) episodes have(%v)", n)
	}
	if n := testutil.ToFloat64(m.EnvStepsTotal); int(n) != o.Steps() {
		t.Errorf("metrics: want(%v) steps have(%v)", o.Steps(), n)
	}
	if n := testutil.ToFloat64(m.GradientStepsTotal); int(n) !=
		d.GradientSteps() {
		t.Errorf("metrics: want(%v) gradient steps have(%v)",
			d.GradientSteps(), n)
	}
	if out.Len() == 0 {
		t.Error("progress: nothing was drawn")
	}

	total := 0
	for _, l := range lengths.Lengths() {
		total += l
	}
	if total != o.Steps() {
		t.Errorf("lengths: want(%v) total days have(%v)", o.Steps(), total)
	}
	if err := o.Save(); err != nil {
		t.Fatal(err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "net*.bin"))
	if len(files) != 4 {
		t.Errorf("checkpoints: want(4) have(%v)", len(files))
	}

	loaded := &network.MultiHeadMLP{}
	if err := checkpointer.Load(files[0], loaded); err != nil {
		t.Fatal(err)
	}
	if loaded.Outputs() != d.Network().Outputs() {
		t.Errorf("load: want(%v) outputs have(%v)", d.Network().Outputs(),
			loaded.Outputs())
	}
}

func TestCreateExp(t *testing.T) {
	e := newSoil(t, 1, 4, 3)

	c := Config{Episodes: 1, AgentConf: smallConfig(t, 4)}
	o, err := c.CreateExp(e, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Run(); err != nil {
		t.Fatal(err)
	}
	if o.Episodes() != 1 {
		t.Errorf("episodes: want(1) have(%v)", o.Episodes())
	}

	if _, err := (Config{Episodes: -1, AgentConf: c.AgentConf}).CreateExp(e,
		rand.New(rand.NewSource(1))); err == nil {
		t.Error("createexp: negative episodes should be rejected")
	}
	if _, err := (Config{Episodes: 1}).CreateExp(e,
		rand.New(rand.NewSource(1))); err == nil {
		t.Error("createexp: missing agent configuration should be rejected")
	}
}
