package policy

import (
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/goirrigate/network"
	ts "github.com/samuelfneumann/goirrigate/timestep"
)

// newLinear returns a 2-feature, 3-action linear network whose action
// values are (x0, x0, x1)
func newLinear(t *testing.T) network.NeuralNet {
	t.Helper()

	net, err := network.NewMultiHeadMLP(2, 1, 3, G.NewGraph(), nil, nil,
		G.Zeroes(), nil)
	if err != nil {
		t.Fatal(err)
	}
	copy(net.Learnables()[0].Value().Data().([]float64),
		[]float64{1, 1, 0, 0, 0, 1})
	return net
}

func step(obs ...float64) ts.TimeStep {
	return ts.New(ts.Mid, 0, mat.NewVecDense(len(obs), obs), 1)
}

func TestGreedyTiesBreakLow(t *testing.T) {
	p, err := NewGreedyMLP(newLinear(t))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	cases := []struct {
		obs  []float64
		want int
	}{
		{[]float64{1, 0}, 0},
		{[]float64{0, 1}, 2},
		{[]float64{0, 0}, 0},
		{[]float64{2, 2}, 0},
	}
	for _, c := range cases {
		if a := p.SelectAction(step(c.obs...)); a != c.want {
			t.Errorf("selectaction(%v): want(%v) have(%v)", c.obs, c.want, a)
		}
	}

	values := p.ActionValues(mat.NewVecDense(2, []float64{3, -1}))
	if values[0] != 3 || values[1] != 3 || values[2] != -1 {
		t.Errorf("actionvalues: want([3 3 -1]) have(%v)", values)
	}
}

func TestExploration(t *testing.T) {
	p, err := NewMultiHeadEGreedyMLP(1.0, newLinear(t),
		rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	counts := make([]int, 3)
	for i := 0; i < 300; i++ {
		counts[p.SelectAction(step(1, 0))]++
	}
	for a, n := range counts {
		if n == 0 {
			t.Errorf("epsilon 1: action %d never selected", a)
		}
	}

	p.Eval()
	for i := 0; i < 20; i++ {
		if a := p.SelectAction(step(0, 1)); a != 2 {
			t.Fatalf("eval mode: want greedy action 2, have(%v)", a)
		}
	}
	p.Train()
	if p.IsEval() {
		t.Error("train: policy should leave evaluation mode")
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := NewMultiHeadEGreedyMLP(0.5, newLinear(t), nil); err == nil {
		t.Error("exploring policy without an rng should be rejected")
	}
	if _, err := NewMultiHeadEGreedyMLP(1.5, newLinear(t),
		rand.New(rand.NewSource(1))); err == nil {
		t.Error("epsilon outside [0, 1] should be rejected")
	}

	batched, _ := network.NewMultiHeadMLP(2, 4, 3, G.NewGraph(), nil, nil,
		G.Zeroes(), nil)
	if _, err := NewGreedyMLP(batched); err == nil {
		t.Error("batched network should be rejected")
	}
}
