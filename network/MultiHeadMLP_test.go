package network

import (
	"bytes"
	"encoding/gob"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/goirrigate/initwfn"
)

func newNet(t *testing.T, batch int, seed uint64) *MultiHeadMLP {
	t.Helper()

	init, _ := initwfn.NewGlorotU(1.0)
	net, err := NewMultiHeadMLP(3, batch, 4, G.NewGraph(), []int{8, 8},
		[]bool{true, true}, init.InitWFn(rand.NewSource(seed)),
		[]*Activation{ReLU(), ReLU()})
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func forward(t *testing.T, net NeuralNet, input []float64) []float64 {
	t.Helper()

	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()

	if err := net.SetInput(input); err != nil {
		t.Fatal(err)
	}
	if err := vm.RunAll(); err != nil {
		t.Fatal(err)
	}
	return append([]float64{}, net.Output()...)
}

func TestLinearForward(t *testing.T) {
	net, err := NewMultiHeadMLP(2, 1, 2, G.NewGraph(), nil, nil,
		G.Zeroes(), nil)
	if err != nil {
		t.Fatal(err)
	}

	learnables := net.Learnables()
	if len(learnables) != 2 {
		t.Fatalf("learnables: want(2) have(%v)", len(learnables))
	}
	copy(learnables[0].Value().Data().([]float64), []float64{1, 2, 3, 4})
	copy(learnables[1].Value().Data().([]float64), []float64{0.5, -0.5})

	out := forward(t, net, []float64{1, 1})
	if want := []float64{4.5, 5.5}; !floats.Equal(out, want) {
		t.Errorf("output: want(%v) have(%v)", want, out)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := NewMultiHeadMLP(3, 1, 4, G.NewGraph(), []int{8},
		[]bool{true}, G.Zeroes(), nil); err == nil {
		t.Error("missing activations should be rejected")
	}
	if _, err := NewMultiHeadMLP(3, 1, 4, G.NewGraph(), []int{8},
		nil, G.Zeroes(), []*Activation{ReLU()}); err == nil {
		t.Error("missing biases should be rejected")
	}
	if _, err := NewMultiHeadMLP(0, 1, 4, G.NewGraph(), nil, nil,
		G.Zeroes(), nil); err == nil {
		t.Error("zero features should be rejected")
	}
}

func TestSeededNetsAreEqual(t *testing.T) {
	input := []float64{0.5, -1, 2}

	a := forward(t, newNet(t, 1, 7), input)
	b := forward(t, newNet(t, 1, 7), input)
	if !floats.Equal(a, b) {
		t.Errorf("equal seeds: have(%v) and (%v)", a, b)
	}

	c := forward(t, newNet(t, 1, 8), input)
	if floats.Equal(a, c) {
		t.Error("different seeds produced the same network")
	}
}

func TestSetAndClone(t *testing.T) {
	input := []float64{0.1, 0.2, 0.3}
	src := newNet(t, 1, 1)
	dest := newNet(t, 1, 2)

	if err := dest.Set(src); err != nil {
		t.Fatal(err)
	}
	want := forward(t, src, input)
	if have := forward(t, dest, input); !floats.Equal(want, have) {
		t.Errorf("set: want(%v) have(%v)", want, have)
	}

	clone, err := src.CloneWithBatch(2)
	if err != nil {
		t.Fatal(err)
	}
	if clone.BatchSize() != 2 || clone.Graph() == src.Graph() {
		t.Fatal("clonewithbatch: clone should have its own graph and batch")
	}
	have := forward(t, clone, append(append([]float64{}, input...), input...))
	if !floats.Equal(have[:4], want) || !floats.Equal(have[4:], want) {
		t.Errorf("clone: want(%v) per row have(%v)", want, have)
	}

	// Set copies, so training the source does not move the clone
	src.Learnables()[0].Value().Data().([]float64)[0] += 1
	if clone.Learnables()[0].Value().Data().([]float64)[0] ==
		src.Learnables()[0].Value().Data().([]float64)[0] {
		t.Error("set: weights should be copied, not shared")
	}
}

func TestPolyak(t *testing.T) {
	src := newNet(t, 1, 1)
	dest := newNet(t, 1, 2)
	before := append([]float64{},
		dest.Learnables()[0].Value().Data().([]float64)...)

	if err := dest.Polyak(src, 0); err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(before, dest.Learnables()[0].Value().Data().([]float64)) {
		t.Error("polyak: tau = 0 should not change weights")
	}

	for i := 0; i < 2000; i++ {
		if err := dest.Polyak(src, 0.005); err != nil {
			t.Fatal(err)
		}
	}
	for i, node := range dest.Learnables() {
		want := src.Learnables()[i].Value().Data().([]float64)
		have := node.Value().Data().([]float64)
		if !floats.EqualApprox(want, have, 1e-3) {
			t.Errorf("polyak: layer %d did not converge to the source", i)
		}
	}

	if err := dest.Polyak(src, 1); err != nil {
		t.Fatal(err)
	}
	for i, node := range dest.Learnables() {
		want := src.Learnables()[i].Value().Data().([]float64)
		if !floats.Equal(want, node.Value().Data().([]float64)) {
			t.Errorf("polyak: tau = 1 should copy layer %d", i)
		}
	}

	if err := dest.Polyak(src, 1.5); err == nil {
		t.Error("polyak: tau outside [0, 1] should be rejected")
	}
}

func TestGob(t *testing.T) {
	input := []float64{1, 0, -1}
	net := newNet(t, 1, 3)
	want := forward(t, net, input)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(net); err != nil {
		t.Fatal(err)
	}

	var decoded MultiHeadMLP
	if err := gob.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	if have := forward(t, &decoded, input); !floats.Equal(want, have) {
		t.Errorf("gob: want(%v) have(%v)", want, have)
	}
}
