package environment

import (
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func TestUniformStarter(t *testing.T) {
	bounds := []r1.Interval{{Min: 0.3, Max: 0.7}}
	s := NewUniformStarter(bounds, rand.NewSource(7))

	for i := 0; i < 1000; i++ {
		start := s.Start()
		if start.Len() != 1 {
			t.Fatalf("start: want(1) features have(%v)", start.Len())
		}
		if v := start.AtVec(0); v < 0.3 || v > 0.7 {
			t.Fatalf("start: %v outside [0.3, 0.7]", v)
		}
	}
}

func TestUniformStarterSeeded(t *testing.T) {
	bounds := []r1.Interval{{Min: 0, Max: 1}, {Min: -1, Max: 1}}
	a := NewUniformStarter(bounds, rand.NewSource(42))
	b := NewUniformStarter(bounds, rand.NewSource(42))

	for i := 0; i < 10; i++ {
		va, vb := a.Start(), b.Start()
		for j := 0; j < va.Len(); j++ {
			if va.AtVec(j) != vb.AtVec(j) {
				t.Fatalf("equal seeds produced different starts: %v != %v",
					va.AtVec(j), vb.AtVec(j))
			}
		}
	}
}

func TestSpecNumActions(t *testing.T) {
	s := NewSpec(vec(0), Action, vec(0), vec(20), Discrete)
	if n := s.NumActions(); n != 21 {
		t.Errorf("numactions: want(21) have(%v)", n)
	}
}

func vec(v float64) *mat.VecDense {
	return mat.NewVecDense(1, []float64{v})
}
