package expreplay

import (
	"sort"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/goirrigate/timestep"
)

// transition returns a transition whose fields all encode i
func transition(i int) ts.Transition {
	v := float64(i)
	return ts.Transition{
		State:     mat.NewVecDense(2, []float64{v, -v}),
		Action:    i,
		Reward:    v,
		NextState: mat.NewVecDense(2, []float64{v + 0.5, -v - 0.5}),
		Done:      i%2 == 0,
	}
}

func newBuffer(t *testing.T, capacity int) *FifoBuffer {
	t.Helper()

	b, err := New(capacity, 2, rand.NewSource(1))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestCapacityNeverExceeded(t *testing.T) {
	b := newBuffer(t, 10)
	for i := 0; i < 37; i++ {
		if err := b.Add(transition(i)); err != nil {
			t.Fatal(err)
		}

		want := i + 1
		if want > 10 {
			want = 10
		}
		if b.Len() != want {
			t.Fatalf("len after %d adds: want(%v) have(%v)", i+1, want,
				b.Len())
		}
	}
}

func TestOldestEvictedFirst(t *testing.T) {
	const capacity, extra = 8, 5
	b := newBuffer(t, capacity)
	for i := 0; i < capacity+extra; i++ {
		b.Add(transition(i))
	}

	batch, err := b.Sample(capacity)
	if err != nil {
		t.Fatal(err)
	}

	rewards := append([]float64{}, batch.Rewards...)
	sort.Float64s(rewards)
	for i, r := range rewards {
		if want := float64(extra + i); r != want {
			t.Errorf("stored transitions: want(%v) have(%v)", want, r)
		}
	}
}

func TestSampleCorrespondence(t *testing.T) {
	b := newBuffer(t, 50)
	for i := 0; i < 50; i++ {
		b.Add(transition(i))
	}

	batch, err := b.Sample(16)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Len() != 16 || len(batch.States) != 32 ||
		len(batch.NextStates) != 32 {
		t.Fatalf("batch sizes: have(%v)", batch)
	}

	seen := make(map[int]bool)
	for i, a := range batch.Actions {
		if seen[a] {
			t.Errorf("transition %d drawn twice in a single batch", a)
		}
		seen[a] = true

		v := float64(a)
		if batch.Rewards[i] != v || batch.States[2*i] != v ||
			batch.States[2*i+1] != -v || batch.NextStates[2*i] != v+0.5 {
			t.Errorf("row %d does not belong to transition %d", i, a)
		}

		wantDone := 0.0
		if a%2 == 0 {
			wantDone = 1
		}
		if batch.Dones[i] != wantDone {
			t.Errorf("row %d: done want(%v) have(%v)", i, wantDone,
				batch.Dones[i])
		}
	}
}

func TestSampleErrors(t *testing.T) {
	b := newBuffer(t, 4)
	if _, err := b.Sample(1); !IsEmptyBuffer(err) {
		t.Errorf("empty: want empty buffer error, have(%v)", err)
	}

	b.Add(transition(0))
	if _, err := b.Sample(2); !IsInsufficientSamples(err) {
		t.Errorf("insufficient: want insufficient samples error, have(%v)",
			err)
	}
	if _, err := b.Sample(0); err == nil {
		t.Error("batch size 0 should be rejected")
	}

	bad := transition(1)
	bad.State = mat.NewVecDense(3, nil)
	if err := b.Add(bad); err == nil {
		t.Error("add: wrong feature size should be rejected")
	}
}

func TestAddCopies(t *testing.T) {
	b := newBuffer(t, 1)
	tr := transition(3)
	b.Add(tr)
	tr.State.(*mat.VecDense).SetVec(0, 100)

	batch, _ := b.Sample(1)
	if batch.States[0] != 3 {
		t.Errorf("add: buffer should copy states, have(%v)", batch.States[0])
	}
}

func TestSeededSampling(t *testing.T) {
	a, _ := New(20, 2, rand.NewSource(5))
	c, _ := New(20, 2, rand.NewSource(5))
	for i := 0; i < 20; i++ {
		a.Add(transition(i))
		c.Add(transition(i))
	}

	for k := 0; k < 3; k++ {
		x, _ := a.Sample(5)
		y, _ := c.Sample(5)
		for i := range x.Actions {
			if x.Actions[i] != y.Actions[i] {
				t.Fatalf("equal seeds drew different batches: %v and %v",
					x.Actions, y.Actions)
			}
		}
	}
}
