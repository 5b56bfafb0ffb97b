package initwfn

import (
	"encoding/json"
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

func TestGlorotUBounds(t *testing.T) {
	init, _ := NewGlorotU(1.0)
	fn := init.InitWFn(rand.NewSource(1))

	weights := fn(tensor.Float64, 17, 128).([]float64)
	if len(weights) != 17*128 {
		t.Fatalf("size: want(%v) have(%v)", 17*128, len(weights))
	}

	limit := math.Sqrt(6.0 / (17 + 128))
	for _, w := range weights {
		if math.Abs(w) > limit {
			t.Fatalf("weight %v outside (-%v, %v)", w, limit, limit)
		}
	}
}

func TestSeededInitIsReproducible(t *testing.T) {
	for _, init := range []*InitWFn{mustInit(NewGlorotU(1)),
		mustInit(NewGlorotN(1)), mustInit(NewHeN(math.Sqrt2))} {
		a := init.InitWFn(rand.NewSource(9))(tensor.Float64, 4, 3).([]float64)
		b := init.InitWFn(rand.NewSource(9))(tensor.Float64, 4, 3).([]float64)

		for i := range a {
			if a[i] != b[i] {
				t.Errorf("%v: equal seeds produced different weights", init)
				break
			}
		}
	}
}

func TestZeroes(t *testing.T) {
	init, _ := NewZeroes()
	weights := init.InitWFn(nil)(tensor.Float64, 2, 2).([]float64)
	for _, w := range weights {
		if w != 0 {
			t.Fatalf("zeroes: have(%v)", weights)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	init, _ := NewHeN(2)
	data, err := json.Marshal(init)
	if err != nil {
		t.Fatal(err)
	}

	var decoded InitWFn
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != HeN {
		t.Errorf("type: want(%v) have(%v)", HeN, decoded.Type)
	}
	if c, ok := decoded.Config.(HeNConfig); !ok || c.Gain != 2 {
		t.Errorf("config: want(HeNConfig{2}) have(%#v)", decoded.Config)
	}

	if err := json.Unmarshal([]byte(`{"Type": "Nope"}`), &decoded); err == nil {
		t.Error("unknown type should fail to unmarshal")
	}
}

func mustInit(init *InitWFn, err error) *InitWFn {
	if err != nil {
		panic(err)
	}
	return init
}
