package solver

import (
	"encoding/json"
	"testing"
)

func TestJSON(t *testing.T) {
	adam, err := NewDefaultAdam(3e-4, 1)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(adam)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Solver
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != Adam || decoded.Solver == nil {
		t.Fatalf("decoded: want a usable Adam solver, have(%v)", decoded.Type)
	}
	if c, ok := decoded.Config.(AdamConfig); !ok || c.StepSize != 3e-4 {
		t.Errorf("decoded config: have(%#v)", decoded.Config)
	}
}

func TestUnmarshalRejects(t *testing.T) {
	cases := []string{
		`{"Type": "Nesterov", "Config": {}}`,
		`{"Config": {"StepSize": 1}}`,
		`{"Type": "Adam", "Config": {"StepSize": -1, "Batch": 1}}`,
	}
	for _, c := range cases {
		var s Solver
		if err := json.Unmarshal([]byte(c), &s); err == nil {
			t.Errorf("unmarshal(%s): want error", c)
		}
	}
}

func TestCreateIsFresh(t *testing.T) {
	vanilla, err := NewVanilla(0.1, 1, -1)
	if err != nil {
		t.Fatal(err)
	}
	if vanilla.Create() == vanilla.Create() {
		t.Error("create: each call should return a new solver")
	}

	if _, err := NewRMSProp(0.1, 1e-8, 1.5, 1, -1); err == nil {
		t.Error("rmsprop: rho outside (0, 1) should be rejected")
	}
}
