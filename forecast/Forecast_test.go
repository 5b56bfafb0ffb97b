package forecast

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestNew(t *testing.T) {
	f, err := New([]float64{5, 5, 5, 4}, nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	if f.Len() != 3 {
		t.Errorf("len: want(3) have(%v)", f.Len())
	}
	for i := 0; i < f.Len(); i++ {
		if d := f.At(i); d.RainMM != 0 || d.ETMM != 5 {
			t.Errorf("day %d: want({0 5}) have(%v)", i, d)
		}
	}

	f, err = New([]float64{1, 2}, []float64{3, 4}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if f.Len() != 2 || f.At(1).RainMM != 4 {
		t.Errorf("default horizon: have(%v)", f.Days())
	}
}

func TestNewShortSeries(t *testing.T) {
	if _, err := New([]float64{1, 2}, nil, 3); !errors.Is(err, ErrShortSeries) {
		t.Errorf("short et: want(ErrShortSeries) have(%v)", err)
	}
	if _, err := New([]float64{1, 2, 3}, []float64{0}, 3); !errors.Is(err,
		ErrShortSeries) {
		t.Errorf("short rain: want(ErrShortSeries) have(%v)", err)
	}
	if _, err := New(nil, nil, 0); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("empty: want(ErrEmptySeries) have(%v)", err)
	}
	if _, err := New([]float64{-1}, nil, 1); err == nil {
		t.Error("negative et should be rejected")
	}
}

func TestDaysIsCopy(t *testing.T) {
	f, _ := Constant(1, 2, 3)
	days := f.Days()
	days[0].RainMM = 100
	if f.At(0).RainMM != 1 {
		t.Error("days: mutating the returned days changed the forecast")
	}
}

func TestParseInline(t *testing.T) {
	cases := map[string][]float64{
		"1,2,3":       {1, 2, 3},
		"1; 2 |3":     {1, 2, 3},
		" 0.5 1.5  ":  {0.5, 1.5},
		"5,,5,":       {5, 5},
		"1e-1|2.5e0 ": {0.1, 2.5},
	}

	for in, want := range cases {
		got, err := ParseSeries(in)
		if err != nil {
			t.Errorf("parseseries(%q): %v", in, err)
			continue
		}
		if !floats.Equal(got, want) {
			t.Errorf("parseseries(%q): want(%v) have(%v)", in, want, got)
		}
	}

	if _, err := ParseSeries(" , "); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("empty inline: want(ErrEmptySeries) have(%v)", err)
	}
	if _, err := ParseSeries("1,two,3"); err == nil {
		t.Error("malformed inline series should fail")
	}
}

func TestParseJSONFile(t *testing.T) {
	dir := t.TempDir()
	cases := map[string][]float64{
		`[1, 2, 3]`:                  {1, 2, 3},
		`{"et": [4, 5]}`:             {4, 5},
		`{"other": 1, "data": [7]}`:  {7},
		`{"rain": [0], "et": [9.5]}`: {9.5},
	}

	i := 0
	for content, want := range cases {
		name := filepath.Join(dir, "series"+string(rune('a'+i))+".json")
		i++
		if err := os.WriteFile(name, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		got, err := ParseSeries(name)
		if err != nil {
			t.Errorf("parseseries(%s): %v", content, err)
			continue
		}
		if !floats.Equal(got, want) {
			t.Errorf("parseseries(%s): want(%v) have(%v)", content, want, got)
		}
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"values": [1]}`), 0o600)
	if _, err := ParseSeries(bad); err == nil {
		t.Error("json object without a known key should fail")
	}
}

func TestParseCSVFile(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "et.csv")
	content := strings.Join([]string{"et_mm", "5.0", "", " ,4.5", "3"}, "\n")
	if err := os.WriteFile(name, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ParseSeries(name)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{5, 4.5, 3}; !floats.Equal(got, want) {
		t.Errorf("parseseries: want(%v) have(%v)", want, got)
	}

	empty := filepath.Join(dir, "empty.csv")
	os.WriteFile(empty, []byte("\n\n"), 0o600)
	if _, err := ParseSeries(empty); !errors.Is(err, ErrEmptySeries) {
		t.Errorf("empty csv: want(ErrEmptySeries) have(%v)", err)
	}
}

func TestParseUnsupportedFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "series.txt")
	os.WriteFile(name, []byte("1,2,3"), 0o600)
	if _, err := ParseSeries(name); err == nil {
		t.Error("unsupported extension should fail")
	}
}

func TestNonFiniteRejected(t *testing.T) {
	cases := map[string][]Day{
		"nan rain": {{RainMM: math.NaN(), ETMM: 1}},
		"nan et":   {{RainMM: 0, ETMM: 1}, {RainMM: 0, ETMM: math.NaN()}},
		"inf rain": {{RainMM: math.Inf(1), ETMM: 1}},
		"-inf et":  {{RainMM: 0, ETMM: math.Inf(-1)}},
	}
	for name, days := range cases {
		if _, err := FromDays(days); err == nil {
			t.Errorf("%v: non-finite forecast should be rejected", name)
		}
	}

	et, err := ParseSeries("NaN,1,1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(et, nil, 0); err == nil {
		t.Error("new: NaN et series should be rejected")
	}
	if _, err := New([]float64{1, 1}, []float64{1, math.Inf(1)}, 0); err == nil {
		t.Error("new: infinite rain series should be rejected")
	}
}
