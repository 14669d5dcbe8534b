package teleop

import (
	"math"
	"testing"
)

func TestSmoother_FirstSamplePassesThrough(t *testing.T) {
	s := NewSmoother[string](0.25)

	out := s.Apply(map[string]float64{"a": 42.0})
	if out["a"] != 42.0 {
		t.Errorf("first sample: got %f, want 42.0", out["a"])
	}
}

func TestSmoother_Converges(t *testing.T) {
	s := NewSmoother[string](0.25)

	s.Apply(map[string]float64{"a": 0})

	// A step input must converge towards the new value without ever
	// overshooting it.
	var last float64
	for i := 0; i < 50; i++ {
		out := s.Apply(map[string]float64{"a": 100})
		if out["a"] < last {
			t.Fatalf("iteration %d: output went backwards: %f < %f", i, out["a"], last)
		}
		if out["a"] > 100 {
			t.Fatalf("iteration %d: overshoot: %f", i, out["a"])
		}
		last = out["a"]
	}
	if last < 99.9 {
		t.Errorf("did not converge: %f after 50 samples", last)
	}
}

func TestSmoother_Formula(t *testing.T) {
	s := NewSmoother[string](0.2)

	s.Apply(map[string]float64{"a": 1000})
	out := s.Apply(map[string]float64{"a": 2000})

	// 0.2*2000 + 0.8*1000 = 1200
	if math.Abs(out["a"]-1200) > 0.001 {
		t.Errorf("got %f, want 1200", out["a"])
	}
}

func TestSmoother_IndependentChannels(t *testing.T) {
	s := NewSmoother[int](0.5)

	s.Apply(map[int]float64{1: 0, 2: 100})
	out := s.Apply(map[int]float64{1: 100, 2: 100})

	if out[1] != 50 {
		t.Errorf("channel 1: got %f, want 50", out[1])
	}
	if out[2] != 100 {
		t.Errorf("channel 2: got %f, want 100", out[2])
	}
}

func TestSmoother_Reset(t *testing.T) {
	s := NewSmoother[string](0.25)

	s.Apply(map[string]float64{"a": 0})
	s.Reset()

	out := s.Apply(map[string]float64{"a": 77})
	if out["a"] != 77 {
		t.Errorf("after reset: got %f, want 77", out["a"])
	}
}

func TestSmoother_BadAlphaFallsBack(t *testing.T) {
	for _, alpha := range []float64{0, -1, 1.5} {
		s := NewSmoother[string](alpha)
		if s.Alpha() != DefaultAlpha {
			t.Errorf("alpha %f: got %f, want %f", alpha, s.Alpha(), DefaultAlpha)
		}
	}
}

func TestSmoother_AlphaOneIsPassthrough(t *testing.T) {
	s := NewSmoother[string](1.0)

	s.Apply(map[string]float64{"a": 0})
	out := s.Apply(map[string]float64{"a": 100})
	if out["a"] != 100 {
		t.Errorf("alpha 1: got %f, want 100", out["a"])
	}
}
