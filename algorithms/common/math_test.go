package common_test

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
)

func TestPopulationStd(t *testing.T) {
	got := common.PopulationStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2) > 1e-12 {
		t.Fatalf("got %v want 2", got)
	}
}

func TestMedianFilterReflect(t *testing.T) {
	got := common.MedianFilter([]float64{1, 9, 2, 8, 3}, 3)
	want := []float64{1, 2, 8, 3, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v want %v (all %v)", i, got[i], want[i], got)
		}
	}
}

func TestAutocorrelate(t *testing.T) {
	got := common.Autocorrelate([]float64{1, 2, 3}, 0)
	want := []float64{14, 8, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lag %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestRollMatchesRightShift(t *testing.T) {
	got := common.Roll([]float64{0, 1, 2, 3}, 1)
	want := []float64{3, 0, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if back := common.Roll(got, -1); back[0] != 0 || back[3] != 3 {
		t.Fatalf("negative roll got %v", back)
	}
}

func TestPowerToDB(t *testing.T) {
	got := common.PowerToDB([]float64{1, 0.1, 0}, 1, 1e-10, 80)
	if got[0] != 0 || math.Abs(got[1]+10) > 1e-9 || got[2] != -80 {
		t.Fatalf("unexpected dB values %v", got)
	}
}

func TestArgMaxFirstWins(t *testing.T) {
	if got := common.ArgMax([]float64{1, 3, 3, 2}); got != 1 {
		t.Fatalf("got %d want 1", got)
	}
}
