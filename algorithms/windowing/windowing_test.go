package windowing_test

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-atlas/algorithms/windowing"
)

func TestHannPeriodicOverlapAdd(t *testing.T) {
	const n, hop = 2048, 512
	w := windowing.NewHann(n, false).Coefficients()
	if w[0] != 0 {
		t.Fatalf("first coefficient got %v want 0", w[0])
	}
	// squared periodic Hann at hop n/4 sums to 1.5 in steady state
	for i := 0; i < hop; i++ {
		var sum float64
		for k := 0; k < n/hop; k++ {
			v := w[i+k*hop]
			sum += v * v
		}
		if math.Abs(sum-1.5) > 1e-9 {
			t.Fatalf("offset %d: squared window sum %v want 1.5", i, sum)
		}
	}
}

func TestHannSymmetricEndpoints(t *testing.T) {
	w := windowing.NewHann(9, true).Coefficients()
	if w[0] != 0 || math.Abs(w[8]) > 1e-15 || w[4] != 1 {
		t.Fatalf("unexpected symmetric window %v", w)
	}
}

func TestKaiserShape(t *testing.T) {
	w := windowing.NewKaiser(41, 5, true).Coefficients()
	if math.Abs(w[20]-1) > 1e-12 {
		t.Fatalf("center coefficient got %v want 1", w[20])
	}
	for i := range 20 {
		if math.Abs(w[i]-w[40-i]) > 1e-12 {
			t.Fatalf("asymmetric at %d: %v vs %v", i, w[i], w[40-i])
		}
		if w[i] > w[i+1] {
			t.Fatalf("not increasing toward center at %d", i)
		}
	}
	// endpoints equal 1/I0(beta); I0(5) ~ 27.2399
	if math.Abs(w[0]-1/27.239871823604442) > 1e-9 {
		t.Fatalf("endpoint got %v", w[0])
	}
}

func TestApplyInPlaceSizeMismatch(t *testing.T) {
	if err := windowing.NewHann(4, false).ApplyInPlace(make([]float64, 3)); err == nil {
		t.Fatal("expected size mismatch error")
	}
}
