package filters_test

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-atlas/algorithms/filters"
)

const fs = 48000

func sine(freq float64, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * freq * float64(i) / fs)
	}
	return x
}

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestHighPassAttenuatesBelowCutoff(t *testing.T) {
	hp, err := filters.NewHighPass(fs, 1000, 1/math.Sqrt2)
	if err != nil {
		t.Fatalf("NewHighPass: %v", err)
	}

	low := hp.ProcessBuffer(sine(50, fs))
	hp.Reset()
	high := hp.ProcessBuffer(sine(10000, fs))

	// skip the transient
	lowRMS := rms(low[fs/2:])
	highRMS := rms(high[fs/2:])
	if lowRMS > 0.01 {
		t.Fatalf("50 Hz passed with rms %v", lowRMS)
	}
	if math.Abs(highRMS-1/math.Sqrt2) > 0.01 {
		t.Fatalf("10 kHz rms got %v want %v", highRMS, 1/math.Sqrt2)
	}

	mag, _ := hp.FrequencyResponse(1000)
	if math.Abs(20*math.Log10(mag)-(-3.01)) > 0.05 {
		t.Fatalf("corner gain got %v dB want -3.01", 20*math.Log10(mag))
	}
}

func TestHighShelfGain(t *testing.T) {
	shelf, err := filters.NewHighShelf(fs, 1500, 1/math.Sqrt2, 6)
	if err != nil {
		t.Fatalf("NewHighShelf: %v", err)
	}

	if mag, _ := shelf.FrequencyResponse(20); math.Abs(20*math.Log10(mag)) > 0.05 {
		t.Fatalf("low band gain got %v dB want 0", 20*math.Log10(mag))
	}
	if mag, _ := shelf.FrequencyResponse(20000); math.Abs(20*math.Log10(mag)-6) > 0.2 {
		t.Fatalf("high band gain got %v dB want 6", 20*math.Log10(mag))
	}

	_, _, _, a0, _, _ := shelf.Coefficients()
	if a0 != 1 {
		t.Fatalf("a0 got %v want 1", a0)
	}
}

func TestProcessMatchesDifferenceEquation(t *testing.T) {
	hp, err := filters.NewHighPass(fs, 38, 0.5)
	if err != nil {
		t.Fatalf("NewHighPass: %v", err)
	}
	b0, b1, b2, _, a1, a2 := hp.Coefficients()

	x := sine(440, 256)
	got := hp.ProcessBuffer(x)

	var x1, x2, y1, y2 float64
	for i, v := range x {
		want := b0*v + b1*x1 + b2*x2 - a1*y1 - a2*y2
		x2, x1 = x1, v
		y2, y1 = y1, want
		if math.Abs(got[i]-want) > 1e-9 {
			t.Fatalf("sample %d got %v want %v", i, got[i], want)
		}
	}
}

func TestInvalidParameters(t *testing.T) {
	if _, err := filters.NewHighPass(0, 38, 0.5); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := filters.NewHighShelf(2000, 1500, 0.7, 4); err == nil {
		t.Fatal("expected error for cutoff above Nyquist")
	}
	if _, err := filters.NewHighPass(fs, 38, 0); err == nil {
		t.Fatal("expected error for zero q")
	}
}
