package tonal_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
	"github.com/RyanBlaney/sonido-atlas/algorithms/spectral"
	"github.com/RyanBlaney/sonido-atlas/algorithms/tonal"
)

func TestKeyEstimateTemplateRecoversKey(t *testing.T) {
	est := tonal.NewKeyEstimator()
	for k := range 12 {
		major := common.L1Normalize(common.Roll(tonal.KrumhanslMajor, k), 0)
		got := est.Estimate(major)
		if got.Key != k || got.Mode != tonal.KeyModeMajor {
			t.Fatalf("major rotation %d: got key %d mode %v", k, got.Key, got.Mode)
		}
		if got.Confidence < 0 {
			t.Fatalf("negative confidence %v", got.Confidence)
		}

		minor := common.L1Normalize(common.Roll(tonal.KrumhanslMinor, k), 0)
		got = est.Estimate(minor)
		if got.Key != k || got.Mode != tonal.KeyModeMinor {
			t.Fatalf("minor rotation %d: got key %d mode %v", k, got.Key, got.Mode)
		}
	}
}

func TestKeyEstimateFlatProfileHasNoConfidence(t *testing.T) {
	flat := make([]float64, 12)
	for i := range flat {
		flat[i] = 1.0 / 12
	}
	got := tonal.NewKeyEstimator().Estimate(flat)
	if got.Key < 0 || got.Key > 11 {
		t.Fatalf("key out of range: %d", got.Key)
	}
	if math.Abs(got.Confidence) > 1e-12 {
		t.Fatalf("flat profile confidence got %v want 0", got.Confidence)
	}
}

func TestKeyEstimateExactTieGoesToMajor(t *testing.T) {
	est, err := tonal.NewKeyEstimatorWithTemplates(tonal.KrumhanslMajor, tonal.KrumhanslMajor)
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	got := est.Estimate(common.L1Normalize(common.Roll(tonal.KrumhanslMajor, 5), 0))
	if got.Mode != tonal.KeyModeMajor || got.Key != 5 || got.Confidence != 0 {
		t.Fatalf("tie got key %d mode %v confidence %v", got.Key, got.Mode, got.Confidence)
	}
}

func TestKeyEstimatorRejectsBadTemplates(t *testing.T) {
	if _, err := tonal.NewKeyEstimatorWithTemplates([]float64{1, 2}, tonal.KrumhanslMinor); err == nil {
		t.Fatal("expected error for short template")
	}
}

func TestKeyName(t *testing.T) {
	r := tonal.KeyEstimationResult{Key: 6, Mode: tonal.KeyModeMinor}
	if r.Name() != "F# minor" {
		t.Fatalf("got %q", r.Name())
	}
}

func analyze(t *testing.T, x []float64) float64 {
	t.Helper()
	result, err := spectral.NewSTFT().Compute(x, 2048, 512, 22050)
	if err != nil {
		t.Fatalf("stft: %v", err)
	}
	return tonal.NewHPSS().HarmonicRatio(x, result)
}

func TestHarmonicRatioSeparatesToneFromClicks(t *testing.T) {
	const rate = 22050
	tone := make([]float64, rate*3)
	for i := range tone {
		tone[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/rate)
	}
	if r := analyze(t, tone); r < 0.8 {
		t.Fatalf("steady tone ratio got %v want > 0.8", r)
	}

	clicks := make([]float64, rate*3)
	rng := rand.New(rand.NewSource(1))
	for start := 0; start < len(clicks); start += rate / 4 {
		for i := 0; i < 64 && start+i < len(clicks); i++ {
			clicks[start+i] = rng.Float64()*2 - 1
		}
	}
	if r := analyze(t, clicks); r > 0.4 {
		t.Fatalf("click train ratio got %v want < 0.4", r)
	}
}

func TestHarmonicRatioSilence(t *testing.T) {
	if r := analyze(t, make([]float64, 22050)); r != 0 {
		t.Fatalf("silence ratio got %v want 0", r)
	}
}
