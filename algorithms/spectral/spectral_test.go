package spectral_test

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-atlas/algorithms/spectral"
)

func sine(freq float64, rate, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(rate))
	}
	return x
}

func TestSTFTCenteredFrameCount(t *testing.T) {
	result, err := spectral.NewSTFT().Compute(make([]float64, 10000), 2048, 512, 22050)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if result.TimeFrames != 1+10000/512 {
		t.Fatalf("frames got %d want %d", result.TimeFrames, 1+10000/512)
	}
	if result.FreqBins != 1025 {
		t.Fatalf("bins got %d want 1025", result.FreqBins)
	}
}

func TestSTFTEmptySignal(t *testing.T) {
	if _, err := spectral.NewSTFT().Compute(nil, 2048, 512, 22050); err == nil {
		t.Fatal("expected error for empty signal")
	}
}

func TestSTFTRoundTrip(t *testing.T) {
	const rate = 22050
	x := sine(330, rate, 20000)
	stft := spectral.NewSTFT()
	result, err := stft.Compute(x, 2048, 512, rate)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	y := stft.Inverse(result.Complex, 2048, 512, len(x))
	for i := range x {
		if math.Abs(x[i]-y[i]) > 1e-6 {
			t.Fatalf("sample %d: got %v want %v", i, y[i], x[i])
		}
	}
}

func TestSummaryOfPureTone(t *testing.T) {
	const rate = 22050
	x := sine(1000, rate, rate*2)
	result, err := spectral.NewSTFT().Compute(x, 2048, 512, rate)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	s := spectral.Summarize(x, result)

	if math.Abs(s.CentroidMean-1000) > 100 {
		t.Fatalf("centroid %v not near 1000 Hz", s.CentroidMean)
	}
	if s.FlatnessMean > 0.1 {
		t.Fatalf("pure tone should be tonal, flatness %v", s.FlatnessMean)
	}
	// 1 kHz crosses zero 2000 times a second
	wantZCR := 2000.0 / rate
	if math.Abs(s.ZCRMean-wantZCR) > 0.01 {
		t.Fatalf("zcr %v want about %v", s.ZCRMean, wantZCR)
	}
	if s.Rolloff85Mean < 900 || s.Rolloff85Mean > 2000 {
		t.Fatalf("rolloff %v out of range", s.Rolloff85Mean)
	}
}

func TestRolloffAndCentroidOnKnownSpectrum(t *testing.T) {
	// bins at 0, 1, 2, 3, 4 Hz for rate 8 / fft 8
	spectrum := []float64{0, 1, 0, 1, 0}
	if got := spectral.NewSpectralCentroid(8).Compute(spectrum); got != 2 {
		t.Fatalf("centroid got %v want 2", got)
	}
	if got := spectral.NewSpectralBandwidth(8).Compute(spectrum, 2); got != 1 {
		t.Fatalf("bandwidth got %v want 1", got)
	}
	if got := spectral.NewSpectralRolloff(8).Compute(spectrum, 0.85); got != 3 {
		t.Fatalf("rolloff got %v want 3", got)
	}
	if got := spectral.NewSpectralCentroid(8).Compute(make([]float64, 5)); got != 0 {
		t.Fatalf("silent centroid got %v want 0", got)
	}
}

func TestMelFilterBankShape(t *testing.T) {
	bank := spectral.NewMelScale().CreateMelFilterBank(128, 2048, 22050, 0, 11025)
	if len(bank) != 128 || len(bank[0]) != 1025 {
		t.Fatalf("unexpected bank shape %dx%d", len(bank), len(bank[0]))
	}
	for m, filter := range bank {
		var sum float64
		for _, w := range filter {
			if w < 0 {
				t.Fatalf("negative weight in filter %d", m)
			}
			sum += w
		}
		if sum == 0 && m > 2 {
			t.Fatalf("filter %d is empty", m)
		}
	}
}

func TestMelScaleRoundTrip(t *testing.T) {
	ms := spectral.NewMelScale()
	for _, hz := range []float64{0, 440, 1000, 4000, 11025} {
		if got := ms.MelToHz(ms.HzToMel(hz)); math.Abs(got-hz) > 1e-6 {
			t.Fatalf("round trip %v got %v", hz, got)
		}
	}
}
