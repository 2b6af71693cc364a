package spectral

import (
	"math"
)

// SpectralFlatness computes spectral flatness (Wiener entropy) on the power
// spectrum: geometric mean over arithmetic mean, in [0, 1].
type SpectralFlatness struct {
	minThreshold float64 // floor applied to every power value
}

// NewSpectralFlatness creates a new spectral flatness calculator
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{
		minThreshold: 1e-10,
	}
}

// Compute takes a magnitude spectrum. Values near 0 mean tonal, near 1 noise-like.
// Silent frames floor to the threshold everywhere and so read as 1.
func (sf *SpectralFlatness) Compute(magnitudeSpectrum []float64) float64 {
	if len(magnitudeSpectrum) == 0 {
		return 0.0
	}

	logSum := 0.0
	arithmeticMean := 0.0
	for _, magnitude := range magnitudeSpectrum {
		p := math.Max(sf.minThreshold, magnitude*magnitude)
		logSum += math.Log(p)
		arithmeticMean += p
	}

	n := float64(len(magnitudeSpectrum))
	geometricMean := math.Exp(logSum / n)
	arithmeticMean /= n

	return geometricMean / arithmeticMean
}

// ComputeFrames processes multiple frames
func (sf *SpectralFlatness) ComputeFrames(spectrogram [][]float64) []float64 {
	flatness := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		flatness[t] = sf.Compute(spectrum)
	}
	return flatness
}
