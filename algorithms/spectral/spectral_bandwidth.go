package spectral

import "math"

// SpectralBandwidth is the second-order spread of a spectrum around its
// centroid, with the magnitude normalized to sum to one per frame.
type SpectralBandwidth struct {
	sampleRate int
	freqBins   []float64
}

// NewSpectralBandwidth creates a new spectral bandwidth calculator
func NewSpectralBandwidth(sampleRate int) *SpectralBandwidth {
	return &SpectralBandwidth{
		sampleRate: sampleRate,
	}
}

// Compute calculates the bandwidth of one magnitude spectrum given its centroid
func (sb *SpectralBandwidth) Compute(spectrum []float64, centroid float64) float64 {
	if len(spectrum) == 0 {
		return 0.0
	}

	sb.freqBins = binsFor(sb.freqBins, sb.sampleRate, len(spectrum))

	total := 0.0
	for _, m := range spectrum {
		total += m
	}
	if total <= tiny {
		return 0.0
	}

	spread := 0.0
	for i, m := range spectrum {
		d := sb.freqBins[i] - centroid
		spread += (m / total) * d * d
	}

	return math.Sqrt(spread)
}

// ComputeFrames processes multiple frames
func (sb *SpectralBandwidth) ComputeFrames(spectrogram [][]float64, centroids []float64) []float64 {
	bandwidths := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		bandwidths[t] = sb.Compute(spectrum, centroids[t])
	}
	return bandwidths
}
