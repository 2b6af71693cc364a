package spectral

// SpectralCentroid computes the magnitude-weighted mean frequency of a spectrum
type SpectralCentroid struct {
	sampleRate int
	freqBins   []float64
}

// NewSpectralCentroid creates a new spectral centroid calculator
func NewSpectralCentroid(sampleRate int) *SpectralCentroid {
	return &SpectralCentroid{
		sampleRate: sampleRate,
	}
}

// Compute calculates spectral centroid for a single magnitude spectrum.
// A silent frame has centroid 0.
func (sc *SpectralCentroid) Compute(spectrum []float64) float64 {
	if len(spectrum) == 0 {
		return 0.0
	}

	sc.freqBins = binsFor(sc.freqBins, sc.sampleRate, len(spectrum))

	numerator := 0.0
	denominator := 0.0

	for i, m := range spectrum {
		numerator += sc.freqBins[i] * m
		denominator += m
	}

	if denominator <= tiny {
		return 0
	}

	return numerator / denominator
}

// ComputeFrames processes multiple frames
func (sc *SpectralCentroid) ComputeFrames(spectrogram [][]float64) []float64 {
	centroids := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		centroids[t] = sc.Compute(spectrum)
	}
	return centroids
}

// binsFor reuses cached bin frequencies when the spectrum size matches.
func binsFor(cached []float64, sampleRate, numBins int) []float64 {
	if len(cached) == numBins {
		return cached
	}
	if numBins < 2 {
		return make([]float64, numBins)
	}
	return FrequencyBins(sampleRate, (numBins-1)*2)
}
