package spectral

// SpectralRolloff finds the lowest frequency below which a given fraction of
// the total spectral magnitude lies.
type SpectralRolloff struct {
	sampleRate int
	freqBins   []float64
}

// NewSpectralRolloff creates a new spectral rolloff calculator
func NewSpectralRolloff(sampleRate int) *SpectralRolloff {
	return &SpectralRolloff{
		sampleRate: sampleRate,
	}
}

// Compute returns the rolloff frequency for threshold in (0, 1), e.g. 0.85.
func (sr *SpectralRolloff) Compute(spectrum []float64, threshold float64) float64 {
	if len(spectrum) == 0 {
		return 0.0
	}

	sr.freqBins = binsFor(sr.freqBins, sr.sampleRate, len(spectrum))

	total := 0.0
	for _, m := range spectrum {
		total += m
	}
	target := threshold * total

	cumulative := 0.0
	for i, m := range spectrum {
		cumulative += m
		if cumulative >= target {
			return sr.freqBins[i]
		}
	}

	return sr.freqBins[len(sr.freqBins)-1]
}

// ComputeFrames processes multiple frames
func (sr *SpectralRolloff) ComputeFrames(spectrogram [][]float64, threshold float64) []float64 {
	rolloffs := make([]float64, len(spectrogram))
	for t, spectrum := range spectrogram {
		rolloffs[t] = sr.Compute(spectrum, threshold)
	}
	return rolloffs
}
