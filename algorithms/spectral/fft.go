package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp, which handles non power of two sizes.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the full complex spectrum of a real signal.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// InverseReal rebuilds a length-n real signal from its non-negative
// frequency half (n/2+1 bins) using conjugate symmetry.
func (f *FFT) InverseReal(half []complex128, n int) []float64 {
	if n == 0 || len(half) == 0 {
		return []float64{}
	}

	full := make([]complex128, n)
	copy(full, half[:min(len(half), n/2+1)])
	for k := n/2 + 1; k < n; k++ {
		full[k] = cmplx.Conj(half[n-k])
	}
	// DC and Nyquist must be real for a real output
	full[0] = complex(real(full[0]), 0)
	if n%2 == 0 {
		full[n/2] = complex(real(full[n/2]), 0)
	}

	result := fft.IFFT(full)
	out := make([]float64, n)
	for i, v := range result {
		out[i] = real(v)
	}
	return out
}

// FrequencyBins returns the centre frequency of each of the n/2+1 bins.
func FrequencyBins(sampleRate, windowSize int) []float64 {
	bins := make([]float64, windowSize/2+1)
	for i := range bins {
		bins[i] = float64(i) * float64(sampleRate) / float64(windowSize)
	}
	return bins
}
