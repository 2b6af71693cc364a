package temporal

import (
	"github.com/mjibson/go-dsp/fft"
)

// autocorrelateFFT returns the first maxSize non-negative lags of the linear
// autocorrelation of x, computed through a zero padded FFT.
func autocorrelateFFT(x []float64, maxSize int) []float64 {
	n := len(x)
	if maxSize <= 0 || maxSize > n {
		maxSize = n
	}
	out := make([]float64, maxSize)
	if n == 0 {
		return out
	}

	padded := make([]float64, 2*n-1)
	copy(padded, x)

	spectrum := fft.FFTReal(padded)
	for i, v := range spectrum {
		re, im := real(v), imag(v)
		spectrum[i] = complex(re*re+im*im, 0)
	}
	ac := fft.IFFT(spectrum)

	for lag := range maxSize {
		out[lag] = real(ac[lag])
	}
	return out
}
