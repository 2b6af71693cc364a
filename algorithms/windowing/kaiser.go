package windowing

import (
	"fmt"
	"math"
)

// Kaiser window, used for FIR design in the resampler.
type Kaiser struct {
	size         int
	beta         float64
	symmetric    bool
	coefficients []float64
}

// NewKaiser creates a new Kaiser window
func NewKaiser(size int, beta float64, symmetric bool) *Kaiser {
	k := &Kaiser{
		size:      size,
		beta:      beta,
		symmetric: symmetric,
	}
	k.generate()
	return k
}

func (k *Kaiser) generate() {
	k.coefficients = make([]float64, k.size)
	if k.size == 1 {
		k.coefficients[0] = 1
		return
	}

	denominator := float64(k.size)
	if k.symmetric {
		denominator = float64(k.size - 1)
	}

	i0Beta := besselI0(k.beta)

	for i := range k.size {
		arg := 2.0*float64(i)/denominator - 1.0
		k.coefficients[i] = besselI0(k.beta*math.Sqrt(math.Max(0, 1-arg*arg))) / i0Beta
	}
}

// besselI0 computes the zero-order modified Bessel function of the first kind
// by its power series.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0

	for i := 1; i < 50; i++ {
		term *= (x / (2.0 * float64(i))) * (x / (2.0 * float64(i)))
		sum += term
		if term < 1e-12*sum {
			break
		}
	}

	return sum
}

// ApplyInPlace applies the window to a signal in-place
func (k *Kaiser) ApplyInPlace(signal []float64) error {
	if len(signal) != k.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), k.size)
	}

	for i, c := range k.coefficients {
		signal[i] *= c
	}

	return nil
}

// Coefficients returns a copy of the window coefficients
func (k *Kaiser) Coefficients() []float64 {
	coeffs := make([]float64, len(k.coefficients))
	copy(coeffs, k.coefficients)
	return coeffs
}

// Size returns the window size
func (k *Kaiser) Size() int {
	return k.size
}
