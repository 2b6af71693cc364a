package transcode

import (
	"math"

	"github.com/RyanBlaney/sonido-atlas/algorithms/windowing"
)

const resampleKaiserBeta = 5.0

// Resample converts x from one rate to another with a polyphase FIR filter.
// The ratio is reduced by the gcd of the two rates; the low-pass is a
// Kaiser-windowed sinc with half length 10*max(up, down). Output length is
// ceil(len(x)*up/down). Equal rates return a copy of the input.
func Resample(x []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}

	g := gcd(fromRate, toRate)
	up := toRate / g
	down := fromRate / g

	h := lowpassFilter(up, down)
	halfLen := (len(h) - 1) / 2

	nOut := (len(x)*up + down - 1) / down
	out := make([]float64, nOut)

	// y[m] = sum_n h[m*down + halfLen - n*up] * x[n]
	for m := range nOut {
		center := m*down + halfLen
		nLo := ceilDiv(center-(len(h)-1), up)
		nHi := center / up
		nLo = max(nLo, 0)
		nHi = min(nHi, len(x)-1)

		var acc float64
		for n := nLo; n <= nHi; n++ {
			acc += h[center-n*up] * x[n]
		}
		out[m] = acc
	}

	return out
}

// lowpassFilter designs the anti-aliasing filter, normalized to unit DC gain
// and scaled by up to compensate for zero stuffing.
func lowpassFilter(up, down int) []float64 {
	maxRate := max(up, down)
	halfLen := 10 * maxRate
	numTaps := 2*halfLen + 1
	cutoff := 1.0 / float64(maxRate)

	window := windowing.NewKaiser(numTaps, resampleKaiserBeta, true).Coefficients()

	h := make([]float64, numTaps)
	var sum float64
	for i := range numTaps {
		t := float64(i - halfLen)
		h[i] = cutoff * sinc(cutoff*t) * window[i]
		sum += h[i]
	}

	gain := float64(up) / sum
	for i := range h {
		h[i] *= gain
	}
	return h
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func ceilDiv(a, b int) int {
	if a >= 0 {
		return (a + b - 1) / b
	}
	return -((-a) / b)
}
