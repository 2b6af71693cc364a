package tonal

import (
	"math"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
	"github.com/RyanBlaney/sonido-atlas/algorithms/spectral"
)

// HPSS splits a spectrogram into harmonic and percussive parts by median
// filtering magnitude along time (harmonic) and frequency (percussive), then
// applying soft masks to the complex STFT.
type HPSS struct {
	kernelSize int
	power      float64
	stft       *spectral.STFT
}

// NewHPSS creates a separator with a 31-bin kernel and power-2 masks.
func NewHPSS() *HPSS {
	return &HPSS{
		kernelSize: 31,
		power:      2,
		stft:       spectral.NewSTFT(),
	}
}

// Separate returns the harmonic and percussive signals, each len(signal) long.
func (h *HPSS) Separate(signal []float64, result *spectral.STFTResult) ([]float64, []float64) {
	if result == nil || result.TimeFrames == 0 {
		return make([]float64, len(signal)), make([]float64, len(signal))
	}

	frames, bins := result.TimeFrames, result.FreqBins
	mag := result.Magnitude

	harmonic := make([][]float64, frames)
	for t := range frames {
		harmonic[t] = make([]float64, bins)
	}
	column := make([]float64, frames)
	for k := range bins {
		for t := range frames {
			column[t] = mag[t][k]
		}
		filtered := common.MedianFilter(column, h.kernelSize)
		for t := range frames {
			harmonic[t][k] = filtered[t]
		}
	}

	percussive := make([][]float64, frames)
	for t := range frames {
		percussive[t] = common.MedianFilter(mag[t], h.kernelSize)
	}

	harmSpec := make([][]complex128, frames)
	percSpec := make([][]complex128, frames)
	for t := range frames {
		harmSpec[t] = make([]complex128, bins)
		percSpec[t] = make([]complex128, bins)
		for k := range bins {
			maskH := softMask(harmonic[t][k], percussive[t][k], h.power)
			maskP := softMask(percussive[t][k], harmonic[t][k], h.power)
			x := result.Complex[t][k]
			harmSpec[t][k] = x * complex(maskH, 0)
			percSpec[t][k] = x * complex(maskP, 0)
		}
	}

	yh := h.stft.Inverse(harmSpec, result.WindowSize, result.HopSize, len(signal))
	yp := h.stft.Inverse(percSpec, result.WindowSize, result.HopSize, len(signal))
	return yh, yp
}

// HarmonicRatio is Eh / (Eh + Ep + eps) with E the mean squared amplitude of
// each separated component.
func (h *HPSS) HarmonicRatio(signal []float64, result *spectral.STFTResult) float64 {
	yh, yp := h.Separate(signal, result)
	eh := meanSquare(yh)
	ep := meanSquare(yp)
	return eh / (eh + ep + common.Epsilon)
}

// softMask is x^p / (x^p + ref^p) after scaling both by their max. Both zero
// gives a zero mask.
func softMask(x, ref, power float64) float64 {
	z := math.Max(x, ref)
	if z < math.SmallestNonzeroFloat64 {
		return 0
	}
	mx := math.Pow(x/z, power)
	mr := math.Pow(ref/z, power)
	return mx / (mx + mr)
}

func meanSquare(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum / float64(len(x))
}
