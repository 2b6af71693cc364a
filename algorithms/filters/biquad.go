package filters

import (
	"fmt"
	"math"
)

// Biquad is a second-order IIR section. Coefficients come from Robert
// Bristow-Johnson's "Cookbook formulae for audio EQ biquad filter
// coefficients" and are normalized so a0 = 1.
// Reference: https://webaudio.github.io/Audio-EQ-Cookbook/audio-eq-cookbook.html
//
// A Biquad carries delay-line state and is not safe for concurrent use.
type Biquad struct {
	sampleRate int
	cutoffFreq float64 // Corner or center frequency in Hz
	qFactor    float64

	// Biquad coefficients
	b0, b1, b2 float64 // Numerator coefficients
	a0, a1, a2 float64 // Denominator coefficients

	// Direct form II delay line
	w1, w2 float64
}

// NewHighPass creates a second-order high-pass filter.
//
// Parameters:
//   - sampleRate: Sample rate in Hz
//   - cutoffFreq: -3dB corner frequency in Hz (for Q = 1/sqrt(2))
//   - qFactor: Quality factor
func NewHighPass(sampleRate int, cutoffFreq, qFactor float64) (*Biquad, error) {
	bq, cosW0, alpha, err := newSection(sampleRate, cutoffFreq, qFactor)
	if err != nil {
		return nil, err
	}

	bq.b0 = (1 + cosW0) / 2
	bq.b1 = -(1 + cosW0)
	bq.b2 = (1 + cosW0) / 2
	bq.a0 = 1 + alpha
	bq.a1 = -2 * cosW0
	bq.a2 = 1 - alpha

	bq.normalize()
	return bq, nil
}

// NewHighShelf creates a high-shelf filter that applies gainDB above
// cutoffFreq.
func NewHighShelf(sampleRate int, cutoffFreq, qFactor, gainDB float64) (*Biquad, error) {
	bq, cosW0, alpha, err := newSection(sampleRate, cutoffFreq, qFactor)
	if err != nil {
		return nil, err
	}

	a := math.Pow(10, gainDB/40)
	sqrtA := math.Sqrt(a)

	bq.b0 = a * ((a + 1) + (a-1)*cosW0 + 2*sqrtA*alpha)
	bq.b1 = -2 * a * ((a - 1) + (a+1)*cosW0)
	bq.b2 = a * ((a + 1) + (a-1)*cosW0 - 2*sqrtA*alpha)
	bq.a0 = (a + 1) - (a-1)*cosW0 + 2*sqrtA*alpha
	bq.a1 = 2 * ((a - 1) - (a+1)*cosW0)
	bq.a2 = (a + 1) - (a-1)*cosW0 - 2*sqrtA*alpha

	bq.normalize()
	return bq, nil
}

// newSection validates the shared parameters and returns cos(w0) and alpha.
func newSection(sampleRate int, cutoffFreq, qFactor float64) (*Biquad, float64, float64, error) {
	if sampleRate <= 0 {
		return nil, 0, 0, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if cutoffFreq <= 0 || cutoffFreq >= float64(sampleRate)/2 {
		return nil, 0, 0, fmt.Errorf("cutoff frequency must be between 0 and Nyquist frequency (%d Hz)", sampleRate/2)
	}
	if qFactor <= 0 {
		return nil, 0, 0, fmt.Errorf("q factor must be positive")
	}

	// w0 = 2*pi*f0/Fs
	w0 := 2.0 * math.Pi * cutoffFreq / float64(sampleRate)
	alpha := math.Sin(w0) / (2.0 * qFactor)

	bq := &Biquad{
		sampleRate: sampleRate,
		cutoffFreq: cutoffFreq,
		qFactor:    qFactor,
	}
	return bq, math.Cos(w0), alpha, nil
}

func (bq *Biquad) normalize() {
	bq.b0 /= bq.a0
	bq.b1 /= bq.a0
	bq.b2 /= bq.a0
	bq.a1 /= bq.a0
	bq.a2 /= bq.a0
	bq.a0 = 1.0
}

// Process filters one sample.
//
// Direct form II:
// w[n] = x[n] - a1*w[n-1] - a2*w[n-2]
// y[n] = b0*w[n] + b1*w[n-1] + b2*w[n-2]
func (bq *Biquad) Process(input float64) float64 {
	w := input - bq.a1*bq.w1 - bq.a2*bq.w2
	output := bq.b0*w + bq.b1*bq.w1 + bq.b2*bq.w2

	bq.w2 = bq.w1
	bq.w1 = w

	return output
}

// ProcessBuffer filters a whole buffer into a new slice, continuing from the
// current state.
func (bq *Biquad) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = bq.Process(sample)
	}
	return output
}

// Reset clears the delay line.
func (bq *Biquad) Reset() {
	bq.w1, bq.w2 = 0.0, 0.0
}

// FrequencyResponse returns the magnitude (linear) and phase (radians) at
// frequency.
//
// H(e^jw) = (b0 + b1*e^-jw + b2*e^-j2w) / (a0 + a1*e^-jw + a2*e^-j2w)
func (bq *Biquad) FrequencyResponse(frequency float64) (magnitude, phase float64) {
	w := 2.0 * math.Pi * frequency / float64(bq.sampleRate)

	cosW := math.Cos(w)
	sinW := math.Sin(w)
	cos2W := math.Cos(2 * w)
	sin2W := math.Sin(2 * w)

	numReal := bq.b0 + bq.b1*cosW + bq.b2*cos2W
	numImag := -bq.b1*sinW - bq.b2*sin2W

	denReal := bq.a0 + bq.a1*cosW + bq.a2*cos2W
	denImag := -bq.a1*sinW - bq.a2*sin2W

	denMagSq := denReal*denReal + denImag*denImag

	hReal := (numReal*denReal + numImag*denImag) / denMagSq
	hImag := (numImag*denReal - numReal*denImag) / denMagSq

	magnitude = math.Sqrt(hReal*hReal + hImag*hImag)
	phase = math.Atan2(hImag, hReal)

	return magnitude, phase
}

// Coefficients returns the normalized coefficients.
func (bq *Biquad) Coefficients() (b0, b1, b2, a0, a1, a2 float64) {
	return bq.b0, bq.b1, bq.b2, bq.a0, bq.a1, bq.a2
}
