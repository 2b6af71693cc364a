package spectral

import "math"

// ZeroCrossingRate is the fraction of sign changes per frame. Frames are
// centred with edge padding; samples below threshold in magnitude count as
// zero, and zero counts as positive.
type ZeroCrossingRate struct {
	frameSize int
	hopSize   int
	threshold float64
}

// NewZeroCrossingRate creates a calculator with 2048/512 framing
func NewZeroCrossingRate() *ZeroCrossingRate {
	return NewZeroCrossingRateWithParams(DefaultWindowSize, DefaultHopSize)
}

// NewZeroCrossingRateWithParams creates a calculator with custom framing
func NewZeroCrossingRateWithParams(frameSize, hopSize int) *ZeroCrossingRate {
	return &ZeroCrossingRate{
		frameSize: frameSize,
		hopSize:   hopSize,
		threshold: 1e-10,
	}
}

// Compute returns crossings divided by frame length for a single frame.
func (zcr *ZeroCrossingRate) Compute(frame []float64) float64 {
	if len(frame) < 2 {
		return 0.0
	}

	crossings := 0
	prev := zcr.negative(frame[0])
	for _, v := range frame[1:] {
		cur := zcr.negative(v)
		if cur != prev {
			crossings++
		}
		prev = cur
	}

	return float64(crossings) / float64(len(frame))
}

// ComputeFrames frames the signal and returns the per-frame rates.
func (zcr *ZeroCrossingRate) ComputeFrames(signal []float64) []float64 {
	if len(signal) == 0 {
		return []float64{}
	}

	pad := zcr.frameSize / 2
	padded := make([]float64, len(signal)+2*pad)
	copy(padded[pad:], signal)
	for i := range pad {
		padded[i] = signal[0]
		padded[len(padded)-1-i] = signal[len(signal)-1]
	}

	numFrames := 1 + (len(padded)-zcr.frameSize)/zcr.hopSize
	rates := make([]float64, numFrames)
	for t := range numFrames {
		start := t * zcr.hopSize
		rates[t] = zcr.Compute(padded[start : start+zcr.frameSize])
	}
	return rates
}

func (zcr *ZeroCrossingRate) negative(v float64) bool {
	if math.Abs(v) <= zcr.threshold {
		return false
	}
	return v < 0
}
