package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
)

// Energy computes frame-level RMS and the signal-level dynamics figures.
type Energy struct {
	frameSize int
	hopSize   int
}

// Dynamics are the loudness figures that need no perceptual weighting.
type Dynamics struct {
	// FrameRMSMean is the mean of the centred frame RMS curve.
	FrameRMSMean float64
	// GlobalRMS is sqrt(mean(x^2)) over the whole signal.
	GlobalRMS     float64
	RMSDBFS       float64
	Peak          float64
	CrestFactorDB float64
}

// NewEnergy creates an energy calculator
func NewEnergy(frameSize, hopSize int) *Energy {
	return &Energy{
		frameSize: frameSize,
		hopSize:   hopSize,
	}
}

// FrameRMS returns the RMS of each centred, zero padded frame. There are
// 1 + len(signal)/hop frames.
func (e *Energy) FrameRMS(signal []float64) []float64 {
	pad := e.frameSize / 2
	numFrames := 1 + len(signal)/e.hopSize
	out := make([]float64, numFrames)

	for f := range numFrames {
		start := f*e.hopSize - pad
		lo := max(start, 0)
		hi := min(start+e.frameSize, len(signal))
		var sum float64
		for i := lo; i < hi; i++ {
			sum += signal[i] * signal[i]
		}
		out[f] = math.Sqrt(sum / float64(e.frameSize))
	}
	return out
}

// ComputeDynamics derives RMS, dBFS, peak and crest factor. Logs and
// divisions are guarded with common.Epsilon so silence stays finite.
func (e *Energy) ComputeDynamics(signal []float64) Dynamics {
	globalRMS := common.RMS(signal)
	peak := common.Peak(signal)
	guardedRMS := math.Max(globalRMS, common.Epsilon)

	return Dynamics{
		FrameRMSMean:  common.Mean(e.FrameRMS(signal)),
		GlobalRMS:     globalRMS,
		RMSDBFS:       20 * math.Log10(guardedRMS),
		Peak:          peak,
		CrestFactorDB: 20 * math.Log10(math.Max(peak, common.Epsilon)/guardedRMS),
	}
}

// EnergyProxy maps an RMS level linearly from the band [low, high] onto
// [0, 1], clamped. It is a calibrated proxy, not a perceptual model.
func EnergyProxy(rms, low, high float64) float64 {
	if high <= low {
		return 0
	}
	return common.Clamp((rms-low)/(high-low), 0, 1)
}
