package temporal

import (
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
	"github.com/RyanBlaney/sonido-atlas/algorithms/windowing"
)

// Aggregate reduces the per-frame tempogram to one value per lag.
type Aggregate int

const (
	AggregateMedian Aggregate = iota
	AggregateMean
)

// TempoEstimation estimates a global tempo from an onset envelope using a
// windowed autocorrelation tempogram and a log-normal prior.
type TempoEstimation struct {
	sampleRate int
	hopSize    int
	startBPM   float64
	stdBPM     float64 // prior width in octaves
	maxBPM     float64
	acSeconds  float64
	aggregate  Aggregate
}

// NewTempoEstimation creates a tempo estimator
func NewTempoEstimation(sampleRate, hopSize int) *TempoEstimation {
	return &TempoEstimation{
		sampleRate: sampleRate,
		hopSize:    hopSize,
		startBPM:   120,
		stdBPM:     1,
		maxBPM:     320,
		acSeconds:  8,
		aggregate:  AggregateMedian,
	}
}

// WithAggregate returns a copy using a different frame aggregate.
func (te *TempoEstimation) WithAggregate(a Aggregate) *TempoEstimation {
	c := *te
	c.aggregate = a
	return &c
}

// EstimateFromOnsets returns the tempo in BPM. An empty or all-zero envelope
// carries no rhythmic evidence and yields 0.
func (te *TempoEstimation) EstimateFromOnsets(onsets []float64) float64 {
	if len(onsets) == 0 || slices.Max(onsets) <= 0 {
		return 0
	}

	winLength := int(math.Floor(te.acSeconds * float64(te.sampleRate) / float64(te.hopSize)))
	if winLength < 2 {
		return 0
	}

	tempogram := te.tempogram(onsets, winLength)
	byLag := te.reduce(tempogram, winLength)

	best := -1
	bestScore := math.Inf(-1)
	for lag := 1; lag < winLength; lag++ {
		bpm := te.lagToBPM(lag)
		if bpm >= te.maxBPM {
			continue
		}
		prior := -0.5 * math.Pow((math.Log2(bpm)-math.Log2(te.startBPM))/te.stdBPM, 2)
		score := math.Log1p(1e6*byLag[lag]) + prior
		if score > bestScore {
			bestScore = score
			best = lag
		}
	}

	if best < 0 {
		return 0
	}
	return te.lagToBPM(best)
}

func (te *TempoEstimation) lagToBPM(lag int) float64 {
	return 60.0 * float64(te.sampleRate) / (float64(te.hopSize) * float64(lag))
}

// tempogram frames the envelope around every onset frame (linear ramp
// padding to zero), applies a Hann window, autocorrelates and normalizes each
// frame by its peak.
func (te *TempoEstimation) tempogram(onsets []float64, winLength int) [][]float64 {
	pad := winLength / 2
	padded := make([]float64, len(onsets)+2*pad)
	copy(padded[pad:], onsets)
	first, last := onsets[0], onsets[len(onsets)-1]
	for i := range pad {
		// ramps from 0 at the outer edge toward the edge value
		padded[i] = first * float64(i) / float64(pad)
		padded[len(padded)-1-i] = last * float64(i) / float64(pad)
	}

	window := windowing.NewHann(winLength, false).Coefficients()
	frame := make([]float64, winLength)

	out := make([][]float64, len(onsets))
	for t := range onsets {
		for i := range winLength {
			frame[i] = padded[t+i] * window[i]
		}
		ac := autocorrelateFFT(frame, winLength)

		peak := 0.0
		for _, v := range ac {
			peak = math.Max(peak, math.Abs(v))
		}
		if peak > 0 {
			for i := range ac {
				ac[i] /= peak
			}
		}
		out[t] = ac
	}
	return out
}

func (te *TempoEstimation) reduce(tempogram [][]float64, winLength int) []float64 {
	byLag := make([]float64, winLength)
	column := make([]float64, len(tempogram))
	for lag := range winLength {
		for t, frame := range tempogram {
			column[t] = frame[lag]
		}
		if te.aggregate == AggregateMean {
			byLag[lag] = common.Mean(column)
		} else {
			byLag[lag] = common.Median(column)
		}
	}
	return byLag
}
