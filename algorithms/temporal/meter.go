package temporal

import (
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
)

// Time signature guesses. Anything other than triple meter is reported as 4.
const (
	DefaultTimeSignature = 4
	minBeatsForMeter     = 8
	accentStdFloor       = 1e-6
	minAccentLags        = 6
)

// MeterGuess is a heuristic 3-vs-4 decision, not a time-signature detector.
type MeterGuess struct {
	TimeSignature int     `json:"time_signature_guess"`
	Confidence    float64 `json:"time_signature_confidence"`
}

// GuessMeter compares the beat-accent autocorrelation at lags 3 and 4.
// Too few beats, a flat accent pattern or too short a sequence all return
// (4, 0).
func GuessMeter(onsets []float64, beats []int) MeterGuess {
	fallback := MeterGuess{TimeSignature: DefaultTimeSignature}
	if len(beats) < minBeatsForMeter {
		return fallback
	}

	accents := BeatSync(onsets, beats)
	mean := common.Mean(accents)
	for i := range accents {
		accents[i] -= mean
	}
	if common.PopulationStd(accents) < accentStdFloor {
		return fallback
	}

	ac := common.Autocorrelate(accents, 0)
	if len(ac) < minAccentLags {
		return fallback
	}

	lag3, lag4 := ac[3], ac[4]
	confidence := math.Abs(lag3-lag4) / (math.Abs(lag3) + math.Abs(lag4) + common.Epsilon)
	if lag3 > lag4 {
		return MeterGuess{TimeSignature: 3, Confidence: confidence}
	}
	return MeterGuess{TimeSignature: 4, Confidence: confidence}
}

// BeatSync averages the envelope over the segments delimited by
// [0, beats..., len(onsets)], duplicates and out of range positions removed.
func BeatSync(onsets []float64, beats []int) []float64 {
	bounds := []int{0}
	for _, b := range beats {
		bounds = append(bounds, min(max(b, 0), len(onsets)))
	}
	bounds = append(bounds, len(onsets))
	slices.Sort(bounds)
	bounds = slices.Compact(bounds)

	out := make([]float64, 0, len(bounds)-1)
	for i := 1; i < len(bounds); i++ {
		out = append(out, common.Mean(onsets[bounds[i-1]:bounds[i]]))
	}
	return out
}
