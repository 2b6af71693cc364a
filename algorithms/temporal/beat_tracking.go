package temporal

import (
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
	"github.com/RyanBlaney/sonido-atlas/algorithms/windowing"
)

// BeatTracker picks beat frames by dynamic programming over the onset
// envelope, rewarding strong onsets spaced close to the tempo period.
type BeatTracker struct {
	sampleRate int
	hopSize    int
	tightness  float64
	trim       bool
	tempo      *TempoEstimation
}

// NewBeatTracker creates a beat tracker
func NewBeatTracker(sampleRate, hopSize int) *BeatTracker {
	return &BeatTracker{
		sampleRate: sampleRate,
		hopSize:    hopSize,
		tightness:  100,
		trim:       true,
		tempo:      NewTempoEstimation(sampleRate, hopSize).WithAggregate(AggregateMean),
	}
}

// Track returns the estimated tempo and the beat positions as frame indices.
// A silent envelope yields no beats.
func (bt *BeatTracker) Track(onsets []float64) (float64, []int) {
	if len(onsets) == 0 || slices.Max(onsets) <= 0 {
		return 0, nil
	}

	bpm := bt.tempo.EstimateFromOnsets(onsets)
	if bpm <= 0 {
		return 0, nil
	}

	frameRate := float64(bt.sampleRate) / float64(bt.hopSize)
	period := int(math.Round(60.0 * frameRate / bpm))
	if period < 1 {
		return bpm, nil
	}

	localScore := bt.localScore(bt.normalize(onsets), period)
	backlink, cumScore := bt.dynamicProgram(localScore, period)

	tail := lastBeat(cumScore)
	beats := []int{tail}
	for backlink[beats[len(beats)-1]] >= 0 {
		beats = append(beats, backlink[beats[len(beats)-1]])
	}
	slices.Reverse(beats)

	return bpm, bt.trimBeats(localScore, beats)
}

// normalize divides by the sample standard deviation.
func (bt *BeatTracker) normalize(onsets []float64) []float64 {
	std := common.PopulationStd(onsets)
	if n := len(onsets); n > 1 {
		std *= math.Sqrt(float64(n) / float64(n-1))
	}
	out := make([]float64, len(onsets))
	for i, v := range onsets {
		out[i] = v / (std + tiny)
	}
	return out
}

// localScore smooths the envelope with a Gaussian spanning two periods.
func (bt *BeatTracker) localScore(onsets []float64, period int) []float64 {
	window := make([]float64, 2*period+1)
	for i := range window {
		x := float64(i-period) * 32.0 / float64(period)
		window[i] = math.Exp(-0.5 * x * x)
	}
	return convolveSame(onsets, window)
}

func (bt *BeatTracker) dynamicProgram(localScore []float64, period int) ([]int, []float64) {
	n := len(localScore)
	backlink := make([]int, n)
	cumScore := make([]float64, n)

	scoreThresh := 0.01 * slices.Max(localScore)
	firstBeat := true

	minOffset := int(math.Round(float64(period) / 2))
	maxOffset := 2 * period
	logPeriod := math.Log(float64(period))

	for i, score := range localScore {
		bestScore := math.Inf(-1)
		beatLocation := -1
		for loc := i - minOffset; loc >= i-maxOffset; loc-- {
			if loc < 0 {
				break
			}
			d := math.Log(float64(i-loc)) - logPeriod
			candidate := cumScore[loc] - bt.tightness*d*d
			if candidate > bestScore {
				bestScore = candidate
				beatLocation = loc
			}
		}

		if beatLocation >= 0 {
			cumScore[i] = score + bestScore
		} else {
			cumScore[i] = score
		}

		if firstBeat && score < scoreThresh {
			backlink[i] = -1
		} else {
			backlink[i] = beatLocation
			firstBeat = false
		}
	}

	return backlink, cumScore
}

// lastBeat is the last local maximum of the cumulative score that exceeds
// half the median of all local maxima.
func lastBeat(cumScore []float64) int {
	n := len(cumScore)
	isMax := make([]bool, n)
	var maxima []float64
	for i, v := range cumScore {
		prev := v
		if i > 0 {
			prev = cumScore[i-1]
		}
		next := v
		if i < n-1 {
			next = cumScore[i+1]
		}
		if v > prev && v >= next {
			isMax[i] = true
			maxima = append(maxima, v)
		}
	}
	if len(maxima) == 0 {
		return n - 1
	}

	median := common.Median(maxima)
	for i := n - 1; i >= 0; i-- {
		if isMax[i] && 2*cumScore[i] > median {
			return i
		}
	}
	return n - 1
}

// trimBeats drops weak leading and trailing beats: those whose smoothed local
// score does not exceed half its RMS.
func (bt *BeatTracker) trimBeats(localScore []float64, beats []int) []int {
	if len(beats) == 0 {
		return beats
	}

	atBeats := make([]float64, len(beats))
	for i, b := range beats {
		atBeats[i] = localScore[b]
	}
	smooth := convolveSame(atBeats, windowing.NewHann(5, false).Coefficients())

	threshold := 0.0
	if bt.trim {
		threshold = 0.5 * common.RMS(smooth)
	}

	first, last := -1, -1
	for i, v := range smooth {
		if v > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil
	}
	// the last strong beat is excluded
	return beats[first:last]
}

// convolveSame is a full linear convolution cropped to len(x), centred.
func convolveSame(x, kernel []float64) []float64 {
	out := make([]float64, len(x))
	offset := (len(kernel) - 1) / 2
	for i := range out {
		var acc float64
		for k, w := range kernel {
			j := i + offset - k
			if j >= 0 && j < len(x) {
				acc += x[j] * w
			}
		}
		out[i] = acc
	}
	return out
}

const tiny = 2.2250738585072014e-308
