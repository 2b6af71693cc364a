package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
	"github.com/RyanBlaney/sonido-atlas/algorithms/filters"
)

// Gating constants from ITU-R BS.1770-4.
const (
	loudnessBlockSeconds = 0.4
	loudnessBlockOverlap = 0.75
	absoluteGateLUFS     = -70.0
	relativeGateLU       = -10.0
	loudnessOffset       = -0.691
)

// K-weighting stages: a +4 dB high shelf around 1.5 kHz followed by a
// 38 Hz high-pass (RLB curve).
const (
	shelfFreq    = 1500.0
	shelfQ       = 1 / math.Sqrt2
	shelfGainDB  = 4.0
	highPassFreq = 38.0
	highPassQ    = 0.5
)

// LoudnessMeter measures integrated loudness of a mono signal in LUFS. It
// holds no filter state, so one meter may serve concurrent callers.
type LoudnessMeter struct {
	sampleRate int
}

// NewLoudnessMeter creates a meter for signals at sampleRate.
func NewLoudnessMeter(sampleRate int) *LoudnessMeter {
	return &LoudnessMeter{sampleRate: sampleRate}
}

// KWeighting builds fresh K-weighting stages for the meter's sample rate.
// It fails when the rate is too low to place the shelf below Nyquist.
func (m *LoudnessMeter) KWeighting() ([]*filters.Biquad, error) {
	shelf, err := filters.NewHighShelf(m.sampleRate, shelfFreq, shelfQ, shelfGainDB)
	if err != nil {
		return nil, err
	}
	highPass, err := filters.NewHighPass(m.sampleRate, highPassFreq, highPassQ)
	if err != nil {
		return nil, err
	}
	return []*filters.Biquad{shelf, highPass}, nil
}

// Integrated returns the gated loudness. ok is false when the signal is
// shorter than one block, the sample rate cannot carry the K-weighting
// filter, or every block falls below the gates.
func (m *LoudnessMeter) Integrated(signal []float64) (lufs float64, ok bool) {
	if m.sampleRate <= 0 {
		return 0, false
	}
	rate := float64(m.sampleRate)
	duration := float64(len(signal)) / rate
	if duration < loudnessBlockSeconds {
		return 0, false
	}

	stages, err := m.KWeighting()
	if err != nil {
		return 0, false
	}
	weighted := signal
	for _, stage := range stages {
		weighted = stage.ProcessBuffer(weighted)
	}

	step := 1.0 - loudnessBlockOverlap
	numBlocks := int(math.Round((duration-loudnessBlockSeconds)/(loudnessBlockSeconds*step))) + 1
	blockLen := loudnessBlockSeconds * rate

	power := make([]float64, 0, numBlocks)
	for j := range numBlocks {
		lo := int(loudnessBlockSeconds * (float64(j) * step) * rate)
		hi := int(loudnessBlockSeconds * (float64(j)*step + 1) * rate)
		hi = min(hi, len(weighted))
		var sum float64
		for i := lo; i < hi; i++ {
			sum += weighted[i] * weighted[i]
		}
		power = append(power, sum/blockLen)
	}

	blockLoudness := func(z float64) float64 {
		return loudnessOffset + 10*math.Log10(z)
	}

	gatedMean := func(threshold float64) (float64, bool) {
		var sum float64
		n := 0
		for _, z := range power {
			if z > 0 && blockLoudness(z) > threshold {
				sum += z
				n++
			}
		}
		if n == 0 {
			return 0, false
		}
		return sum / float64(n), true
	}

	absMean, found := gatedMean(absoluteGateLUFS)
	if !found {
		return 0, false
	}

	relativeGate := blockLoudness(absMean) + relativeGateLU
	relMean, found := gatedMean(math.Max(relativeGate, absoluteGateLUFS))
	if !found {
		return 0, false
	}

	lufs = blockLoudness(relMean)
	if !common.IsFinite(lufs) {
		return 0, false
	}
	return lufs, true
}
