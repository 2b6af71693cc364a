package transcode

import (
	"math"

	"github.com/RyanBlaney/sonido-atlas/algorithms/temporal"
)

const (
	trimFrameLength = 2048
	trimHopLength   = 512
	powerFloor      = 1e-10
)

// TrimSilence drops leading and trailing frames whose RMS power sits more than
// topDB below the loudest frame. Frames are centered (zero padded) with length
// 2048 and hop 512. Power is floored at 1e-10 before the dB conversion, so a
// signal with no frame above the floor (all zeros) is returned unchanged.
func TrimSilence(samples []float64, topDB float64) []float64 {
	if len(samples) == 0 {
		return samples
	}

	rms := temporal.NewEnergy(trimFrameLength, trimHopLength).FrameRMS(samples)

	refPower := 0.0
	for _, r := range rms {
		refPower = math.Max(refPower, r*r)
	}
	refDB := 10 * math.Log10(math.Max(powerFloor, refPower))

	first, last := -1, -1
	for i, r := range rms {
		db := 10*math.Log10(math.Max(powerFloor, r*r)) - refDB
		if db > -topDB {
			if first < 0 {
				first = i
			}
			last = i
		}
	}

	if first < 0 {
		return samples[:0]
	}

	start := first * trimHopLength
	end := min(len(samples), (last+1)*trimHopLength)
	if start >= end {
		return samples[:0]
	}
	return samples[start:end]
}
