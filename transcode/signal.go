package transcode

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrRaggedMatrix is returned by MixToMono when rows differ in length.
var ErrRaggedMatrix = errors.New("sample matrix rows differ in length")

// Signal is a mono waveform, nominally in [-1, 1].
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Duration of the signal.
func (s *Signal) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

// DurationMS is the duration in milliseconds as a float.
func (s *Signal) DurationMS() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate) * 1000.0
}

// Deinterleave splits interleaved PCM into channel-major rows.
func Deinterleave(pcm []float64, channels int) [][]float64 {
	if channels <= 1 {
		out := make([]float64, len(pcm))
		copy(out, pcm)
		return [][]float64{out}
	}

	frames := len(pcm) / channels
	rows := make([][]float64, channels)
	for c := range rows {
		rows[c] = make([]float64, frames)
	}
	for i := range frames {
		for c := range channels {
			rows[c][i] = pcm[i*channels+c]
		}
	}
	return rows
}

// MixToMono averages a two-dimensional sample matrix down to one channel.
// The channel axis is taken to be the shorter dimension, so both
// channel-major and sample-major layouts mix correctly. Rows must all have
// the same length.
func MixToMono(m [][]float64) ([]float64, error) {
	if len(m) == 0 {
		return nil, nil
	}
	cols := len(m[0])
	for i, row := range m {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d samples, row 0 has %d", ErrRaggedMatrix, i, len(row), cols)
		}
	}
	if len(m) == 1 {
		out := make([]float64, cols)
		copy(out, m[0])
		return out, nil
	}

	if len(m) < cols {
		// channel-major: average rows
		out := make([]float64, cols)
		for _, row := range m {
			for i, v := range row {
				out[i] += v
			}
		}
		scale := 1.0 / float64(len(m))
		for i := range out {
			out[i] *= scale
		}
		return out, nil
	}

	// sample-major: average each row
	out := make([]float64, len(m))
	for i, row := range m {
		var sum float64
		for _, v := range row {
			sum += v
		}
		if len(row) > 0 {
			out[i] = sum / float64(len(row))
		}
	}
	return out, nil
}

// Truncate keeps at most floor(maxSeconds*rate) samples. Shorter input is
// returned unchanged; nothing is padded.
func Truncate(samples []float64, sampleRate int, maxSeconds float64) []float64 {
	if maxSeconds <= 0 {
		return samples
	}
	n := int(math.Floor(maxSeconds * float64(sampleRate)))
	if n < len(samples) {
		return samples[:n]
	}
	return samples
}
