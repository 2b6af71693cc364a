package common

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Epsilon guards every log and division in the descriptor math.
const Epsilon = 1e-12

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// PopulationStd is the standard deviation with divisor N.
func PopulationStd(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	mean := stat.Mean(data, nil)
	var ss float64
	for _, v := range data {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(data)))
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}

// Peak returns max |x|.
func Peak(data []float64) float64 {
	peak := 0.0
	for _, v := range data {
		peak = math.Max(peak, math.Abs(v))
	}
	return peak
}

// Median of data; the input is not modified.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return 0.5 * (sorted[n/2-1] + sorted[n/2])
}

// MedianFilter is a centered running median of odd width. Edges are padded by
// reflection including the edge sample (d c b a | a b c d | d c b a).
func MedianFilter(data []float64, width int) []float64 {
	n := len(data)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if width < 1 {
		copy(out, data)
		return out
	}

	half := width / 2
	buf := make([]float64, width)
	for i := range n {
		for k := range width {
			buf[k] = data[reflectIndex(i-half+k, n)]
		}
		slices.Sort(buf)
		out[i] = buf[half]
	}
	return out
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// Autocorrelate returns the non-negative lags of the full linear
// autocorrelation of x, so out[0] is the signal energy.
func Autocorrelate(x []float64, maxLag int) []float64 {
	n := len(x)
	if maxLag <= 0 || maxLag > n {
		maxLag = n
	}
	out := make([]float64, maxLag)
	for lag := range maxLag {
		out[lag] = floats.Dot(x[:n-lag], x[lag:])
	}
	return out
}

// Roll shifts x right by k positions with wraparound: out[i] = x[(i-k) mod n].
func Roll(x []float64, k int) []float64 {
	n := len(x)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	for i := range n {
		j := ((i-k)%n + n) % n
		out[i] = x[j]
	}
	return out
}

// L1Normalize divides by the sum of absolute values, plus eps.
func L1Normalize(x []float64, eps float64) []float64 {
	var sum float64
	for _, v := range x {
		sum += math.Abs(v)
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v / (sum + eps)
	}
	return out
}

// PowerToDB converts power values to decibels relative to ref with a floor
// at amin. When topDB is positive the output is clipped to max-topDB.
func PowerToDB(power []float64, ref, amin, topDB float64) []float64 {
	out := make([]float64, len(power))
	refDB := 10 * math.Log10(math.Max(amin, ref))
	maxDB := math.Inf(-1)
	for i, p := range power {
		out[i] = 10*math.Log10(math.Max(amin, p)) - refDB
		maxDB = math.Max(maxDB, out[i])
	}
	if topDB > 0 {
		for i := range out {
			out[i] = math.Max(out[i], maxDB-topDB)
		}
	}
	return out
}

// Clamp limits value to the range [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ArgMax returns the index of the first maximum, or -1 for empty input.
func ArgMax(x []float64) int {
	if len(x) == 0 {
		return -1
	}
	return floats.MaxIdx(x)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
