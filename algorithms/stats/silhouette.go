package stats

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
)

// SampledSilhouette computes the mean silhouette coefficient over a random
// subset of at most sampleSize rows, drawn without replacement from rng.
// The second return is false when the score is undefined for the subset:
// fewer than two distinct labels, one label per row, or a non-finite result.
// A point alone in its cluster scores 0.
// Reference: Rousseeuw, P. J. (1987)
func SampledSilhouette(x mat.Matrix, labels []int, sampleSize int, rng *rand.Rand) (float64, bool) {
	n, _ := x.Dims()
	if n != len(labels) || n < 2 || sampleSize < 2 {
		return 0, false
	}

	idx := rng.Perm(n)
	if sampleSize < n {
		idx = idx[:sampleSize]
	}

	data := make([][]float64, len(idx))
	sub := make([]int, len(idx))
	for i, j := range idx {
		data[i] = mat.Row(nil, j, x)
		sub[i] = labels[j]
	}

	return Silhouette(data, sub)
}

// Silhouette computes the mean silhouette coefficient with Euclidean distance.
func Silhouette(data [][]float64, labels []int) (float64, bool) {
	n := len(data)
	sizes := make(map[int]int)
	for _, l := range labels {
		sizes[l]++
	}
	if len(sizes) < 2 || len(sizes) >= n {
		return 0, false
	}

	sum := 0.0
	totals := make(map[int]float64, len(sizes))
	for i := range n {
		clear(totals)
		for j := range n {
			if i != j {
				totals[labels[j]] += euclideanDistance(data[i], data[j])
			}
		}

		own := labels[i]
		if sizes[own] == 1 {
			continue
		}
		a := totals[own] / float64(sizes[own]-1)

		b := math.Inf(1)
		for label, total := range totals {
			if label == own {
				continue
			}
			if avg := total / float64(sizes[label]); avg < b {
				b = avg
			}
		}

		if denom := math.Max(a, b); denom > 0 {
			sum += (b - a) / denom
		}
	}

	score := sum / float64(n)
	if !common.IsFinite(score) {
		return 0, false
	}
	return score, true
}
