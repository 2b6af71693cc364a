package stats

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
)

// ClusteringParams contains parameters for mini-batch k-means
type ClusteringParams struct {
	NumClusters   int     `json:"num_clusters"`
	BatchSize     int     `json:"batch_size"`
	MaxIterations int     `json:"max_iterations"` // passes over the data
	Tolerance     float64 `json:"tolerance"`      // center shift that counts as converged, 0 disables
	RandomSeed    int64   `json:"random_seed"`

	// MaxNoImprovement stops early after this many batches without a better
	// smoothed inertia, 0 disables.
	MaxNoImprovement int `json:"max_no_improvement"`
}

// DefaultClusteringParams returns the parameters used for training runs.
func DefaultClusteringParams() ClusteringParams {
	return ClusteringParams{
		NumClusters:      6,
		BatchSize:        2048,
		MaxIterations:    100,
		Tolerance:        0,
		RandomSeed:       42,
		MaxNoImprovement: 10,
	}
}

// ClusteringResult contains the results of clustering analysis
type ClusteringResult struct {
	Centers     [][]float64 `json:"centers"`
	Labels      []int       `json:"labels"`  // Cluster assignment for each point
	Inertia     float64     `json:"inertia"` // Total within-cluster sum of squares
	Sizes       []int       `json:"sizes"`
	NumClusters int         `json:"num_clusters"`
	Converged   bool        `json:"converged"`
	Steps       int         `json:"steps"`
}

// Clustering runs seeded mini-batch k-means over scaled feature rows.
//
// References:
//   - Sculley, D. (2010). "Web-scale k-means clustering"
//   - Arthur, D., & Vassilvitskii, S. (2007). "k-means++: The advantages of
//     careful seeding"
type Clustering struct {
	params ClusteringParams
	rng    *rand.Rand
}

// NewClusteringWithParams creates a clustering analyzer with custom parameters.
// Two analyzers built with the same params produce the same result on the
// same data.
func NewClusteringWithParams(params ClusteringParams) *Clustering {
	return &Clustering{
		params: params,
		rng:    rand.New(rand.NewSource(params.RandomSeed)),
	}
}

// Fit clusters the rows of x.
func (c *Clustering) Fit(x mat.Matrix) (*ClusteringResult, error) {
	n, dim := x.Dims()
	k := c.params.NumClusters

	if n == 0 || dim == 0 {
		return nil, fmt.Errorf("empty data")
	}
	if k < 1 {
		return nil, fmt.Errorf("number of clusters must be positive, got %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("number of clusters (%d) cannot exceed number of data points (%d)", k, n)
	}

	data := rowsOf(x)
	for i, row := range data {
		for _, v := range row {
			if !common.IsFinite(v) {
				return nil, fmt.Errorf("row %d contains a non-finite value", i)
			}
		}
	}

	batch := c.params.BatchSize
	if batch <= 0 || batch > n {
		batch = n
	}

	centers := c.initializeCenters(data, k, min(n, 3*batch))
	counts := make([]float64, k)

	maxIter := max(c.params.MaxIterations, 1)
	steps := (maxIter*n + batch - 1) / batch

	ewa, bestEWA := math.NaN(), math.Inf(1)
	alpha := math.Min(2*float64(batch)/float64(n+1), 1)
	noImprovement := 0
	converged := false
	step := 0

	batchIdx := make([]int, batch)
	batchLabels := make([]int, batch)
	old := make([]float64, dim)

	for step < steps {
		step++

		for i := range batchIdx {
			batchIdx[i] = c.rng.Intn(n)
		}

		batchInertia := 0.0
		for i, idx := range batchIdx {
			label, d := nearest(data[idx], centers)
			batchLabels[i] = label
			batchInertia += d
		}
		batchInertia /= float64(batch)

		shift := 0.0
		for i, idx := range batchIdx {
			j := batchLabels[i]
			copy(old, centers[j])
			counts[j]++
			eta := 1 / counts[j]
			// center += eta * (x - center)
			floats.Scale(1-eta, centers[j])
			floats.AddScaled(centers[j], eta, data[idx])
			shift += squaredDistance(old, centers[j])
		}

		if c.params.Tolerance > 0 && shift <= c.params.Tolerance {
			converged = true
			break
		}

		if math.IsNaN(ewa) {
			ewa = batchInertia
		} else {
			ewa = ewa*(1-alpha) + batchInertia*alpha
		}
		if ewa < bestEWA {
			bestEWA = ewa
			noImprovement = 0
		} else {
			noImprovement++
		}
		if c.params.MaxNoImprovement > 0 && noImprovement >= c.params.MaxNoImprovement {
			converged = true
			break
		}
	}

	labels := make([]int, n)
	sizes := make([]int, k)
	inertia := 0.0
	for i, point := range data {
		label, d := nearest(point, centers)
		labels[i] = label
		sizes[label]++
		inertia += d
	}

	return &ClusteringResult{
		Centers:     centers,
		Labels:      labels,
		Inertia:     inertia,
		Sizes:       sizes,
		NumClusters: k,
		Converged:   converged,
		Steps:       step,
	}, nil
}

// initializeCenters seeds k centers with k-means++ over a random subset of
// initSize rows.
// Reference: Arthur, D., & Vassilvitskii, S. (2007)
func (c *Clustering) initializeCenters(data [][]float64, k, initSize int) [][]float64 {
	perm := c.rng.Perm(len(data))[:initSize]
	pool := make([][]float64, initSize)
	for i, idx := range perm {
		pool[i] = data[idx]
	}

	dim := len(data[0])
	centers := make([][]float64, k)
	centers[0] = make([]float64, dim)
	copy(centers[0], pool[c.rng.Intn(len(pool))])

	distances := make([]float64, len(pool))
	for j, point := range pool {
		distances[j] = squaredDistance(point, centers[0])
	}

	for i := 1; i < k; i++ {
		centers[i] = make([]float64, dim)
		totalDist := floats.Sum(distances)

		// Choose next center with probability proportional to squared distance
		chosen := -1
		if totalDist > 0 {
			r := c.rng.Float64() * totalDist
			cumSum := 0.0
			for j, dist := range distances {
				cumSum += dist
				if cumSum >= r && dist > 0 {
					chosen = j
					break
				}
			}
		}
		if chosen < 0 {
			// all remaining points coincide with a center
			chosen = c.rng.Intn(len(pool))
		}
		copy(centers[i], pool[chosen])

		for j, point := range pool {
			if d := squaredDistance(point, centers[i]); d < distances[j] {
				distances[j] = d
			}
		}
	}

	return centers
}

// Predict returns the index of the nearest center. Ties go to the lowest index.
func Predict(point []float64, centers [][]float64) int {
	label, _ := nearest(point, centers)
	return label
}

func nearest(point []float64, centers [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for j, center := range centers {
		if d := squaredDistance(point, center); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best, bestDist
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// euclideanDistance calculates Euclidean distance between two points
func euclideanDistance(a, b []float64) float64 {
	return math.Sqrt(squaredDistance(a, b))
}

func rowsOf(x mat.Matrix) [][]float64 {
	n, dim := x.Dims()
	rows := make([][]float64, n)
	for i := range n {
		rows[i] = make([]float64, dim)
		mat.Row(rows[i], i, x)
	}
	return rows
}
