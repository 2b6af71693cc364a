package model

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/RyanBlaney/sonido-atlas/algorithms/stats"
	"github.com/RyanBlaney/sonido-atlas/features"
	"github.com/RyanBlaney/sonido-atlas/logging"
)

// MinSilhouetteTracks is the smallest catalog that gets a silhouette estimate.
const MinSilhouetteTracks = 50

// TrainOptions configures a training run.
type TrainOptions struct {
	K                int   `json:"k"`
	Seed             int64 `json:"seed"`
	BatchSize        int   `json:"batch_size"`
	MaxIterations    int   `json:"max_iterations"`
	SilhouetteSample int   `json:"silhouette_sample"`
}

// DefaultTrainOptions returns k=6, seed 42, batches of 2048, 100 passes and
// a silhouette sample of at most 1500 tracks.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		K:                6,
		Seed:             42,
		BatchSize:        2048,
		MaxIterations:    100,
		SilhouetteSample: 1500,
	}
}

// Result is a fitted model plus the per-track labels.
type Result struct {
	Schema    *features.Schema
	Scale     []float64
	Centroids [][]float64
	Labels    []int
	Sizes     []int
	Inertia   float64
	// Silhouette is nil when the sample was too small or could not be scored.
	Silhouette *float64
}

// Trainer scales feature rows and clusters them.
type Trainer struct {
	opts   TrainOptions
	logger logging.Logger
}

// NewTrainer creates a trainer.
func NewTrainer(opts TrainOptions) *Trainer {
	return &Trainer{
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "trainer",
		}),
	}
}

// Fit builds the schema, scales by per-feature standard deviation (no
// centering), runs mini-batch k-means and estimates a sampled silhouette.
// Identical maps and options give identical results.
func (t *Trainer) Fit(ctx context.Context, maps []features.Map) (*Result, error) {
	logger := t.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Fit",
		"tracks":   len(maps),
		"k":        t.opts.K,
	})

	if len(maps) == 0 {
		return nil, fmt.Errorf("no tracks to train on")
	}
	if t.opts.K < 1 {
		return nil, fmt.Errorf("k must be positive, got %d", t.opts.K)
	}
	if t.opts.K > len(maps) {
		return nil, fmt.Errorf("k=%d exceeds the %d tracks available", t.opts.K, len(maps))
	}

	schema := features.NewSchema(maps)
	if schema.Len() == 0 {
		return nil, fmt.Errorf("tracks have no features")
	}
	x := schema.Matrix(maps)

	scale, err := stats.FitScale(x)
	if err != nil {
		return nil, fmt.Errorf("fit scale: %w", err)
	}
	if err := stats.ApplyScale(x, scale); err != nil {
		return nil, fmt.Errorf("apply scale: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := stats.DefaultClusteringParams()
	params.NumClusters = t.opts.K
	params.RandomSeed = t.opts.Seed
	if t.opts.BatchSize > 0 {
		params.BatchSize = t.opts.BatchSize
	}
	if t.opts.MaxIterations > 0 {
		params.MaxIterations = t.opts.MaxIterations
	}

	clusters, err := stats.NewClusteringWithParams(params).Fit(x)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		Schema:    schema,
		Scale:     scale,
		Centroids: clusters.Centers,
		Labels:    clusters.Labels,
		Sizes:     clusters.Sizes,
		Inertia:   clusters.Inertia,
	}

	sampleN := min(t.opts.SilhouetteSample, len(maps))
	if len(maps) >= MinSilhouetteTracks && t.opts.K >= 2 && sampleN > 0 {
		rng := rand.New(rand.NewSource(t.opts.Seed))
		if score, ok := stats.SampledSilhouette(x, clusters.Labels, sampleN, rng); ok {
			result.Silhouette = &score
		} else {
			logger.Warn("Silhouette could not be scored", logging.Fields{"sample": sampleN})
		}
	}

	logger.Info("Model trained", logging.Fields{
		"features":   schema.Len(),
		"steps":      clusters.Steps,
		"converged":  clusters.Converged,
		"inertia":    clusters.Inertia,
		"silhouette": silhouetteField(result.Silhouette),
	})

	return result, nil
}

func silhouetteField(s *float64) any {
	if s == nil {
		return "n/a"
	}
	return *s
}
