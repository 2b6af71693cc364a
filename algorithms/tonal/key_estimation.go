package tonal

import (
	"fmt"

	"github.com/RyanBlaney/sonido-atlas/algorithms/chroma"
	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
)

// KeyMode represents major or minor mode. The numeric values are the ones
// written to descriptor records.
type KeyMode int

const (
	KeyModeMinor KeyMode = 0
	KeyModeMajor KeyMode = 1
)

func (m KeyMode) String() string {
	if m == KeyModeMajor {
		return "major"
	}
	return "minor"
}

// Krumhansl-Kessler probe tone profiles, tonic first.
var (
	KrumhanslMajor = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	KrumhanslMinor = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// KeyEstimationResult is the winning key and how clearly it won.
type KeyEstimationResult struct {
	Key  int     `json:"key"` // 0=C ... 11=B
	Mode KeyMode `json:"mode"`
	// Confidence is the gap between the best major and best minor scores.
	Confidence  float64   `json:"confidence"`
	MajorScores []float64 `json:"major_scores"`
	MinorScores []float64 `json:"minor_scores"`
}

// Name renders the key, e.g. "F# minor".
func (r KeyEstimationResult) Name() string {
	return fmt.Sprintf("%s %s", chroma.Labels()[r.Key], r.Mode)
}

// KeyEstimator matches a mean chroma profile against rotated templates.
type KeyEstimator struct {
	major []float64
	minor []float64
}

// NewKeyEstimator uses the Krumhansl profiles.
func NewKeyEstimator() *KeyEstimator {
	est, _ := NewKeyEstimatorWithTemplates(KrumhanslMajor, KrumhanslMinor)
	return est
}

// NewKeyEstimatorWithTemplates accepts custom 12-element templates, which are
// L1-normalized before use.
func NewKeyEstimatorWithTemplates(major, minor []float64) (*KeyEstimator, error) {
	if len(major) != chroma.NumPitchClasses || len(minor) != chroma.NumPitchClasses {
		return nil, fmt.Errorf("key templates need %d values, got %d and %d",
			chroma.NumPitchClasses, len(major), len(minor))
	}
	return &KeyEstimator{
		major: common.L1Normalize(major, 0),
		minor: common.L1Normalize(minor, 0),
	}, nil
}

// Estimate scores every rotation of both templates by dot product with the
// profile. The first maximal rotation wins within a family and major wins a
// tie between families.
func (ke *KeyEstimator) Estimate(profile []float64) KeyEstimationResult {
	majorScores := rotationScores(profile, ke.major)
	minorScores := rotationScores(profile, ke.minor)

	kMajor := common.ArgMax(majorScores)
	kMinor := common.ArgMax(minorScores)
	cMajor := majorScores[kMajor]
	cMinor := minorScores[kMinor]

	result := KeyEstimationResult{
		MajorScores: majorScores,
		MinorScores: minorScores,
	}
	if cMajor >= cMinor {
		result.Key = kMajor
		result.Mode = KeyModeMajor
		result.Confidence = cMajor - cMinor
	} else {
		result.Key = kMinor
		result.Mode = KeyModeMinor
		result.Confidence = cMinor - cMajor
	}
	return result
}

func rotationScores(profile, template []float64) []float64 {
	scores := make([]float64, chroma.NumPitchClasses)
	for k := range scores {
		rolled := common.Roll(template, k)
		var dot float64
		for i := range rolled {
			if i < len(profile) {
				dot += profile[i] * rolled[i]
			}
		}
		scores[k] = dot
	}
	return scores
}
