// Package features turns per-track metadata and descriptor records into
// named numeric features and aligns them to a shared, sorted schema.
package features

import (
	"maps"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-atlas/catalog"
	"github.com/RyanBlaney/sonido-atlas/descriptors"
)

// Feature name prefixes. Each builder owns one prefix, so merged maps never
// collide.
const (
	AttributePrefix  = "attr__"
	ClassifierPrefix = "cls__"
	DescriptorPrefix = "dsp__"
)

// Map is a set of named, finite feature values for one track.
type Map map[string]float64

// Names returns the keys in lexicographic order.
func (m Map) Names() []string {
	return slices.Sorted(maps.Keys(m))
}

// Merge returns a fresh map holding the union of the inputs. Later maps win
// on collision; the inputs are not modified.
func Merge(ms ...Map) Map {
	size := 0
	for _, m := range ms {
		size += len(m)
	}
	out := make(Map, size)
	for _, m := range ms {
		maps.Copy(out, m)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// TrackFeatures merges every builder's output for one track. rec may be nil
// when the track has no analyzed audio.
func TrackFeatures(track *catalog.Track, rec *descriptors.Record) Map {
	return Merge(
		AttributeFeatures(track.Attributes),
		ClassifierFeatures(track.HighLevel()),
		DescriptorFeatures(rec),
	)
}
