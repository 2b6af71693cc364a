package model

import (
	"fmt"

	"github.com/RyanBlaney/sonido-atlas/algorithms/stats"
	"github.com/RyanBlaney/sonido-atlas/catalog"
	"github.com/RyanBlaney/sonido-atlas/features"
)

// ScaleVector aligns m to the document's features and divides by scale.
// Features the model does not know are ignored.
func (d *Document) ScaleVector(m features.Map) ([]float64, error) {
	schema, err := d.Schema()
	if err != nil {
		return nil, err
	}
	if len(d.Scale) != schema.Len() {
		return nil, fmt.Errorf("scale has %d entries, feature_names has %d", len(d.Scale), schema.Len())
	}

	x := schema.Vectorize(m).Dense(schema.Len())
	for i := range x {
		x[i] /= d.Scale[i]
	}
	return x, nil
}

// Predict returns the nearest centroid for a raw feature map. Ties go to the
// lowest cluster index.
func (d *Document) Predict(m features.Map) (int, error) {
	if len(d.Centroids) == 0 {
		return 0, fmt.Errorf("model has no centroids")
	}
	x, err := d.ScaleVector(m)
	if err != nil {
		return 0, err
	}
	return stats.Predict(x, d.Centroids), nil
}

// Assignment is one track's cluster, in input order.
type Assignment struct {
	SpotifyID string   `json:"spotifyId"`
	Name      string   `json:"name"`
	Artists   []string `json:"artists"`
	Cluster   int      `json:"cluster"`
}

// NewAssignments pairs tracks with their labels by position.
func NewAssignments(tracks []catalog.Track, labels []int) ([]Assignment, error) {
	if len(tracks) != len(labels) {
		return nil, fmt.Errorf("%d tracks but %d labels", len(tracks), len(labels))
	}
	out := make([]Assignment, len(tracks))
	for i, t := range tracks {
		out[i] = Assignment{
			SpotifyID: t.ID,
			Name:      t.Name,
			Artists:   t.Artists,
			Cluster:   labels[i],
		}
	}
	return out, nil
}

// WriteAssignments writes the assignment list as indented JSON.
func WriteAssignments(path string, assignments []Assignment) error {
	if assignments == nil {
		assignments = []Assignment{}
	}
	return writeJSON(path, assignments)
}

// ReadAssignments loads an assignment list.
func ReadAssignments(path string) ([]Assignment, error) {
	var out []Assignment
	if err := readJSON(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}
