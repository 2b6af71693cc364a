package features

import (
	"fmt"
	"maps"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Schema is the sorted, deduplicated list of feature names that fixes the
// column of every feature. It is immutable once built.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds the lexicographically sorted union of the maps' keys.
func NewSchema(ms []Map) *Schema {
	seen := make(map[string]struct{})
	for _, m := range ms {
		for name := range m {
			seen[name] = struct{}{}
		}
	}
	return newSchema(slices.Sorted(maps.Keys(seen)))
}

// SchemaFromNames rebuilds a schema from an exported name list, keeping its
// order. Duplicate names are rejected.
func SchemaFromNames(names []string) (*Schema, error) {
	s := newSchema(slices.Clone(names))
	if len(s.index) != len(names) {
		return nil, fmt.Errorf("feature names contain duplicates")
	}
	return s, nil
}

func newSchema(names []string) *Schema {
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	return &Schema{names: names, index: index}
}

// Names returns a copy of the ordered feature names.
func (s *Schema) Names() []string {
	return slices.Clone(s.names)
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return len(s.names)
}

// Index returns the column of name.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// SparseVector holds the non-zero-capable entries of a row, indices ascending.
type SparseVector struct {
	Indices []int
	Values  []float64
}

// Dense expands the vector to length n.
func (v SparseVector) Dense(n int) []float64 {
	out := make([]float64, n)
	for i, idx := range v.Indices {
		out[idx] = v.Values[i]
	}
	return out
}

// Vectorize aligns m to the schema. Keys outside the schema are dropped and
// missing columns are implicit zeros.
func (s *Schema) Vectorize(m Map) SparseVector {
	indices := make([]int, 0, len(m))
	for name := range m {
		if i, ok := s.index[name]; ok {
			indices = append(indices, i)
		}
	}
	slices.Sort(indices)

	values := make([]float64, len(indices))
	for j, i := range indices {
		values[j] = m[s.names[i]]
	}
	return SparseVector{Indices: indices, Values: values}
}

// Matrix stacks the vectorized maps into a rows x Len() dense matrix.
func (s *Schema) Matrix(ms []Map) *mat.Dense {
	if len(ms) == 0 || s.Len() == 0 {
		return &mat.Dense{}
	}
	x := mat.NewDense(len(ms), s.Len(), nil)
	for r, m := range ms {
		row := x.RawRowView(r)
		v := s.Vectorize(m)
		for j, idx := range v.Indices {
			row[idx] = v.Values[j]
		}
	}
	return x
}
