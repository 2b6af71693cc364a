package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-atlas/features"
)

// SchemaVersion is the document version written by this package. Readers
// accept documents up to this version; later versions only add fields.
const SchemaVersion = 1

// File names inside an output directory.
const (
	ModelFileName       = "kmeans_model.json"
	AssignmentsFileName = "cluster_assignments.json"
)

// ErrUnsupportedVersion is returned for documents newer than SchemaVersion.
var ErrUnsupportedVersion = errors.New("unsupported model schema version")

// Document is the portable model. A raw feature vector x is scored by
// aligning it to FeatureNames, dividing element-wise by Scale (no mean is
// subtracted) and taking the nearest row of Centroids by Euclidean distance.
// Centroids live in that scaled space.
type Document struct {
	SchemaVersion int         `json:"schema_version"`
	K             int         `json:"k"`
	FeatureNames  []string    `json:"feature_names"`
	Scale         []float64   `json:"scale"`
	Centroids     [][]float64 `json:"centroids"`
	Silhouette    *float64    `json:"silhouette_sample"`
	Metadata      *Metadata   `json:"metadata,omitempty"`

	schemaOnce sync.Once
	schema     *features.Schema
	schemaErr  error
}

// Metadata describes the run that produced a document. Consumers may ignore
// it.
type Metadata struct {
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	NTracks      int       `json:"n_tracks"`
	Seed         int64     `json:"seed"`
	BatchSize    int       `json:"batch_size"`
	Inertia      float64   `json:"inertia"`
	ClusterSizes []int     `json:"cluster_sizes"`
}

// NewDocument exports a training result.
func NewDocument(result *Result, opts TrainOptions) *Document {
	return &Document{
		SchemaVersion: SchemaVersion,
		K:             len(result.Centroids),
		FeatureNames:  result.Schema.Names(),
		Scale:         result.Scale,
		Centroids:     result.Centroids,
		Silhouette:    result.Silhouette,
		Metadata: &Metadata{
			RunID:        uuid.NewString(),
			CreatedAt:    time.Now().UTC(),
			NTracks:      len(result.Labels),
			Seed:         opts.Seed,
			BatchSize:    opts.BatchSize,
			Inertia:      result.Inertia,
			ClusterSizes: result.Sizes,
		},
		schema: result.Schema,
	}
}

// Validate checks the document's shape.
func (d *Document) Validate() error {
	if d.SchemaVersion < 1 {
		return fmt.Errorf("schema_version %d is invalid", d.SchemaVersion)
	}
	if d.SchemaVersion > SchemaVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.SchemaVersion)
	}
	if d.K < 1 {
		return fmt.Errorf("k must be positive, got %d", d.K)
	}
	if len(d.Centroids) != d.K {
		return fmt.Errorf("k=%d but %d centroids", d.K, len(d.Centroids))
	}
	n := len(d.FeatureNames)
	if n == 0 {
		return fmt.Errorf("feature_names is empty")
	}
	if len(d.Scale) != n {
		return fmt.Errorf("scale has %d entries, feature_names has %d", len(d.Scale), n)
	}
	for i, s := range d.Scale {
		if !(s > 0) || math.IsInf(s, 0) {
			return fmt.Errorf("scale[%d] = %v is not a positive finite number", i, s)
		}
	}
	for i, c := range d.Centroids {
		if len(c) != n {
			return fmt.Errorf("centroid %d has %d entries, want %d", i, len(c), n)
		}
	}
	if d.Silhouette != nil && (*d.Silhouette < -1 || *d.Silhouette > 1) {
		return fmt.Errorf("silhouette_sample %v outside [-1, 1]", *d.Silhouette)
	}
	if _, err := d.Schema(); err != nil {
		return err
	}
	return nil
}

// Schema returns the feature schema in document order.
func (d *Document) Schema() (*features.Schema, error) {
	d.schemaOnce.Do(func() {
		if d.schema == nil {
			d.schema, d.schemaErr = features.SchemaFromNames(d.FeatureNames)
		}
	})
	return d.schema, d.schemaErr
}

// WriteDocument writes d as indented JSON, replacing path atomically.
func WriteDocument(path string, d *Document) error {
	return writeJSON(path, d)
}

// ReadDocument loads and validates a model document.
func ReadDocument(path string) (*Document, error) {
	var d Document
	if err := readJSON(path, &d); err != nil {
		return nil, err
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &d, nil
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
