package model_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-atlas/catalog"
	"github.com/RyanBlaney/sonido-atlas/features"
	"github.com/RyanBlaney/sonido-atlas/model"
)

func threeTracks() []features.Map {
	same := features.Map{"attr__energy": 0.5, "attr__has_energy": 1, "attr__tempo": 120}
	return []features.Map{
		features.Merge(same),
		features.Merge(same),
		{"attr__energy": 50, "attr__has_energy": 1, "attr__tempo": 900},
	}
}

func twoGroups(n int) []features.Map {
	out := make([]features.Map, n)
	for i := range out {
		offset := float64(i%5) * 0.01
		if i%2 == 0 {
			out[i] = features.Map{"a": 1 + offset, "b": 0}
		} else {
			out[i] = features.Map{"a": 0, "b": 1 + offset}
		}
	}
	return out
}

func trainOptions(k int) model.TrainOptions {
	opts := model.DefaultTrainOptions()
	opts.K = k
	return opts
}

func TestThreeTrackEndToEnd(t *testing.T) {
	result, err := model.NewTrainer(trainOptions(2)).Fit(context.Background(), threeTracks())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if result.Labels[0] != result.Labels[1] {
		t.Fatalf("identical tracks split: %v", result.Labels)
	}
	if result.Labels[2] == result.Labels[0] {
		t.Fatalf("outlier shares a cluster: %v", result.Labels)
	}
	if result.Silhouette != nil {
		t.Fatalf("silhouette = %v, want nil below %d tracks", *result.Silhouette, model.MinSilhouetteTracks)
	}
}

func TestTrainingIsReproducible(t *testing.T) {
	maps := twoGroups(80)
	a, err := model.NewTrainer(trainOptions(3)).Fit(context.Background(), maps)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	b, err := model.NewTrainer(trainOptions(3)).Fit(context.Background(), maps)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] {
			t.Fatalf("label %d differs: %d vs %d", i, a.Labels[i], b.Labels[i])
		}
	}
	for j := range a.Centroids {
		for d := range a.Centroids[j] {
			if a.Centroids[j][d] != b.Centroids[j][d] {
				t.Fatalf("centroid %d differs", j)
			}
		}
	}
	if (a.Silhouette == nil) != (b.Silhouette == nil) || (a.Silhouette != nil && *a.Silhouette != *b.Silhouette) {
		t.Fatal("silhouette differs between runs")
	}
}

func TestSilhouetteScoredForLargeCatalog(t *testing.T) {
	result, err := model.NewTrainer(trainOptions(2)).Fit(context.Background(), twoGroups(60))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if result.Silhouette == nil {
		t.Fatal("silhouette missing for 60 tracks")
	}
	if s := *result.Silhouette; s < -1 || s > 1 {
		t.Fatalf("silhouette = %v outside [-1, 1]", s)
	}
	if *result.Silhouette < 0.9 {
		t.Fatalf("silhouette = %v, want > 0.9 for separated groups", *result.Silhouette)
	}
}

func TestSilhouetteNullForSingleCluster(t *testing.T) {
	result, err := model.NewTrainer(trainOptions(1)).Fit(context.Background(), twoGroups(60))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if result.Silhouette != nil {
		t.Fatalf("silhouette = %v, want nil for k=1", *result.Silhouette)
	}
}

func TestSilhouetteSampleCap(t *testing.T) {
	opts := trainOptions(2)
	opts.SilhouetteSample = 20
	result, err := model.NewTrainer(opts).Fit(context.Background(), twoGroups(60))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if result.Silhouette == nil {
		t.Fatal("silhouette missing for a capped sample")
	}

	opts.SilhouetteSample = 0
	result, err = model.NewTrainer(opts).Fit(context.Background(), twoGroups(60))
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if result.Silhouette != nil {
		t.Fatal("silhouette scored with sampling disabled")
	}
}

func TestFitErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := model.NewTrainer(trainOptions(2)).Fit(ctx, nil); err == nil {
		t.Fatal("expected error for empty catalog")
	}
	if _, err := model.NewTrainer(trainOptions(4)).Fit(ctx, threeTracks()); err == nil {
		t.Fatal("expected error when k exceeds tracks")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := model.NewTrainer(trainOptions(2)).Fit(cancelled, threeTracks()); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestExportPredictRoundTrip(t *testing.T) {
	maps := threeTracks()
	opts := trainOptions(2)
	result, err := model.NewTrainer(opts).Fit(context.Background(), maps)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	path := filepath.Join(t.TempDir(), model.ModelFileName)
	if err := model.WriteDocument(path, model.NewDocument(result, opts)); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}

	doc, err := model.ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if doc.SchemaVersion != 1 || doc.K != 2 {
		t.Fatalf("schema_version=%d k=%d", doc.SchemaVersion, doc.K)
	}
	if doc.Metadata == nil || doc.Metadata.RunID == "" || doc.Metadata.NTracks != 3 {
		t.Fatalf("metadata = %+v", doc.Metadata)
	}

	for i, m := range maps {
		got, err := doc.Predict(m)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		if got != result.Labels[i] {
			t.Fatalf("track %d predicted %d, trained %d", i, got, result.Labels[i])
		}
	}
}

func TestDocumentJSONKeys(t *testing.T) {
	opts := trainOptions(2)
	result, err := model.NewTrainer(opts).Fit(context.Background(), threeTracks())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	path := filepath.Join(t.TempDir(), model.ModelFileName)
	if err := model.WriteDocument(path, model.NewDocument(result, opts)); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	for _, key := range []string{`"schema_version": 1`, `"k": 2`, `"feature_names"`, `"scale"`, `"centroids"`, `"silhouette_sample": null`} {
		if !strings.Contains(text, key) {
			t.Fatalf("document missing %s:\n%s", key, text)
		}
	}
}

func TestReadDocumentRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"future version", `{"schema_version": 2, "k": 1, "feature_names": ["a"], "scale": [1], "centroids": [[0]]}`},
		{"k mismatch", `{"schema_version": 1, "k": 2, "feature_names": ["a"], "scale": [1], "centroids": [[0]]}`},
		{"scale length", `{"schema_version": 1, "k": 1, "feature_names": ["a", "b"], "scale": [1], "centroids": [[0, 0]]}`},
		{"centroid width", `{"schema_version": 1, "k": 1, "feature_names": ["a"], "scale": [1], "centroids": [[0, 1]]}`},
		{"zero scale", `{"schema_version": 1, "k": 1, "feature_names": ["a"], "scale": [0], "centroids": [[0]]}`},
		{"duplicate names", `{"schema_version": 1, "k": 1, "feature_names": ["a", "a"], "scale": [1, 1], "centroids": [[0, 0]]}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := model.ReadDocument(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	path := filepath.Join(t.TempDir(), "model.json")
	body := `{"schema_version": 2, "k": 1, "feature_names": ["a"], "scale": [1], "centroids": [[0]]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := model.ReadDocument(path); !errors.Is(err, model.ErrUnsupportedVersion) {
		t.Fatalf("got %v, want ErrUnsupportedVersion", err)
	}
}

func TestPredictHandDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	body := `{"schema_version": 1, "k": 2, "feature_names": ["a", "b"], "scale": [2, 4],
		"centroids": [[0, 0], [1, 1]], "silhouette_sample": null, "future_field": true}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	doc, err := model.ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}

	// (2, 4) scales to (1, 1): centroid 1
	if got, _ := doc.Predict(features.Map{"a": 2, "b": 4, "ignored": 100}); got != 1 {
		t.Fatalf("got %d want 1", got)
	}
	// (1, 2) scales to (0.5, 0.5): equidistant, lowest index wins
	if got, _ := doc.Predict(features.Map{"a": 1, "b": 2}); got != 0 {
		t.Fatalf("tie got %d want 0", got)
	}
}

func TestAssignmentsKeepOrder(t *testing.T) {
	tracks, err := catalog.Parse([]byte(`[
		{"id": "x", "name": "One", "artists": ["A"]},
		{"id": "y", "name": "Two", "artists": ["B", "C"]}
	]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	assignments, err := model.NewAssignments(tracks, []int{1, 0})
	if err != nil {
		t.Fatalf("NewAssignments: %v", err)
	}
	path := filepath.Join(t.TempDir(), model.AssignmentsFileName)
	if err := model.WriteAssignments(path, assignments); err != nil {
		t.Fatalf("WriteAssignments: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"spotifyId": "x"`) {
		t.Fatalf("missing spotifyId key:\n%s", data)
	}

	back, err := model.ReadAssignments(path)
	if err != nil {
		t.Fatalf("ReadAssignments: %v", err)
	}
	if back[0].SpotifyID != "x" || back[0].Cluster != 1 || back[1].SpotifyID != "y" || back[1].Cluster != 0 {
		t.Fatalf("assignments = %+v", back)
	}

	if _, err := model.NewAssignments(tracks, []int{0}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
