package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-atlas/model"
	"github.com/RyanBlaney/sonido-atlas/pipeline"
)

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.json")
	body := `[
		{"id": "x", "name": "One", "artists": ["A"], "energy": 0.5, "tempo": 120},
		{"id": "y", "name": "Two", "artists": ["B"], "energy": 0.5, "tempo": 120},
		{"id": "z", "name": "Three", "artists": ["C"], "energy": 40, "tempo": 900}
	]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "sonido-atlas.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "training.k")
}

func TestTrainThenPredict(t *testing.T) {
	catalogPath := writeCatalog(t)
	outDir := filepath.Join(t.TempDir(), "artifacts")
	configPath := filepath.Join(t.TempDir(), "absent.toml")

	out, logs, err := runCLI(t, []string{"train", "--input", catalogPath, "--out-dir", outDir, "--k", "2"}, configPath)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	requireContains(t, out, "Tracks: 3 | k=2 | silhouette(sample)=n/a")
	requireContains(t, logs, "Model trained")
	if strings.Contains(out, "Model trained") {
		t.Fatalf("log lines leaked into command output:\n%s", out)
	}
	requireContains(t, out, "Saved to: "+outDir)

	trained, err := model.ReadAssignments(filepath.Join(outDir, model.AssignmentsFileName))
	if err != nil {
		t.Fatalf("ReadAssignments: %v", err)
	}

	out, _, err = runCLI(t, []string{
		"predict", "--input", catalogPath,
		"--model", filepath.Join(outDir, model.ModelFileName),
		"--json", "--no-cache",
	}, configPath)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	var predicted []model.Assignment
	if err := json.Unmarshal([]byte(out), &predicted); err != nil {
		t.Fatalf("decode predict output: %v\n%s", err, out)
	}
	if len(predicted) != len(trained) {
		t.Fatalf("predicted %d tracks, trained %d", len(predicted), len(trained))
	}
	for i := range trained {
		if predicted[i].SpotifyID != trained[i].SpotifyID || predicted[i].Cluster != trained[i].Cluster {
			t.Fatalf("track %d: predicted %+v, trained %+v", i, predicted[i], trained[i])
		}
	}
}

func TestPredictRequiresModel(t *testing.T) {
	catalogPath := writeCatalog(t)
	configPath := filepath.Join(t.TempDir(), "absent.toml")
	_, _, err := runCLI(t, []string{
		"predict", "--input", catalogPath,
		"--model", filepath.Join(t.TempDir(), "missing.json"),
	}, configPath)
	if err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestAnalyzeRequiresOneFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "absent.toml")
	if _, _, err := runCLI(t, []string{"analyze"}, configPath); err == nil {
		t.Fatal("expected argument error")
	}
}

func TestRejectsUnknownLogLevel(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "absent.toml")
	_, _, err := runCLI(t, []string{"--log-level", "loud", "config", "validate"}, configPath)
	if err == nil || !strings.Contains(err.Error(), "log level") {
		t.Fatalf("got %v, want log level error", err)
	}
}

func writeMissingDecoderConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sonido-atlas.toml")
	body := fmt.Sprintf("[paths]\nout_dir = %q\n\n[analysis]\nffmpeg_path = %q\nffprobe_path = %q\n",
		filepath.Join(dir, "artifacts"),
		filepath.Join(dir, "missing-ffmpeg"),
		filepath.Join(dir, "missing-ffprobe"))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigValidateReportsMissingDecoder(t *testing.T) {
	out, _, err := runCLI(t, []string{"config", "validate"}, writeMissingDecoderConfig(t))
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "unavailable")
}

func TestAudioCommandsRequireDecoder(t *testing.T) {
	configPath := writeMissingDecoderConfig(t)

	dir := t.TempDir()
	audio := filepath.Join(dir, "a.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	catalogPath := filepath.Join(dir, "tracks.json")
	body := `[{"id": "x", "name": "One", "artists": ["A"], "energy": 0.5, "audio_path": "a.wav"},
		{"id": "y", "name": "Two", "artists": ["B"], "energy": 0.9}]`
	if err := os.WriteFile(catalogPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	_, _, err := runCLI(t, []string{"train", "--input", catalogPath, "--k", "1", "--no-progress"}, configPath)
	if !errors.Is(err, pipeline.ErrDecoderUnavailable) {
		t.Fatalf("train: got %v want ErrDecoderUnavailable", err)
	}

	_, _, err = runCLI(t, []string{"analyze", audio}, configPath)
	if !errors.Is(err, pipeline.ErrDecoderUnavailable) {
		t.Fatalf("analyze: got %v want ErrDecoderUnavailable", err)
	}
}
