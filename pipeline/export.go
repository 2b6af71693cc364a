package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/RyanBlaney/sonido-atlas/descriptors"
	"github.com/RyanBlaney/sonido-atlas/model"
)

// LockFileName guards an output directory while artifacts are written.
const LockFileName = ".sonido-atlas.lock"

// DescriptorsFileName is the single-file analysis output.
const DescriptorsFileName = "descriptors.json"

// ErrOutputLocked is returned when another run holds the output directory.
var ErrOutputLocked = errors.New("output directory is locked by another run")

// Export writes the model document and assignments into outDir and returns
// their paths.
func Export(outDir string, doc *model.Document, assignments []model.Assignment) (modelPath, assignmentsPath string, err error) {
	modelPath = filepath.Join(outDir, model.ModelFileName)
	assignmentsPath = filepath.Join(outDir, model.AssignmentsFileName)

	err = withOutputLock(outDir, func() error {
		if err := model.WriteDocument(modelPath, doc); err != nil {
			return fmt.Errorf("write model: %w", err)
		}
		if err := model.WriteAssignments(assignmentsPath, assignments); err != nil {
			return fmt.Errorf("write assignments: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	return modelPath, assignmentsPath, nil
}

// ExportDescriptors writes one descriptor record into outDir as
// descriptors.json and returns its path.
func ExportDescriptors(outDir string, rec *descriptors.Record) (string, error) {
	path := filepath.Join(outDir, DescriptorsFileName)
	err := withOutputLock(outDir, func() error {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode descriptors: %w", err)
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
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func withOutputLock(outDir string, fn func() error) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(outDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrOutputLocked, outDir)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	return fn()
}
