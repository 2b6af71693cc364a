package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/RyanBlaney/sonido-atlas/descriptors"
	"github.com/RyanBlaney/sonido-atlas/model"
	"github.com/RyanBlaney/sonido-atlas/transcode"
)

//go:embed sample_config.toml
var sampleConfig string

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = "sonido-atlas.toml"

// Paths locates the catalog and the run outputs.
type Paths struct {
	Input  string `toml:"input"`
	OutDir string `toml:"out_dir"`
	// CachePath is the descriptor cache database. Empty means
	// <out_dir>/descriptor_cache.db.
	CachePath string `toml:"cache_path"`
}

// Training configures scaling and clustering.
type Training struct {
	K                int   `toml:"k"`
	Seed             int64 `toml:"seed"`
	BatchSize        int   `toml:"batch_size"`
	MaxIter          int   `toml:"max_iter"`
	SilhouetteSample int   `toml:"silhouette_sample"`
}

// Analysis configures decoding and descriptor extraction.
type Analysis struct {
	// TargetSampleRate resamples decoded audio when non-zero.
	TargetSampleRate   int     `toml:"target_sample_rate"`
	MaxDurationSeconds float64 `toml:"max_duration_seconds"`
	TrimSilence        bool    `toml:"trim_silence"`
	// Workers bounds concurrent analyses. Zero means one per CPU.
	Workers           int       `toml:"workers"`
	LoudnessMeter     bool      `toml:"loudness_meter"`
	FailOnDecodeError bool      `toml:"fail_on_decode_error"`
	EnergyProxyLow    float64   `toml:"energy_proxy_low"`
	EnergyProxyHigh   float64   `toml:"energy_proxy_high"`
	MajorTemplate     []float64 `toml:"major_template"`
	MinorTemplate     []float64 `toml:"minor_template"`

	FFmpegPath           string `toml:"ffmpeg_path"`
	FFprobePath          string `toml:"ffprobe_path"`
	DecodeTimeoutSeconds int    `toml:"decode_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level string `toml:"level"`
}

// Config encapsulates all configuration values.
//
// Sections:
//   - Paths: catalog input, output directory and descriptor cache
//   - Training: k-means and silhouette parameters
//   - Analysis: decoder and descriptor settings
//   - Logging: log level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Training Training `toml:"training"`
	Analysis Analysis `toml:"analysis"`
	Logging  Logging  `toml:"logging"`
}

// Load parses and validates a configuration file. A missing file yields the
// defaults; the boolean reports whether the file was read. An empty path means
// DefaultFileName in the working directory.
func Load(path string) (*Config, bool, error) {
	c := Default()

	if path == "" {
		path = DefaultFileName
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, false, err
	}

	exists := false
	if _, statErr := os.Stat(resolved); statErr == nil {
		exists = true
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("stat config: %w", statErr)
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&c); err != nil {
			return nil, false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.normalize(); err != nil {
		return nil, false, err
	}
	if err := c.Validate(); err != nil {
		return nil, false, err
	}
	return &c, exists, nil
}

// Sample returns the commented sample configuration.
func Sample() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// DescriptorOptions returns the analyzer settings.
func (c *Config) DescriptorOptions() descriptors.Options {
	opts := descriptors.DefaultOptions()
	opts.EnergyLow = c.Analysis.EnergyProxyLow
	opts.EnergyHigh = c.Analysis.EnergyProxyHigh
	opts.LoudnessMeter = c.Analysis.LoudnessMeter
	opts.MajorTemplate = c.Analysis.MajorTemplate
	opts.MinorTemplate = c.Analysis.MinorTemplate
	return opts
}

// LoadOptions returns the waveform loader settings.
func (c *Config) LoadOptions() transcode.LoadOptions {
	opts := transcode.DefaultLoadOptions()
	opts.TargetSampleRate = c.Analysis.TargetSampleRate
	opts.MaxDuration = c.maxDuration()
	opts.TrimSilence = c.Analysis.TrimSilence
	return opts
}

// DecoderConfig returns the ffmpeg decoder settings.
func (c *Config) DecoderConfig() *transcode.DecoderConfig {
	cfg := transcode.DefaultDecoderConfig()
	if c.Analysis.FFmpegPath != "" {
		cfg.FFmpegPath = c.Analysis.FFmpegPath
	}
	if c.Analysis.FFprobePath != "" {
		cfg.FFprobePath = c.Analysis.FFprobePath
	}
	cfg.Timeout = time.Duration(c.Analysis.DecodeTimeoutSeconds) * time.Second
	cfg.MaxDuration = c.maxDuration()
	return cfg
}

// TrainOptions returns the trainer settings.
func (c *Config) TrainOptions() model.TrainOptions {
	return model.TrainOptions{
		K:                c.Training.K,
		Seed:             c.Training.Seed,
		BatchSize:        c.Training.BatchSize,
		MaxIterations:    c.Training.MaxIter,
		SilhouetteSample: c.Training.SilhouetteSample,
	}
}

func (c *Config) maxDuration() time.Duration {
	return time.Duration(c.Analysis.MaxDurationSeconds * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	return filepath.Clean(pathValue), nil
}
