package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/RyanBlaney/sonido-atlas/model"
)

// CacheFileName is the descriptor cache created inside out_dir by default.
const CacheFileName = "descriptor_cache.db"

// Default returns the built-in configuration.
func Default() Config {
	train := model.DefaultTrainOptions()
	return Config{
		Paths: Paths{
			OutDir: "artifacts",
		},
		Training: Training{
			K:                train.K,
			Seed:             train.Seed,
			BatchSize:        train.BatchSize,
			MaxIter:          train.MaxIterations,
			SilhouetteSample: train.SilhouetteSample,
		},
		Analysis: Analysis{
			TrimSilence:          true,
			LoudnessMeter:        true,
			EnergyProxyLow:       0.02,
			EnergyProxyHigh:      0.20,
			FFmpegPath:           "ffmpeg",
			FFprobePath:          "ffprobe",
			DecodeTimeoutSeconds: 120,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// DescriptorCachePath returns paths.cache_path, or the default cache file
// inside paths.out_dir when it is unset.
func (c *Config) DescriptorCachePath() string {
	if c.Paths.CachePath != "" {
		return c.Paths.CachePath
	}
	return filepath.Join(c.Paths.OutDir, CacheFileName)
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.Input, err = expandPath(strings.TrimSpace(c.Paths.Input)); err != nil {
		return fmt.Errorf("paths.input: %w", err)
	}
	if c.Paths.OutDir, err = expandPath(strings.TrimSpace(c.Paths.OutDir)); err != nil {
		return fmt.Errorf("paths.out_dir: %w", err)
	}
	if c.Paths.CachePath, err = expandPath(strings.TrimSpace(c.Paths.CachePath)); err != nil {
		return fmt.Errorf("paths.cache_path: %w", err)
	}

	if c.Analysis.Workers == 0 {
		c.Analysis.Workers = runtime.NumCPU()
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}
