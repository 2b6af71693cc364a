package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-atlas/algorithms/chroma"
	"github.com/RyanBlaney/sonido-atlas/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTraining(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutDir) == "" {
		return errors.New("paths.out_dir must be set")
	}
	return nil
}

func (c *Config) validateTraining() error {
	t := c.Training
	if t.K < 1 {
		return fmt.Errorf("training.k must be at least 1, got %d", t.K)
	}
	if t.BatchSize < 1 {
		return fmt.Errorf("training.batch_size must be positive, got %d", t.BatchSize)
	}
	if t.MaxIter < 1 {
		return fmt.Errorf("training.max_iter must be positive, got %d", t.MaxIter)
	}
	if t.SilhouetteSample < 0 {
		return fmt.Errorf("training.silhouette_sample must not be negative, got %d", t.SilhouetteSample)
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	a := c.Analysis
	if a.TargetSampleRate < 0 {
		return fmt.Errorf("analysis.target_sample_rate must not be negative, got %d", a.TargetSampleRate)
	}
	if a.MaxDurationSeconds < 0 {
		return fmt.Errorf("analysis.max_duration_seconds must not be negative, got %v", a.MaxDurationSeconds)
	}
	if a.Workers < 1 {
		return fmt.Errorf("analysis.workers must be positive, got %d", a.Workers)
	}
	if a.DecodeTimeoutSeconds < 0 {
		return fmt.Errorf("analysis.decode_timeout_seconds must not be negative, got %d", a.DecodeTimeoutSeconds)
	}
	if !(a.EnergyProxyHigh > a.EnergyProxyLow) {
		return fmt.Errorf("analysis.energy_proxy_high (%v) must exceed energy_proxy_low (%v)", a.EnergyProxyHigh, a.EnergyProxyLow)
	}
	for name, template := range map[string][]float64{
		"major_template": a.MajorTemplate,
		"minor_template": a.MinorTemplate,
	} {
		if template != nil && len(template) != chroma.NumPitchClasses {
			return fmt.Errorf("analysis.%s must have %d entries, got %d", name, chroma.NumPitchClasses, len(template))
		}
	}
	return nil
}
