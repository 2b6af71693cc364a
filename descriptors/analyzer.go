package descriptors

import (
	"context"
	"fmt"

	"github.com/RyanBlaney/sonido-atlas/algorithms/chroma"
	"github.com/RyanBlaney/sonido-atlas/algorithms/spectral"
	"github.com/RyanBlaney/sonido-atlas/algorithms/temporal"
	"github.com/RyanBlaney/sonido-atlas/algorithms/tonal"
	"github.com/RyanBlaney/sonido-atlas/logging"
	"github.com/RyanBlaney/sonido-atlas/transcode"
)

// Options configures descriptor extraction.
type Options struct {
	// EnergyLow and EnergyHigh bound the RMS band mapped onto [0, 1] by the
	// energy proxy.
	EnergyLow  float64 `json:"energy_low"`
	EnergyHigh float64 `json:"energy_high"`

	// LoudnessMeter enables integrated LUFS. When false loudness_lufs is
	// reported unavailable.
	LoudnessMeter bool `json:"loudness_meter"`

	// Key templates, tonic first. Nil means the Krumhansl profiles.
	MajorTemplate []float64 `json:"major_template,omitempty"`
	MinorTemplate []float64 `json:"minor_template,omitempty"`

	WindowSize int `json:"window_size"`
	HopSize    int `json:"hop_size"`
}

// DefaultOptions returns the calibrated defaults.
func DefaultOptions() Options {
	return Options{
		EnergyLow:     0.02,
		EnergyHigh:    0.20,
		LoudnessMeter: true,
		WindowSize:    spectral.DefaultWindowSize,
		HopSize:       spectral.DefaultHopSize,
	}
}

// Analyzer turns a normalized signal into a descriptor Record. It holds no
// per-signal state and is safe for concurrent use.
type Analyzer struct {
	opts   Options
	loader *transcode.Loader
	logger logging.Logger

	stft         *spectral.STFT
	chroma       *chroma.ChromaSTFT
	keyEstimator *tonal.KeyEstimator
	hpss         *tonal.HPSS
	energy       *temporal.Energy
	onsets       *temporal.OnsetDetection
}

// NewAnalyzer builds an analyzer. loader may be nil when only Analyze is
// used.
func NewAnalyzer(loader *transcode.Loader, opts Options) (*Analyzer, error) {
	if opts.WindowSize <= 0 {
		opts.WindowSize = spectral.DefaultWindowSize
	}
	if opts.HopSize <= 0 {
		opts.HopSize = spectral.DefaultHopSize
	}
	if opts.EnergyHigh <= opts.EnergyLow {
		return nil, fmt.Errorf("energy band [%g, %g] is empty", opts.EnergyLow, opts.EnergyHigh)
	}

	keyEstimator := tonal.NewKeyEstimator()
	if opts.MajorTemplate != nil || opts.MinorTemplate != nil {
		major, minor := opts.MajorTemplate, opts.MinorTemplate
		if major == nil {
			major = tonal.KrumhanslMajor
		}
		if minor == nil {
			minor = tonal.KrumhanslMinor
		}
		var err error
		if keyEstimator, err = tonal.NewKeyEstimatorWithTemplates(major, minor); err != nil {
			return nil, fmt.Errorf("key templates: %w", err)
		}
	}

	return &Analyzer{
		opts:   opts,
		loader: loader,
		logger: logging.WithFields(logging.Fields{
			"component": "descriptor_analyzer",
		}),
		stft:         spectral.NewSTFT(),
		chroma:       chroma.NewChromaSTFTDefault(),
		keyEstimator: keyEstimator,
		hpss:         tonal.NewHPSS(),
		energy:       temporal.NewEnergy(opts.WindowSize, opts.HopSize),
		onsets:       temporal.NewOnsetDetection(),
	}, nil
}

// AnalyzeFile loads path through the analyzer's loader and analyzes it.
// Only decode failures are returned as errors.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*Record, error) {
	if a.loader == nil {
		return nil, fmt.Errorf("analyzer has no loader")
	}
	signal, err := a.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return a.Analyze(signal), nil
}

// Analyze computes every descriptor. The spectrogram is computed once and
// shared. Degenerate input (empty, silent, too short) produces documented
// defaults rather than an error.
func (a *Analyzer) Analyze(signal *transcode.Signal) *Record {
	logger := a.logger.WithFields(logging.Fields{
		"function":    "Analyze",
		"samples":     len(signal.Samples),
		"sample_rate": signal.SampleRate,
	})

	samples := signal.Samples
	sr := signal.SampleRate

	spec, err := a.stft.Compute(samples, a.opts.WindowSize, a.opts.HopSize, sr)
	if err != nil {
		logger.Warn("No spectrogram, spectral descriptors fall back to defaults", logging.Fields{
			"error": err.Error(),
		})
	}

	rec := newRecord()
	rec.set(DurationMS, Available(signal.DurationMS()))

	onsets := a.onsets.Strength(spec)
	tempo := temporal.NewTempoEstimation(sr, a.opts.HopSize).EstimateFromOnsets(onsets)
	rec.set(Tempo, Available(tempo))

	dyn := a.energy.ComputeDynamics(samples)
	rec.set(LoudnessLUFS, a.loudness(samples, sr))
	rec.set(LoudnessRMSDBFS, Available(dyn.RMSDBFS))
	rec.set(EnergyProxy, Available(temporal.EnergyProxy(dyn.FrameRMSMean, a.opts.EnergyLow, a.opts.EnergyHigh)))

	key := a.keyEstimator.Estimate(a.chroma.MeanProfile(a.chroma.Chromagram(spec)))
	rec.set(Key, Available(float64(key.Key)))
	rec.set(Mode, Available(float64(key.Mode)))
	rec.set(KeyConfidence, Available(key.Confidence))

	_, beats := temporal.NewBeatTracker(sr, a.opts.HopSize).Track(onsets)
	meter := temporal.GuessMeter(onsets, beats)
	rec.set(TimeSignatureGuess, Available(float64(meter.TimeSignature)))
	rec.set(TimeSignatureConfidence, Available(meter.Confidence))

	rec.set(CrestFactorDB, Available(dyn.CrestFactorDB))
	rec.set(HarmonicRatio, Available(a.hpss.HarmonicRatio(samples, spec)))

	summary := spectral.Summarize(samples, spec)
	rec.set(SpectralCentroidMean, Available(summary.CentroidMean))
	rec.set(SpectralBandwidthMean, Available(summary.BandwidthMean))
	rec.set(SpectralRolloff85Mean, Available(summary.Rolloff85Mean))
	rec.set(SpectralFlatnessMean, Available(summary.FlatnessMean))
	rec.set(ZCRMean, Available(summary.ZCRMean))

	rec.set(RMS, Available(dyn.FrameRMSMean))
	rec.set(Peak, Available(dyn.Peak))

	logger.Debug("Descriptors computed", logging.Fields{
		"tempo":          tempo,
		"key":            key.Name(),
		"key_confidence": key.Confidence,
		"beats":          len(beats),
		"time_signature": meter.TimeSignature,
	})

	return rec
}

func (a *Analyzer) loudness(samples []float64, sr int) Value {
	if !a.opts.LoudnessMeter {
		return Unavailable()
	}
	lufs, ok := temporal.NewLoudnessMeter(sr).Integrated(samples)
	if !ok {
		return Unavailable()
	}
	return Available(lufs)
}
