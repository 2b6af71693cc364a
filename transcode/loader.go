package transcode

import (
	"context"
	"errors"
	"time"

	"github.com/RyanBlaney/sonido-atlas/logging"
)

// LoadOptions controls the normalization steps applied after decoding.
type LoadOptions struct {
	// TargetSampleRate resamples when non-zero and different from the native rate.
	TargetSampleRate int
	// MaxDuration truncates when positive.
	MaxDuration time.Duration
	TrimSilence bool
	// TopDB is the silence threshold below the loudest frame. Zero means 40.
	TopDB float64
}

// DefaultLoadOptions keeps the native rate, no truncation, trimming on.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{TrimSilence: true, TopDB: 40}
}

// Loader produces mono signals ready for analysis:
// decode, mix down, resample, truncate, trim.
type Loader struct {
	decoder Decoder
	opts    LoadOptions
	logger  logging.Logger
}

// NewLoader builds a loader; a nil decoder falls back to ffmpeg with defaults.
func NewLoader(decoder Decoder, opts LoadOptions) *Loader {
	if decoder == nil {
		decoder = NewFFmpegDecoder(nil)
	}
	if opts.TopDB <= 0 {
		opts.TopDB = 40
	}
	return &Loader{
		decoder: decoder,
		opts:    opts,
		logger: logging.WithFields(logging.Fields{
			"component": "loader",
		}),
	}
}

// Load decodes path and returns the normalized signal. Only decode failures
// are errors, and they always satisfy errors.Is(err, ErrDecode).
func (l *Loader) Load(ctx context.Context, path string) (*Signal, error) {
	audio, err := l.decoder.Decode(ctx, path)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			return nil, err
		}
		return nil, &DecodeError{Path: path, Err: err}
	}
	return l.Normalize(path, audio)
}

// Normalize applies the post-decode steps to already decoded audio.
func (l *Loader) Normalize(path string, audio *AudioData) (*Signal, error) {
	if audio == nil || len(audio.PCM) == 0 {
		return nil, decodeErr(path, "no samples")
	}
	if audio.Channels <= 0 || audio.Channels > maxChannels {
		return nil, decodeErr(path, "invalid channel count: %d", audio.Channels)
	}
	if len(audio.PCM)%audio.Channels != 0 {
		return nil, decodeErr(path, "%d samples do not divide into %d channels", len(audio.PCM), audio.Channels)
	}
	if audio.SampleRate <= 0 {
		return nil, decodeErr(path, "invalid sample rate: %d", audio.SampleRate)
	}

	samples, err := MixToMono(Deinterleave(audio.PCM, audio.Channels))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	rate := audio.SampleRate

	if l.opts.TargetSampleRate > 0 && l.opts.TargetSampleRate != rate {
		samples = Resample(samples, rate, l.opts.TargetSampleRate)
		rate = l.opts.TargetSampleRate
	}

	if l.opts.MaxDuration > 0 {
		samples = Truncate(samples, rate, l.opts.MaxDuration.Seconds())
	}

	before := len(samples)
	if l.opts.TrimSilence {
		samples = TrimSilence(samples, l.opts.TopDB)
	}

	l.logger.Debug("Signal normalized", logging.Fields{
		"path":            path,
		"native_rate":     audio.SampleRate,
		"channels":        audio.Channels,
		"frames":          audio.Frames(),
		"sample_rate":     rate,
		"samples":         len(samples),
		"trimmed_samples": before - len(samples),
	})

	return &Signal{Samples: samples, SampleRate: rate}, nil
}
