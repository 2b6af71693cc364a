package transcode

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-atlas/logging"
)

// AudioData is interleaved PCM at the file's native rate and channel count.
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	Duration   time.Duration `json:"duration"`
	Codec      string        `json:"codec,omitempty"`
}

// Frames returns the number of samples per channel.
func (a *AudioData) Frames() int {
	if a.Channels <= 0 {
		return 0
	}
	return len(a.PCM) / a.Channels
}

// Decoder turns a file on disk into PCM.
type Decoder interface {
	Decode(ctx context.Context, path string) (*AudioData, error)
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	FFmpegPath  string        `json:"ffmpeg_path"`  // Path to ffmpeg binary
	FFprobePath string        `json:"ffprobe_path"` // Path to ffprobe binary
	Timeout     time.Duration `json:"timeout"`      // Timeout per ffmpeg invocation, 0 for none
	// MaxDuration asks ffmpeg to stop early. The loader still truncates exactly.
	MaxDuration time.Duration `json:"max_duration"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		FFmpegPath:  "ffmpeg",  // Assume in PATH
		FFprobePath: "ffprobe", // Assume in PATH
		Timeout:     2 * time.Minute,
	}
}

// FFmpegDecoder decodes through ffmpeg/ffprobe subprocesses. No resampling or
// downmixing happens here; the loader owns those steps.
type FFmpegDecoder struct {
	config *DecoderConfig
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
}

// NewFFmpegDecoder creates a new audio decoder
func NewFFmpegDecoder(config *DecoderConfig) *FFmpegDecoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &FFmpegDecoder{config: config}
}

// Decode probes then decodes path to float64 PCM.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "Decode",
		"filename":  path,
	})

	if _, err := os.Stat(path); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}

	logger.Debug("Starting audio file decode")

	metadata, err := d.probe(ctx, path)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, &DecodeError{Path: path, Err: err}
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
		"input_bitrate":     metadata.Bitrate,
	})

	output, err := d.run(ctx, d.config.FFmpegPath, d.buildFFmpegArgs(path, metadata))
	if err != nil {
		logger.Error(err, "Ffmpeg decode failed")
		return nil, &DecodeError{Path: path, Err: err}
	}

	return processOutput(path, output, metadata, logger)
}

func (d *FFmpegDecoder) probe(ctx context.Context, path string) (*AudioMetadata, error) {
	args := []string{
		"-v", "quiet", // Suppress verbose output
		"-print_format", "json", // JSON output
		"-show_streams",          // Show stream info
		"-select_streams", "a:0", // First audio stream only
		path,
	}
	output, err := d.run(ctx, d.config.FFprobePath, args)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseFFprobeOutput(output)
}

func (d *FFmpegDecoder) run(ctx context.Context, bin string, args []string) ([]byte, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("%w, stderr: %s", err, strings.TrimSpace(string(exitError.Stderr)))
		}
		return nil, err
	}
	return output, nil
}

// buildFFmpegArgs keeps the native rate and channel layout
func (d *FFmpegDecoder) buildFFmpegArgs(path string, metadata *AudioMetadata) []string {
	args := []string{
		"-v", "error",
		"-i", path,
		"-map", "0:a:0",
		"-vn",
		"-f", "f64le", // Output raw float64 little-endian
		"-ac", strconv.Itoa(metadata.Channels),
		"-ar", strconv.Itoa(metadata.SampleRate),
	}

	if d.config.MaxDuration > 0 {
		// one second of slack so the loader's exact cut never runs short
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()+1))
	}

	return append(args, "pipe:1")
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
			Duration   string `json:"duration"`
			BitRate    string `json:"bit_rate"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %q", stream.SampleRate)
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 || stream.Channels > maxChannels {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
	}, nil
}

const maxChannels = 8

func processOutput(path string, output []byte, metadata *AudioMetadata, logger logging.Logger) (*AudioData, error) {
	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, decodeErr(path, "no audio samples decoded")
	}
	if len(samples)%metadata.Channels != 0 {
		return nil, decodeErr(path, "%d samples do not divide into %d channels", len(samples), metadata.Channels)
	}

	frames := len(samples) / metadata.Channels
	duration := time.Duration(frames) * time.Second / time.Duration(metadata.SampleRate)

	logger.Debug("FFmpeg decode completed successfully", logging.Fields{
		"output_samples":  len(samples),
		"sample_rate":     metadata.SampleRate,
		"channels":        metadata.Channels,
		"output_duration": duration.Seconds(),
	})

	return &AudioData{
		PCM:        samples,
		SampleRate: metadata.SampleRate,
		Channels:   metadata.Channels,
		Duration:   duration,
		Codec:      metadata.Codec,
	}, nil
}

// bytesToFloat64 converts raw float64 bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	if len(data)%8 != 0 {
		// Trim to multiple of 8 bytes
		data = data[:len(data)-(len(data)%8)]
	}

	if len(data) == 0 {
		return nil
	}

	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)

	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}

// CheckFFmpeg verifies ffmpeg and ffprobe are runnable.
func (d *FFmpegDecoder) CheckFFmpeg(ctx context.Context) error {
	if _, err := d.run(ctx, d.config.FFmpegPath, []string{"-version"}); err != nil {
		return fmt.Errorf("ffmpeg not found at %s: %w", d.config.FFmpegPath, err)
	}
	if _, err := d.run(ctx, d.config.FFprobePath, []string{"-version"}); err != nil {
		return fmt.Errorf("ffprobe not found at %s: %w", d.config.FFprobePath, err)
	}
	return nil
}
