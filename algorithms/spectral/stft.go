package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-atlas/algorithms/windowing"
	"github.com/RyanBlaney/sonido-atlas/logging"
)

// Default framing shared by every descriptor.
const (
	DefaultWindowSize = 2048
	DefaultHopSize    = 512
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft    *FFT
	logger logging.Logger
}

// STFTResult holds the result of STFT analysis
type STFTResult struct {
	Magnitude      [][]float64    `json:"magnitude"`       // Time x Frequency magnitude matrix
	Complex        [][]complex128 `json:"-"`               // Raw complex spectrogram (not serialized)
	TimeFrames     int            `json:"time_frames"`     // Number of time frames
	FreqBins       int            `json:"freq_bins"`       // Number of frequency bins
	SampleRate     int            `json:"sample_rate"`     // Sample rate
	WindowSize     int            `json:"window_size"`     // FFT window size
	HopSize        int            `json:"hop_size"`        // Hop size between frames
	FreqResolution float64        `json:"freq_resolution"` // Frequency resolution (Hz/bin)
	TimeResolution float64        `json:"time_resolution"` // Time resolution (seconds/frame)
}

// Power returns |X|^2 per frame.
func (r *STFTResult) Power() [][]float64 {
	power := make([][]float64, len(r.Magnitude))
	for t, frame := range r.Magnitude {
		power[t] = make([]float64, len(frame))
		for k, m := range frame {
			power[t][k] = m * m
		}
	}
	return power
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
	Coefficients() []float64
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
		}),
	}
}

// Compute runs a centered STFT with a periodic Hann window. Frame t is
// centred on sample t*hopSize; the signal is zero padded by windowSize/2 on
// both sides so there are 1 + len(signal)/hopSize frames.
func (s *STFT) Compute(signal []float64, windowSize, hopSize, sampleRate int) (*STFTResult, error) {
	return s.ComputeWithWindow(signal, windowSize, hopSize, sampleRate, windowing.NewHann(windowSize, false), true)
}

// ComputeWithWindow computes STFT with parallel processing and custom window type
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, window Window, center bool) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	if center {
		signal = padCenter(signal, windowSize/2)
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	if len(signal) < windowSize || numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	complexSpectrum := make([][]complex128, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
		complexSpectrum[i] = make([]complex128, freqBins)
	}

	numWorkers := s.getOptimalWorkerCount(numFrames)

	type frameJob struct {
		frameIdx int
		startIdx int
	}

	jobs := make(chan frameJob, numFrames)

	var wg sync.WaitGroup
	var windowErr error
	var errOnce sync.Once

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Reuse frame buffer for this worker
			frameBuffer := make([]float64, windowSize)

			for job := range jobs {
				copy(frameBuffer, signal[job.startIdx:job.startIdx+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						errOnce.Do(func() { windowErr = err })
						continue
					}
				}

				fftResult := s.fft.Compute(frameBuffer)

				for i := range freqBins {
					complexSpectrum[job.frameIdx][i] = fftResult[i]
					magnitude[job.frameIdx][i] = cmplx.Abs(fftResult[i])
				}
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameJob{frameIdx: frameIdx, startIdx: frameIdx * hopSize}
	}
	close(jobs)

	wg.Wait()

	if windowErr != nil {
		return nil, fmt.Errorf("apply window: %w", windowErr)
	}

	s.logger.Debug("STFT computed", logging.Fields{
		"frames":  numFrames,
		"bins":    freqBins,
		"workers": numWorkers,
	})

	return &STFTResult{
		Magnitude:      magnitude,
		Complex:        complexSpectrum,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// Inverse reconstructs a signal of the given length from a centered,
// periodic-Hann STFT by weighted overlap-add.
func (s *STFT) Inverse(spectrum [][]complex128, windowSize, hopSize, length int) []float64 {
	window := windowing.NewHann(windowSize, false).Coefficients()

	padded := windowSize + hopSize*(len(spectrum)-1)
	out := make([]float64, padded)
	norm := make([]float64, padded)

	for t, frame := range spectrum {
		timeFrame := s.fft.InverseReal(frame, windowSize)
		start := t * hopSize
		for i, v := range timeFrame {
			out[start+i] += v * window[i]
			norm[start+i] += window[i] * window[i]
		}
	}

	for i := range out {
		if norm[i] > tiny {
			out[i] /= norm[i]
		}
	}

	offset := windowSize / 2
	result := make([]float64, length)
	for i := range result {
		if j := i + offset; j < len(out) {
			result[i] = out[j]
		}
	}
	return result
}

// tiny is the smallest normal float64, used where a sum of squared window
// values can vanish at the padded edges.
const tiny = 2.2250738585072014e-308

func padCenter(signal []float64, pad int) []float64 {
	padded := make([]float64, len(signal)+2*pad)
	copy(padded[pad:], signal)
	return padded
}

// getOptimalWorkerCount determines the optimal number of workers based on workload
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	// For small workloads, don't over-parallelize
	if numFrames < 100 {
		return max(1, min(numCPU/2, numFrames))
	}

	// For medium workloads, use most CPUs
	if numFrames < 1000 {
		return min(numCPU, 8)
	}

	return numCPU
}
