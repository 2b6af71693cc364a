package chroma

import (
	"math"

	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
	"github.com/RyanBlaney/sonido-atlas/algorithms/spectral"
)

// NumPitchClasses is the size of a chroma vector; bin 0 is C.
const NumPitchClasses = 12

// ChromaSTFT folds an STFT power spectrogram into 12 pitch classes.
// Each FFT bin between minFreq and maxFreq is assigned to the pitch class of
// its nearest equal-tempered note (A4 = tuningFreq).
type ChromaSTFT struct {
	tuningFreq float64
	minFreq    float64
	maxFreq    float64
}

// NewChromaSTFT creates a new STFT-based chromagram calculator
func NewChromaSTFT(tuningFreq float64) *ChromaSTFT {
	return &ChromaSTFT{
		tuningFreq: tuningFreq,
		minFreq:    80.0,   // Approximate E2
		maxFreq:    8000.0, // High enough for harmonics
	}
}

// NewChromaSTFTDefault creates chromagram with standard A4=440Hz tuning
func NewChromaSTFTDefault() *ChromaSTFT {
	return NewChromaSTFT(440.0)
}

// Chromagram returns one 12-bin frame per STFT frame, each scaled so its
// largest bin is 1. Silent frames stay zero.
func (cs *ChromaSTFT) Chromagram(result *spectral.STFTResult) [][]float64 {
	if result == nil {
		return [][]float64{}
	}

	mapping := cs.binMapping(result.FreqBins, result.FreqResolution)
	chromagram := make([][]float64, result.TimeFrames)

	for t, frame := range result.Magnitude {
		chroma := make([]float64, NumPitchClasses)
		for f, magnitude := range frame {
			if pc := mapping[f]; pc >= 0 {
				chroma[pc] += magnitude * magnitude
			}
		}

		peak := 0.0
		for _, v := range chroma {
			peak = math.Max(peak, v)
		}
		if peak > common.Epsilon {
			for i := range chroma {
				chroma[i] /= peak
			}
		}
		chromagram[t] = chroma
	}

	return chromagram
}

// MeanProfile averages the chromagram over time and normalizes it to sum to
// one (plus epsilon). An empty chromagram gives all zeros.
func (cs *ChromaSTFT) MeanProfile(chromagram [][]float64) []float64 {
	mean := make([]float64, NumPitchClasses)
	if len(chromagram) == 0 {
		return mean
	}

	for _, frame := range chromagram {
		for i, v := range frame {
			mean[i] += v
		}
	}

	var sum float64
	for i := range mean {
		mean[i] /= float64(len(chromagram))
		sum += mean[i]
	}
	for i := range mean {
		mean[i] /= sum + common.Epsilon
	}
	return mean
}

func (cs *ChromaSTFT) binMapping(freqBins int, freqResolution float64) []int {
	mapping := make([]int, freqBins)

	for f := range freqBins {
		frequency := float64(f) * freqResolution
		if frequency < cs.minFreq || frequency > cs.maxFreq {
			mapping[f] = -1
			continue
		}

		midi := 69.0 + 12.0*math.Log2(frequency/cs.tuningFreq)
		pc := int(math.Round(midi)) % NumPitchClasses
		if pc < 0 {
			pc += NumPitchClasses
		}
		mapping[f] = pc
	}

	return mapping
}

// Labels returns the pitch class names in bin order
func Labels() []string {
	return []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
}
