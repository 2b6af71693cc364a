package spectral

import (
	"math"
)

// Slaney mel scale constants: linear below 1 kHz, logarithmic above.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

// MelScale builds Slaney-normalized mel filter banks.
type MelScale struct{}

// NewMelScale creates a new mel scale converter
func NewMelScale() *MelScale {
	return &MelScale{}
}

// HzToMel converts frequency in Hz to the Slaney mel scale
func (ms *MelScale) HzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSp
	}
	return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
}

// MelToHz converts Slaney mels back to Hz
func (ms *MelScale) MelToHz(mel float64) float64 {
	if mel < melMinLogMel {
		return melFSp * mel
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
}

// CreateMelFilterBank returns numFilters triangular filters over the
// fftSize/2+1 bins, each scaled to unit area in Hz.
func (ms *MelScale) CreateMelFilterBank(numFilters int, fftSize int, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	if numFilters <= 0 || fftSize <= 0 {
		return nil
	}
	if highFreq <= 0 {
		highFreq = float64(sampleRate) / 2
	}

	fftFreqs := FrequencyBins(sampleRate, fftSize)

	lowMel := ms.HzToMel(lowFreq)
	highMel := ms.HzToMel(highFreq)
	hzPoints := make([]float64, numFilters+2)
	melStep := (highMel - lowMel) / float64(numFilters+1)
	for i := range hzPoints {
		hzPoints[i] = ms.MelToHz(lowMel + float64(i)*melStep)
	}

	filterBank := make([][]float64, numFilters)
	for m := range numFilters {
		filterBank[m] = make([]float64, len(fftFreqs))
		left, center, right := hzPoints[m], hzPoints[m+1], hzPoints[m+2]
		enorm := 2.0 / (right - left)

		for k, f := range fftFreqs {
			lower := (f - left) / (center - left)
			upper := (right - f) / (right - center)
			if w := math.Min(lower, upper); w > 0 {
				filterBank[m][k] = w * enorm
			}
		}
	}

	return filterBank
}

// ApplyFilterBank applies mel filter bank to power spectrum
func (ms *MelScale) ApplyFilterBank(powerSpectrum []float64, filterBank [][]float64) []float64 {
	if len(filterBank) == 0 || len(powerSpectrum) == 0 {
		return []float64{}
	}

	melSpectrum := make([]float64, len(filterBank))

	for i, filter := range filterBank {
		sum := 0.0
		for j := 0; j < len(filter) && j < len(powerSpectrum); j++ {
			sum += powerSpectrum[j] * filter[j]
		}
		melSpectrum[i] = sum
	}

	return melSpectrum
}

// MelSpectrogram maps a power spectrogram (time x bins) to time x numFilters.
func (ms *MelScale) MelSpectrogram(power [][]float64, numFilters, sampleRate int) [][]float64 {
	if len(power) == 0 {
		return [][]float64{}
	}

	fftSize := (len(power[0]) - 1) * 2
	bank := ms.CreateMelFilterBank(numFilters, fftSize, sampleRate, 0, float64(sampleRate)/2)

	mel := make([][]float64, len(power))
	for t, frame := range power {
		mel[t] = ms.ApplyFilterBank(frame, bank)
	}
	return mel
}
