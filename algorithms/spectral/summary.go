package spectral

import (
	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
)

// RolloffPercent is the energy fraction used for the rolloff summary.
const RolloffPercent = 0.85

// Summary holds the frame means of the spectral shape descriptors.
type Summary struct {
	CentroidMean  float64 `json:"spectral_centroid_mean"`
	BandwidthMean float64 `json:"spectral_bandwidth_mean"`
	Rolloff85Mean float64 `json:"spectral_rolloff85_mean"`
	FlatnessMean  float64 `json:"spectral_flatness_mean"`
	ZCRMean       float64 `json:"zcr_mean"`
}

// Summarize reduces a magnitude spectrogram and its source signal to the
// five shape means.
func Summarize(signal []float64, result *STFTResult) Summary {
	if result == nil || len(result.Magnitude) == 0 {
		return Summary{ZCRMean: common.Mean(NewZeroCrossingRate().ComputeFrames(signal))}
	}

	centroids := NewSpectralCentroid(result.SampleRate).ComputeFrames(result.Magnitude)
	bandwidths := NewSpectralBandwidth(result.SampleRate).ComputeFrames(result.Magnitude, centroids)
	rolloffs := NewSpectralRolloff(result.SampleRate).ComputeFrames(result.Magnitude, RolloffPercent)
	flatness := NewSpectralFlatness().ComputeFrames(result.Magnitude)
	zcr := NewZeroCrossingRateWithParams(result.WindowSize, result.HopSize).ComputeFrames(signal)

	return Summary{
		CentroidMean:  common.Mean(centroids),
		BandwidthMean: common.Mean(bandwidths),
		Rolloff85Mean: common.Mean(rolloffs),
		FlatnessMean:  common.Mean(flatness),
		ZCRMean:       common.Mean(zcr),
	}
}
