package temporal

import (
	"github.com/RyanBlaney/sonido-atlas/algorithms/common"
	"github.com/RyanBlaney/sonido-atlas/algorithms/spectral"
)

// OnsetDetection derives an onset strength envelope from a power spectrogram:
// mel bands in dB, first-order positive difference in time, mean over bands.
type OnsetDetection struct {
	numMels int
	lag     int
	topDB   float64
	mel     *spectral.MelScale
}

// NewOnsetDetection creates an onset detector over 128 mel bands
func NewOnsetDetection() *OnsetDetection {
	return &OnsetDetection{
		numMels: 128,
		lag:     1,
		topDB:   80,
		mel:     spectral.NewMelScale(),
	}
}

// Strength returns one value per STFT frame. Frame t of the envelope lines
// up with frame t of the spectrogram.
func (od *OnsetDetection) Strength(result *spectral.STFTResult) []float64 {
	if result == nil || result.TimeFrames == 0 {
		return []float64{}
	}

	melSpec := od.mel.MelSpectrogram(result.Power(), od.numMels, result.SampleRate)
	db := od.toDB(melSpec)

	numFrames := len(db)
	diff := make([]float64, 0, numFrames)
	for t := od.lag; t < numFrames; t++ {
		var sum float64
		for b := range od.numMels {
			if d := db[t][b] - db[t-od.lag][b]; d > 0 {
				sum += d
			}
		}
		diff = append(diff, sum/float64(od.numMels))
	}

	// shift right so the difference lands on the later frame and
	// compensate for the centred framing
	pad := od.lag + result.WindowSize/(2*result.HopSize)
	envelope := make([]float64, numFrames)
	for i, v := range diff {
		if j := i + pad; j < numFrames {
			envelope[j] = v
		}
	}
	return envelope
}

// toDB converts the whole mel spectrogram with a shared top-dB floor.
func (od *OnsetDetection) toDB(melSpec [][]float64) [][]float64 {
	flat := make([]float64, 0, len(melSpec)*od.numMels)
	for _, frame := range melSpec {
		flat = append(flat, frame...)
	}
	flatDB := common.PowerToDB(flat, 1.0, 1e-10, od.topDB)

	out := make([][]float64, len(melSpec))
	for t := range melSpec {
		out[t] = flatDB[t*od.numMels : (t+1)*od.numMels]
	}
	return out
}
