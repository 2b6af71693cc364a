package descriptors_test

import (
	"context"
	"encoding/json"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-atlas/descriptors"
	"github.com/RyanBlaney/sonido-atlas/transcode"
)

const testRate = 22050

func sine(freq, amp, seconds float64) []float64 {
	n := int(seconds * testRate)
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return out
}

func newAnalyzer(t *testing.T, opts descriptors.Options) *descriptors.Analyzer {
	t.Helper()
	a, err := descriptors.NewAnalyzer(nil, opts)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}

func TestAnalyzeRecordNames(t *testing.T) {
	a := newAnalyzer(t, descriptors.DefaultOptions())
	rec := a.Analyze(&transcode.Signal{Samples: sine(440, 0.5, 2), SampleRate: testRate})

	want := []string{
		"duration_ms", "tempo", "loudness_lufs", "loudness_rms_dbfs", "energy_proxy",
		"key", "mode", "key_confidence", "time_signature_guess", "time_signature_confidence",
		"crest_factor_db", "harmonic_ratio",
		"spectral_centroid_mean", "spectral_bandwidth_mean", "spectral_rolloff85_mean",
		"spectral_flatness_mean", "zcr_mean", "rms", "peak",
	}
	if got := rec.Names(); !slices.Equal(got, want) {
		t.Fatalf("names = %v\nwant %v", got, want)
	}
}

func TestAnalyzeSine(t *testing.T) {
	a := newAnalyzer(t, descriptors.DefaultOptions())
	rec := a.Analyze(&transcode.Signal{Samples: sine(440, 0.5, 2), SampleRate: testRate})

	if d, _ := rec.Float(descriptors.DurationMS); math.Abs(d-2000) > 1e-9 {
		t.Fatalf("duration_ms = %v, want 2000", d)
	}

	wantDB := 20 * math.Log10(0.5/math.Sqrt2)
	if got, _ := rec.Float(descriptors.LoudnessRMSDBFS); math.Abs(got-wantDB) > 0.05 {
		t.Fatalf("loudness_rms_dbfs = %v, want %v", got, wantDB)
	}
	if got, _ := rec.Float(descriptors.CrestFactorDB); math.Abs(got-20*math.Log10(math.Sqrt2)) > 0.05 {
		t.Fatalf("crest_factor_db = %v, want ~3.01", got)
	}
	if _, ok := rec.Float(descriptors.LoudnessLUFS); !ok {
		t.Fatal("loudness_lufs unavailable for a 2 s tone")
	}

	key, _ := rec.Float(descriptors.Key)
	if key != 9 {
		t.Fatalf("key = %v, want 9 (A)", key)
	}
	mode, _ := rec.Float(descriptors.Mode)
	if mode != 0 && mode != 1 {
		t.Fatalf("mode = %v", mode)
	}
	if conf, _ := rec.Float(descriptors.KeyConfidence); conf < 0 {
		t.Fatalf("key_confidence = %v", conf)
	}

	if centroid, _ := rec.Float(descriptors.SpectralCentroidMean); math.Abs(centroid-440) > 60 {
		t.Fatalf("spectral_centroid_mean = %v, want ~440", centroid)
	}
	if ratio, _ := rec.Float(descriptors.HarmonicRatio); ratio < 0.8 || ratio >= 1 {
		t.Fatalf("harmonic_ratio = %v, want in [0.8, 1)", ratio)
	}

	ts, _ := rec.Float(descriptors.TimeSignatureGuess)
	if ts != 3 && ts != 4 {
		t.Fatalf("time_signature_guess = %v", ts)
	}
}

func TestAnalyzeSilence(t *testing.T) {
	a := newAnalyzer(t, descriptors.DefaultOptions())
	rec := a.Analyze(&transcode.Signal{Samples: make([]float64, testRate), SampleRate: testRate})

	if _, ok := rec.Float(descriptors.LoudnessLUFS); ok {
		t.Fatal("loudness_lufs should be unavailable for silence")
	}
	if tempo, _ := rec.Float(descriptors.Tempo); tempo != 0 {
		t.Fatalf("tempo = %v, want 0", tempo)
	}
	ts, _ := rec.Float(descriptors.TimeSignatureGuess)
	conf, _ := rec.Float(descriptors.TimeSignatureConfidence)
	if ts != 4 || conf != 0 {
		t.Fatalf("time signature = (%v, %v), want (4, 0)", ts, conf)
	}
	if e, _ := rec.Float(descriptors.EnergyProxy); e != 0 {
		t.Fatalf("energy_proxy = %v, want 0", e)
	}
	for _, name := range rec.Names() {
		v, _ := rec.Get(name)
		if v.Valid && (math.IsNaN(v.Float) || math.IsInf(v.Float, 0)) {
			t.Fatalf("%s is not finite: %v", name, v.Float)
		}
	}
}

func TestAnalyzeEmptySignal(t *testing.T) {
	a := newAnalyzer(t, descriptors.DefaultOptions())
	rec := a.Analyze(&transcode.Signal{SampleRate: testRate})

	if rec.Len() != 19 {
		t.Fatalf("record has %d descriptors, want 19", rec.Len())
	}
	if d, _ := rec.Float(descriptors.DurationMS); d != 0 {
		t.Fatalf("duration_ms = %v, want 0", d)
	}
	if ratio, _ := rec.Float(descriptors.HarmonicRatio); ratio != 0 {
		t.Fatalf("harmonic_ratio = %v, want 0", ratio)
	}
}

func TestLoudnessMeterDisabled(t *testing.T) {
	opts := descriptors.DefaultOptions()
	opts.LoudnessMeter = false
	rec := newAnalyzer(t, opts).Analyze(&transcode.Signal{Samples: sine(1000, 0.5, 1), SampleRate: testRate})

	v, ok := rec.Get(descriptors.LoudnessLUFS)
	if !ok {
		t.Fatal("loudness_lufs missing from record")
	}
	if v.Valid {
		t.Fatalf("loudness_lufs = %v, want unavailable", v.Float)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"loudness_lufs":null`) {
		t.Fatalf("unavailable value not written as null: %s", data)
	}
	if !strings.HasPrefix(string(data), `{"duration_ms":`) {
		t.Fatalf("record order lost: %s", data)
	}
}

func TestRecordJSONKeepsOrderAndNull(t *testing.T) {
	var rec descriptors.Record
	if err := json.Unmarshal([]byte(`{"tempo":120.5,"loudness_lufs":null,"key":3}`), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := rec.Names(); !slices.Equal(got, []string{"tempo", "loudness_lufs", "key"}) {
		t.Fatalf("names = %v", got)
	}
	if v, _ := rec.Get("loudness_lufs"); v.Valid {
		t.Fatal("null decoded as available")
	}

	out, err := json.Marshal(&rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"tempo":120.5,"loudness_lufs":null,"key":3}` {
		t.Fatalf("got %s", out)
	}
}

func TestNewAnalyzerRejectsBadOptions(t *testing.T) {
	opts := descriptors.DefaultOptions()
	opts.EnergyLow, opts.EnergyHigh = 0.2, 0.2
	if _, err := descriptors.NewAnalyzer(nil, opts); err == nil {
		t.Fatal("expected error for empty energy band")
	}

	opts = descriptors.DefaultOptions()
	opts.MajorTemplate = []float64{1, 2, 3}
	if _, err := descriptors.NewAnalyzer(nil, opts); err == nil {
		t.Fatal("expected error for short template")
	}
}

func TestEnergyBandIsConfigurable(t *testing.T) {
	signal := &transcode.Signal{Samples: sine(440, 0.1, 1), SampleRate: testRate}

	narrow := descriptors.DefaultOptions()
	narrow.EnergyLow, narrow.EnergyHigh = 0, 0.01
	if e, _ := newAnalyzer(t, narrow).Analyze(signal).Float(descriptors.EnergyProxy); e != 1 {
		t.Fatalf("energy_proxy = %v, want clamped to 1", e)
	}

	wide := descriptors.DefaultOptions()
	wide.EnergyLow, wide.EnergyHigh = 0.5, 1
	if e, _ := newAnalyzer(t, wide).Analyze(signal).Float(descriptors.EnergyProxy); e != 0 {
		t.Fatalf("energy_proxy = %v, want clamped to 0", e)
	}
}

type fakeDecoder struct {
	audio *transcode.AudioData
	err   error
}

func (f fakeDecoder) Decode(ctx context.Context, path string) (*transcode.AudioData, error) {
	return f.audio, f.err
}

func TestAnalyzeFile(t *testing.T) {
	pcm := sine(440, 0.5, 1)
	loader := transcode.NewLoader(fakeDecoder{audio: &transcode.AudioData{
		PCM:        pcm,
		SampleRate: testRate,
		Channels:   1,
	}}, transcode.LoadOptions{TrimSilence: false})

	a, err := descriptors.NewAnalyzer(loader, descriptors.DefaultOptions())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	rec, err := a.AnalyzeFile(context.Background(), "tone.wav")
	if err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}
	if d, _ := rec.Float(descriptors.DurationMS); math.Abs(d-1000) > 1e-9 {
		t.Fatalf("duration_ms = %v, want 1000", d)
	}
}

func TestAnalyzeFileWithoutLoader(t *testing.T) {
	a := newAnalyzer(t, descriptors.DefaultOptions())
	if _, err := a.AnalyzeFile(context.Background(), "x.wav"); err == nil {
		t.Fatal("expected error without a loader")
	}
}
