package transcode

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestBytesToFloat64(t *testing.T) {
	buf := make([]byte, 8*3+3)
	for i, v := range []float64{0.25, -1, 0.5} {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	got := bytesToFloat64(buf)
	if len(got) != 3 || got[0] != 0.25 || got[1] != -1 || got[2] != 0.5 {
		t.Fatalf("unexpected samples %v", got)
	}
}

func TestParseFFprobeOutput(t *testing.T) {
	meta, err := parseFFprobeOutput([]byte(`{"streams":[{"codec_type":"audio","codec_name":"flac","sample_rate":"48000","channels":2,"duration":"12.5"}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.SampleRate != 48000 || meta.Channels != 2 || meta.Codec != "flac" || meta.Duration != 12.5 {
		t.Fatalf("unexpected metadata %+v", meta)
	}

	if _, err := parseFFprobeOutput([]byte(`{"streams":[{"codec_type":"audio","sample_rate":"44100","channels":12}]}`)); err == nil {
		t.Fatal("expected channel count error")
	}
	if _, err := parseFFprobeOutput([]byte(`{"streams":[]}`)); err == nil {
		t.Fatal("expected no-stream error")
	}
}
