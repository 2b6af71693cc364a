package descriptors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Descriptor names as written to records, feature maps and descriptors.json.
const (
	DurationMS              = "duration_ms"
	Tempo                   = "tempo"
	LoudnessLUFS            = "loudness_lufs"
	LoudnessRMSDBFS         = "loudness_rms_dbfs"
	EnergyProxy             = "energy_proxy"
	Key                     = "key"
	Mode                    = "mode"
	KeyConfidence           = "key_confidence"
	TimeSignatureGuess      = "time_signature_guess"
	TimeSignatureConfidence = "time_signature_confidence"
	CrestFactorDB           = "crest_factor_db"
	HarmonicRatio           = "harmonic_ratio"
	SpectralCentroidMean    = "spectral_centroid_mean"
	SpectralBandwidthMean   = "spectral_bandwidth_mean"
	SpectralRolloff85Mean   = "spectral_rolloff85_mean"
	SpectralFlatnessMean    = "spectral_flatness_mean"
	ZCRMean                 = "zcr_mean"
	RMS                     = "rms"
	Peak                    = "peak"
)

// Value is a descriptor that may be unavailable.
type Value struct {
	Float float64
	Valid bool
}

// Available wraps v as a valid value.
func Available(v float64) Value {
	return Value{Float: v, Valid: true}
}

// Unavailable is the explicit "no value" marker.
func Unavailable() Value {
	return Value{}
}

// Record is an ordered set of named descriptors. It is not modified after
// the analyzer returns it.
type Record struct {
	names  []string
	values map[string]Value
}

func newRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

func (r *Record) set(name string, v Value) {
	if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
		v = Unavailable()
	}
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = v
}

// Get returns the named descriptor. ok is false when the name is not part
// of the record.
func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Float returns the value and whether it is available.
func (r *Record) Float(name string) (float64, bool) {
	v := r.values[name]
	return v.Float, v.Valid
}

// Names returns descriptor names in record order.
func (r *Record) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of descriptors.
func (r *Record) Len() int {
	return len(r.names)
}

// MarshalJSON writes an object in record order with null for unavailable
// values.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		v := r.values[name]
		if !v.Valid {
			buf.WriteString("null")
			continue
		}
		num, err := json.Marshal(v.Float)
		if err != nil {
			return nil, fmt.Errorf("descriptor %s: %w", name, err)
		}
		buf.Write(num)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object written by MarshalJSON, keeping key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("descriptor record must be a JSON object")
	}

	rec := newRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in descriptor record", tok)
		}

		var f *float64
		if err := dec.Decode(&f); err != nil {
			return fmt.Errorf("descriptor %s: %w", name, err)
		}
		if f == nil {
			rec.set(name, Unavailable())
		} else {
			rec.set(name, Available(*f))
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = *rec
	return nil
}
