package features

import (
	"github.com/RyanBlaney/sonido-atlas/descriptors"
)

// DescriptorFeatures wraps a descriptor record as dsp__<name> features.
// Unavailable values are left out, which the sparse schema reads as 0; the
// optional integrated loudness also gets a dsp__has_loudness_lufs flag.
func DescriptorFeatures(rec *descriptors.Record) Map {
	if rec == nil {
		return Map{}
	}

	out := make(Map, rec.Len()+1)
	for _, name := range rec.Names() {
		v, _ := rec.Get(name)
		if v.Valid && finite(v.Float) {
			out[DescriptorPrefix+name] = v.Float
		}
	}

	if _, ok := rec.Get(descriptors.LoudnessLUFS); ok {
		has := 0.0
		if _, valid := rec.Float(descriptors.LoudnessLUFS); valid {
			has = 1
		}
		out[DescriptorPrefix+"has_"+descriptors.LoudnessLUFS] = has
	}
	return out
}
