package features

import (
	"github.com/RyanBlaney/sonido-atlas/catalog"
)

// AttributeFeatures emits attr__<name> and attr__has_<name> for every
// attribute in catalog.AttributeNames. A missing or non-numeric value gives
// 0 for both, a present one gives the value and 1.
func AttributeFeatures(attrs catalog.Attributes) Map {
	out := make(Map, 2*len(catalog.AttributeNames))
	for _, name := range catalog.AttributeNames {
		v, ok := catalog.ParseNumber(attrs[name])
		if !ok {
			out[AttributePrefix+name] = 0
			out[AttributePrefix+"has_"+name] = 0
			continue
		}
		out[AttributePrefix+name] = v
		out[AttributePrefix+"has_"+name] = 1
	}
	return out
}
