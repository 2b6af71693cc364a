package features

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strings"

	"github.com/RyanBlaney/sonido-atlas/catalog"
)

// HasClassifierData is 1 when at least one classifier in the block was
// recognized, else 0.
const HasClassifierData = ClassifierPrefix + "has_data"

// ClassifierOutput is one classifier's result in one of the recognized
// shapes. The set of implementations is closed.
type ClassifierOutput interface {
	ClassifierName() string
	isClassifierOutput()
}

// ProbabilityTable is a class -> probability mapping.
type ProbabilityTable struct {
	Classifier    string
	Probabilities map[string]float64
}

// ValueProbability is a single winning class with its probability.
type ValueProbability struct {
	Classifier  string
	Value       string
	Probability float64
}

// Unrecognized is any other shape. It contributes no features.
type Unrecognized struct {
	Classifier string
}

func (p ProbabilityTable) ClassifierName() string { return p.Classifier }
func (v ValueProbability) ClassifierName() string { return v.Classifier }
func (u Unrecognized) ClassifierName() string     { return u.Classifier }

func (ProbabilityTable) isClassifierOutput() {}
func (ValueProbability) isClassifierOutput() {}
func (Unrecognized) isClassifierOutput()     {}

// ParseClassifiers reads an acoustic high-level block. The classifiers live
// under "highlevel" when that key holds an object, otherwise the block itself
// is the classifier map. Output is sorted by classifier name. Malformed input
// yields nil, never an error.
func ParseClassifiers(raw json.RawMessage) []ClassifierOutput {
	block, ok := object(raw)
	if !ok {
		return nil
	}

	high := block
	if nested, ok := object(block["highlevel"]); ok {
		high = nested
	}

	names := slices.Sorted(maps.Keys(high))
	outputs := make([]ClassifierOutput, 0, len(names))
	for _, name := range names {
		outputs = append(outputs, parseClassifier(name, high[name]))
	}
	return outputs
}

func parseClassifier(name string, raw json.RawMessage) ClassifierOutput {
	fields, ok := object(raw)
	if !ok {
		return Unrecognized{Classifier: name}
	}

	// A non-empty "all" is used whatever its type; only a missing or empty
	// one falls back to "probabilities". A value that is not an object then
	// drops through to the value/probability shape.
	probs := fields["all"]
	if !truthy(probs) {
		probs = fields["probabilities"]
	}
	if table, ok := object(probs); ok {
		probs := make(map[string]float64, len(table))
		for class, p := range table {
			if v, ok := catalog.ParseNumber(p); ok {
				probs[class] = v
			}
		}
		return ProbabilityTable{Classifier: name, Probabilities: probs}
	}

	value, hasValue := label(fields["value"])
	p, hasProb := catalog.ParseNumber(fields["probability"])
	if hasValue && hasProb {
		return ValueProbability{Classifier: name, Value: value, Probability: p}
	}
	return Unrecognized{Classifier: name}
}

// ClassifierFeatures flattens a classifier block into cls__<classifier>__<class>
// probabilities plus the cls__has_data flag.
func ClassifierFeatures(raw json.RawMessage) Map {
	out := Map{HasClassifierData: 0}
	for _, output := range ParseClassifiers(raw) {
		switch o := output.(type) {
		case ProbabilityTable:
			for class, p := range o.Probabilities {
				out[classifierFeature(o.Classifier, class)] = p
			}
			out[HasClassifierData] = 1
		case ValueProbability:
			out[classifierFeature(o.Classifier, o.Value)] = o.Probability
			out[HasClassifierData] = 1
		case Unrecognized:
		}
	}
	return out
}

func classifierFeature(classifier, class string) string {
	return ClassifierPrefix + classifier + "__" + class
}

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, false
	}
	return m, true
}

// truthy reports whether raw holds a value other than null, false, zero, or
// an empty string, object or array.
func truthy(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case 'n', 'f':
		return false
	case 't':
		return true
	case '"':
		var s string
		return json.Unmarshal(trimmed, &s) == nil && s != ""
	case '{':
		m, ok := object(trimmed)
		return ok && len(m) > 0
	case '[':
		var a []json.RawMessage
		return json.Unmarshal(trimmed, &a) == nil && len(a) > 0
	default:
		var f float64
		return json.Unmarshal(trimmed, &f) == nil && f != 0
	}
}

// label renders a class label. Strings are used as-is, numbers and bools by
// their JSON text; null and composite values are not labels.
func label(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", false
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, true
	case 'n', '{', '[':
		return "", false
	default:
		return strings.TrimSpace(string(trimmed)), true
	}
}
