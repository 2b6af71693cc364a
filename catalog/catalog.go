package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNotList is returned when the catalog document is not a JSON array.
var ErrNotList = errors.New("catalog must be a JSON list of tracks")

// AttributeNames are the streaming-service numeric attributes read from each
// track, in feature order.
var AttributeNames = []string{"energy", "valence", "danceability", "tempo", "popularity", "year"}

// Attributes holds the raw JSON of each numeric attribute present on a track.
// Values are coerced later, so any JSON type is kept.
type Attributes map[string]json.RawMessage

// Brainz is the crowd-sourced acoustic data attached to a track.
type Brainz struct {
	// AcousticHighLevel is kept raw; its shape varies between sources.
	AcousticHighLevel json.RawMessage `json:"acousticHighLevel,omitempty"`
}

// Track is one catalog entry.
type Track struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Artists    []string   `json:"artists"`
	Attributes Attributes `json:"-"`
	Brainz     *Brainz    `json:"brainz,omitempty"`
	// AudioPath is absolute after Load; relative paths resolve against the
	// catalog file's directory.
	AudioPath string `json:"audio_path,omitempty"`
}

// UnmarshalJSON reads a track leniently. Identity fields of the wrong type
// are coerced or dropped rather than failing the whole catalog.
func (t *Track) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("track must be a JSON object: %w", err)
	}
	if fields == nil {
		return fmt.Errorf("track must be a JSON object, got null")
	}

	*t = Track{
		ID:        scalarText(fields["id"]),
		Name:      scalarText(fields["name"]),
		Artists:   artistNames(fields["artists"]),
		AudioPath: scalarText(fields["audio_path"]),
	}

	for _, name := range AttributeNames {
		if raw, ok := fields[name]; ok {
			if t.Attributes == nil {
				t.Attributes = make(Attributes, len(AttributeNames))
			}
			t.Attributes[name] = raw
		}
	}

	if raw, ok := fields["brainz"]; ok && isObject(raw) {
		var b Brainz
		if err := json.Unmarshal(raw, &b); err == nil {
			t.Brainz = &b
		}
	}
	return nil
}

// MarshalJSON writes the track back with its attributes inline.
func (t Track) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 6+len(t.Attributes))
	out["id"] = t.ID
	out["name"] = t.Name
	out["artists"] = t.Artists
	for name, raw := range t.Attributes {
		out[name] = raw
	}
	if t.Brainz != nil {
		out["brainz"] = t.Brainz
	}
	if t.AudioPath != "" {
		out["audio_path"] = t.AudioPath
	}
	return json.Marshal(out)
}

// HighLevel returns the raw classifier block, or nil when absent.
func (t *Track) HighLevel() json.RawMessage {
	if t.Brainz == nil {
		return nil
	}
	return t.Brainz.AcousticHighLevel
}

// Catalog is an ordered list of tracks. Order is the only identity
// guarantee besides the track id and is preserved by every consumer.
type Catalog struct {
	Path   string
	Tracks []Track
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	return len(c.Tracks)
}

// Load reads a catalog file and resolves audio paths against its directory.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	tracks, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range tracks {
		if p := tracks[i].AudioPath; p != "" && !filepath.IsAbs(p) {
			tracks[i].AudioPath = filepath.Join(dir, p)
		}
	}

	return &Catalog{Path: path, Tracks: tracks}, nil
}

// Parse decodes a catalog document.
func Parse(data []byte) ([]Track, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotList
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotList, err)
	}

	tracks := make([]Track, len(raw))
	for i, item := range raw {
		if err := json.Unmarshal(item, &tracks[i]); err != nil {
			return nil, fmt.Errorf("track %d: %w", i, err)
		}
	}
	return tracks, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// scalarText renders strings as-is and numbers/bools as their JSON text.
// Anything else is empty.
func scalarText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
		return ""
	case '{', '[', 'n':
		return ""
	default:
		return string(trimmed)
	}
}

// artistNames accepts a list of strings, a list of {"name": ...} objects or
// a single string.
func artistNames(raw json.RawMessage) []string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '"' {
		if s := scalarText(trimmed); s != "" {
			return []string{s}
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		if isObject(item) {
			var named struct {
				Name json.RawMessage `json:"name"`
			}
			if err := json.Unmarshal(item, &named); err == nil {
				if s := scalarText(named.Name); s != "" {
					names = append(names, s)
				}
			}
			continue
		}
		if s := scalarText(item); s != "" {
			names = append(names, s)
		}
	}
	return names
}

// ParseNumber coerces a raw JSON value the way a lenient float parse would:
// numbers, numeric strings and booleans convert; null, objects, lists and
// non-finite results do not.
func ParseNumber(raw json.RawMessage) (float64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, false
	}

	var v float64
	switch trimmed[0] {
	case 't':
		if string(trimmed) != "true" {
			return 0, false
		}
		v = 1
	case 'f':
		if string(trimmed) != "false" {
			return 0, false
		}
		v = 0
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		v = f
	case 'n', '{', '[':
		return 0, false
	default:
		f, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return 0, false
		}
		v = f
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
