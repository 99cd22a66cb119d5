// Package sidecar reads the optional YAML metadata file that may sit next to
// a library media file (clip.mp4 -> clip.mp4.yaml).
package sidecar

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/fractal/internal/models"
)

// Ext is appended to a media path to form its sidecar path.
const Ext = ".yaml"

// Path returns the sidecar path for mediaPath.
func Path(mediaPath string) string {
	return mediaPath + Ext
}

// IsSidecar reports whether path names a sidecar file.
func IsSidecar(path string) bool {
	return strings.HasSuffix(path, Ext) && models.IsMedia(strings.TrimSuffix(path, Ext))
}

// Meta holds the fields a sidecar can override.
type Meta struct {
	Name     string      `yaml:"name,omitempty"`
	Kind     models.Kind `yaml:"kind,omitempty"`
	Duration Seconds     `yaml:"duration,omitempty"`
}

// Seconds decodes either a plain number of seconds or a "MM:SS(.mmm)" /
// "HH:MM:SS(.mmm)" timecode.
type Seconds float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Seconds) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("sidecar: duration must be a scalar")
	}
	v, err := ParseSeconds(node.Value)
	if err != nil {
		return err
	}
	*s = Seconds(v)
	return nil
}

// ParseSeconds parses a duration given in seconds or as a timecode.
func ParseSeconds(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("sidecar: bad duration %q", raw)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("sidecar: bad duration %q", raw)
		}
		// Every field but the last is a whole number of minutes or hours.
		if i < len(parts)-1 && v != math.Trunc(v) {
			return 0, fmt.Errorf("sidecar: bad duration %q", raw)
		}
		total = total*60 + v
	}
	return total, nil
}

// Parse decodes a sidecar document. Invalid YAML is reported as an error so
// that the caller can log it and fall back to defaults.
func Parse(data []byte) (*Meta, error) {
	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("sidecar: parse: %w", err)
	}
	m.Name = strings.TrimSpace(m.Name)
	return &m, nil
}

// Marshal encodes m as a sidecar document.
func (m *Meta) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("sidecar: marshal: %w", err)
	}
	return data, nil
}

// Apply overrides asset fields with the non-empty sidecar fields.
func (m *Meta) Apply(a *models.Asset) {
	if m == nil {
		return
	}
	if m.Name != "" {
		a.Name = m.Name
	}
	if m.Kind.Valid() {
		a.Kind = m.Kind
	}
	if m.Duration > 0 {
		a.Duration = float64(m.Duration)
	}
}
