// Package models defines the domain types for Fractal.
package models

import (
	"fmt"
	"strings"
)

// Kind is the media kind of an asset or a track. The set is closed: only the
// constants below are valid values.
type Kind string

const (
	KindVideo Kind = "VIDEO"
	KindAudio Kind = "AUDIO"
	KindImage Kind = "IMAGE"
)

// Kinds lists every valid Kind in display order.
var Kinds = []Kind{KindVideo, KindAudio, KindImage}

// ParseKind converts a case-insensitive name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindVideo:
		return KindVideo, nil
	case KindAudio:
		return KindAudio, nil
	case KindImage:
		return KindImage, nil
	default:
		return "", fmt.Errorf("models: unknown media kind %q", s)
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindVideo, KindAudio, KindImage:
		return true
	default:
		return false
	}
}

// UnmarshalText rejects unknown kinds so that decoded snapshots and requests
// can never carry a loose tag.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Asset is an imported or generated media source available for placement.
type Asset struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Kind     Kind    `json:"kind"`
	Source   string  `json:"source"`
	Duration float64 `json:"duration,omitempty"` // nominal, seconds; 0 = unset
	Checksum string  `json:"checksum,omitempty"`
}

// Clip is a placed instance of an asset on a track.
type Clip struct {
	ID           string  `json:"id"`
	AssetID      string  `json:"asset_id"`
	TrackID      string  `json:"track_id"`
	Name         string  `json:"name"`
	StartTime    float64 `json:"start_time"`
	Duration     float64 `json:"duration"`
	SourceOffset float64 `json:"source_offset"`
}

// End returns the timeline time at which the clip stops playing.
func (c Clip) End() float64 {
	return c.StartTime + c.Duration
}

// Track is an ordered lane of clips of a single kind.
type Track struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
	Items  []Clip `json:"items"`
	Locked bool   `json:"locked"`
	Muted  bool   `json:"muted"`
}

// End returns the end time of the last clip, or 0 for an empty track.
func (t Track) End() float64 {
	if len(t.Items) == 0 {
		return 0
	}
	return t.Items[len(t.Items)-1].End()
}

// Clone returns a deep copy of the track.
func (t Track) Clone() Track {
	out := t
	out.Items = make([]Clip, len(t.Items))
	copy(out.Items, t.Items)
	return out
}
