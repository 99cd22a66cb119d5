// Package timeline implements the timeline aggregate: the track store, the
// transport clock and the bulk reorder engine.
//
// A Timeline is not safe for concurrent use. Callers serialize access through
// a single owner (see package editor).
package timeline

import (
	"math"

	"github.com/google/uuid"

	"github.com/starford/fractal/internal/models"
)

// Defaults used when no option overrides them.
const (
	DefaultDuration     = 60.0
	DefaultGrowthMargin = 10.0
	DefaultClipDuration = 5.0
	DefaultSkipInterval = 5.0
)

// Snapshot is a plain-data copy of the aggregate, safe to serialize and to
// hand to other goroutines.
type Snapshot struct {
	Tracks      []models.Track `json:"tracks"`
	Duration    float64        `json:"duration"`
	CurrentTime float64        `json:"current_time"`
	Playing     bool           `json:"playing"`
}

// ClipCount returns the number of clips across all tracks.
func (s Snapshot) ClipCount() int {
	n := 0
	for _, t := range s.Tracks {
		n += len(t.Items)
	}
	return n
}

// Timeline owns the tracks and the transport clock.
type Timeline struct {
	tracks    []models.Track
	duration  float64
	transport Transport

	growthMargin float64
	clipDuration float64
	newID        func() string
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithTracks replaces the seed tracks.
func WithTracks(tracks []models.Track) Option {
	return func(tl *Timeline) {
		tl.tracks = cloneTracks(tracks)
	}
}

// WithDuration sets the initial duration in seconds.
func WithDuration(d float64) Option {
	return func(tl *Timeline) {
		if d > 0 && !math.IsInf(d, 0) {
			tl.duration = d
		}
	}
}

// WithGrowthMargin sets the headroom added when a clip extends past the end.
func WithGrowthMargin(m float64) Option {
	return func(tl *Timeline) {
		if m >= 0 && !math.IsInf(m, 0) {
			tl.growthMargin = m
		}
	}
}

// WithClipDuration sets the duration used for assets without a nominal one.
func WithClipDuration(d float64) Option {
	return func(tl *Timeline) {
		if d > 0 && !math.IsInf(d, 0) {
			tl.clipDuration = d
		}
	}
}

// WithIDGenerator overrides clip and track id generation.
func WithIDGenerator(fn func() string) Option {
	return func(tl *Timeline) {
		if fn != nil {
			tl.newID = fn
		}
	}
}

// DefaultTracks returns the seed track set of a fresh editor session.
func DefaultTracks() []models.Track {
	return []models.Track{
		{ID: "t1", Kind: models.KindVideo, Name: "VID_STREAM_01", Items: []models.Clip{}},
		{ID: "t2", Kind: models.KindVideo, Name: "VID_STREAM_02", Items: []models.Clip{}},
		{ID: "t3", Kind: models.KindAudio, Name: "AUD_CHANNEL_A", Items: []models.Clip{}},
	}
}

// New creates a timeline seeded with DefaultTracks unless WithTracks is given.
func New(opts ...Option) *Timeline {
	tl := &Timeline{
		tracks:       DefaultTracks(),
		duration:     DefaultDuration,
		growthMargin: DefaultGrowthMargin,
		clipDuration: DefaultClipDuration,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(tl)
	}
	return tl
}

// Duration returns the timeline length in seconds.
func (tl *Timeline) Duration() float64 {
	return tl.duration
}

// CurrentTime returns the playhead position in seconds.
func (tl *Timeline) CurrentTime() float64 {
	return tl.transport.Position()
}

// Snapshot returns a deep copy of the aggregate.
func (tl *Timeline) Snapshot() Snapshot {
	return Snapshot{
		Tracks:      cloneTracks(tl.tracks),
		Duration:    tl.duration,
		CurrentTime: tl.transport.Position(),
		Playing:     tl.transport.Playing(),
	}
}

// grow extends the duration so that end fits, leaving growthMargin of
// headroom. The duration never shrinks.
func (tl *Timeline) grow(end float64) {
	if end > tl.duration {
		tl.duration = end + tl.growthMargin
	}
}

func cloneTracks(tracks []models.Track) []models.Track {
	out := make([]models.Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.Clone()
	}
	return out
}
