// Package geometry maps timeline seconds onto horizontal pixels.
//
// Everything here is a pure function of its inputs; the package holds no
// state and is safe for concurrent use.
package geometry

import (
	"fmt"
	"math"

	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/timeline"
)

const (
	// PixelsPerSecond is the default horizontal zoom.
	PixelsPerSecond = 20.0
	// RulerStep is the spacing of ruler labels in seconds.
	RulerStep = 5.0
)

// Scale converts between seconds and pixels at a fixed zoom level.
type Scale float64

// Default is the scale used when none is configured.
const Default Scale = PixelsPerSecond

// Valid reports whether s can be used for conversion.
func (s Scale) Valid() bool {
	f := float64(s)
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// OrDefault returns s, or Default when s is not usable.
func (s Scale) OrDefault() Scale {
	if s.Valid() {
		return s
	}
	return Default
}

// TimeToPosition returns the x offset of t seconds.
func (s Scale) TimeToPosition(t float64) float64 {
	return t * float64(s)
}

// PositionToTime returns the time under pixel x. Positions left of the
// origin map to 0.
//
// PositionToTime(TimeToPosition(t)) is within 2 ulps of t, not always
// equal: both conversions round, and at most scales several float64 times
// share one position.
func (s Scale) PositionToTime(x float64) float64 {
	return math.Max(0, x/float64(s))
}

// Width returns the pixel width of a timeline of the given duration.
func (s Scale) Width(duration float64) float64 {
	return s.TimeToPosition(duration)
}

// TimeToPosition converts at the default scale.
func TimeToPosition(t float64) float64 { return Default.TimeToPosition(t) }

// PositionToTime converts at the default scale.
func PositionToTime(x float64) float64 { return Default.PositionToTime(x) }

// Tick is a ruler label.
type Tick struct {
	Time  float64 `json:"time"`
	X     float64 `json:"x"`
	Label string  `json:"label"`
}

// RulerTicks returns one label every RulerStep seconds starting at 0;
// ceil(duration/RulerStep) labels in total.
func (s Scale) RulerTicks(duration float64) []Tick {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return []Tick{}
	}
	n := int(math.Ceil(duration / RulerStep))
	ticks := make([]Tick, n)
	for i := range ticks {
		t := float64(i) * RulerStep
		ticks[i] = Tick{Time: t, X: s.TimeToPosition(t), Label: fmt.Sprintf("%.0fs", t)}
	}
	return ticks
}

// Span is the horizontal extent of one clip.
type Span struct {
	ClipID  string  `json:"clip_id"`
	AssetID string  `json:"asset_id"`
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Width   float64 `json:"width"`
}

// Lane is the rendered form of one track.
type Lane struct {
	TrackID string      `json:"track_id"`
	Kind    models.Kind `json:"kind"`
	Name    string      `json:"name"`
	Locked  bool        `json:"locked"`
	Muted   bool        `json:"muted"`
	Spans   []Span      `json:"spans"`
}

// View is a full pixel layout of a timeline snapshot.
type View struct {
	PixelsPerSecond float64 `json:"pixels_per_second"`
	Width           float64 `json:"width"`
	PlayheadX       float64 `json:"playhead_x"`
	Timecode        string  `json:"timecode"`
	Ruler           []Tick  `json:"ruler"`
	Lanes           []Lane  `json:"lanes"`
}

// Layout computes the pixel geometry of snap.
func (s Scale) Layout(snap timeline.Snapshot) View {
	s = s.OrDefault()
	v := View{
		PixelsPerSecond: float64(s),
		Width:           s.Width(snap.Duration),
		PlayheadX:       s.TimeToPosition(snap.CurrentTime),
		Timecode:        Timecode(snap.CurrentTime),
		Ruler:           s.RulerTicks(snap.Duration),
		Lanes:           make([]Lane, len(snap.Tracks)),
	}
	for i, t := range snap.Tracks {
		lane := Lane{
			TrackID: t.ID,
			Kind:    t.Kind,
			Name:    t.Name,
			Locked:  t.Locked,
			Muted:   t.Muted,
			Spans:   make([]Span, len(t.Items)),
		}
		for j, c := range t.Items {
			lane.Spans[j] = Span{
				ClipID:  c.ID,
				AssetID: c.AssetID,
				Name:    c.Name,
				X:       s.TimeToPosition(c.StartTime),
				Width:   s.TimeToPosition(c.Duration),
			}
		}
		v.Lanes[i] = lane
	}
	return v
}

// Timecode formats t as MM:SS.mmm. Minutes are not wrapped at the hour.
func Timecode(t float64) string {
	if !(t > 0) || math.IsInf(t, 0) {
		t = 0
	}
	ms := int64(math.Round(t * 1000))
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
