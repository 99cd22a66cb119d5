package timeline

import "math"

// State is the transport state.
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Transport is the logical playback clock. It knows nothing about tracks;
// every bounded operation takes the current duration as an argument.
type Transport struct {
	position float64
	playing  bool
}

// Position returns the playhead in seconds.
func (t *Transport) Position() float64 {
	return t.position
}

// Playing reports whether the clock is running.
func (t *Transport) Playing() bool {
	return t.playing
}

// State returns Playing or Stopped.
func (t *Transport) State() State {
	if t.playing {
		return Playing
	}
	return Stopped
}

// Play starts the clock. It reports whether the state changed.
func (t *Transport) Play() bool {
	if t.playing {
		return false
	}
	t.playing = true
	return true
}

// Pause stops the clock in place. It reports whether the state changed.
func (t *Transport) Pause() bool {
	if !t.playing {
		return false
	}
	t.playing = false
	return true
}

// Tick advances a running clock by delta seconds. Non-positive deltas do not
// move the playhead. Being at or past the end rewinds to 0 and stops; Tick
// then reports true.
func (t *Transport) Tick(delta, duration float64) bool {
	if !t.playing {
		return false
	}
	if delta > 0 {
		t.position += delta
	}
	if t.position >= duration {
		t.position = 0
		t.playing = false
		return true
	}
	return false
}

// Seek moves the playhead to pos clamped into [0, duration]. The running
// state is unchanged.
func (t *Transport) Seek(pos, duration float64) float64 {
	t.position = clamp(pos, 0, duration)
	return t.position
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// State returns the transport state.
func (tl *Timeline) State() State {
	return tl.transport.State()
}

// Play starts playback.
func (tl *Timeline) Play() bool {
	return tl.transport.Play()
}

// Pause stops playback at the current position.
func (tl *Timeline) Pause() bool {
	return tl.transport.Pause()
}

// Toggle flips between playing and stopped and returns the new state.
func (tl *Timeline) Toggle() State {
	if tl.transport.Playing() {
		tl.transport.Pause()
	} else {
		tl.transport.Play()
	}
	return tl.transport.State()
}

// Tick advances playback by delta seconds. It reports true when the end of
// the timeline was reached and playback stopped at 0.
func (tl *Timeline) Tick(delta float64) bool {
	return tl.transport.Tick(delta, tl.duration)
}

// Seek moves the playhead and returns the clamped position.
func (tl *Timeline) Seek(pos float64) float64 {
	return tl.transport.Seek(pos, tl.duration)
}

// Skip seeks relative to the current position.
func (tl *Timeline) Skip(delta float64) float64 {
	return tl.transport.Seek(tl.transport.Position()+delta, tl.duration)
}
