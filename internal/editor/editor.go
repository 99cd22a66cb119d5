// Package editor serializes every timeline mutation through one goroutine.
//
// The Editor owns a *timeline.Timeline. Public methods submit a command to
// the loop started by Run and block until it has been applied, so no two
// mutations interleave and callers only ever see deep-copied snapshots.
// The playback ticker lives in the same loop and is armed only while the
// transport is playing.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/starford/fractal/internal/apperr"
	"github.com/starford/fractal/internal/geometry"
	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/sse"
	"github.com/starford/fractal/internal/timeline"
)

// Defaults for the playback loop.
const (
	DefaultTickInterval = 100 * time.Millisecond
	DefaultSkipInterval = timeline.DefaultSkipInterval
)

// Publisher receives editor events. sse.Broker and the remote hub satisfy it.
type Publisher interface {
	Publish(sse.Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(sse.Event)

// Publish calls f(ev).
func (f PublisherFunc) Publish(ev sse.Event) { f(ev) }

// Status is the transport part of the timeline.
type Status struct {
	State       string  `json:"state"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Timecode    string  `json:"timecode"`
}

type command struct {
	apply func(tl *timeline.Timeline)
	done  chan struct{}
}

// Editor is the single owner of a timeline.
type Editor struct {
	log          *slog.Logger
	tl           *timeline.Timeline
	rng          timeline.Shuffler
	tickInterval time.Duration
	skip         float64
	now          func() time.Time
	publishers   []Publisher

	cmds    chan command
	stopped chan struct{}
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithTimeline replaces the default seeded timeline.
func WithTimeline(tl *timeline.Timeline) Option {
	return func(e *Editor) {
		if tl != nil {
			e.tl = tl
		}
	}
}

// WithShuffler sets the random source used by Reorder.
func WithShuffler(rng timeline.Shuffler) Option {
	return func(e *Editor) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithTickInterval sets how often a playing transport advances.
func WithTickInterval(d time.Duration) Option {
	return func(e *Editor) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

// WithSkipInterval sets the step used by SkipForward and SkipBackward.
func WithSkipInterval(seconds float64) Option {
	return func(e *Editor) {
		if seconds > 0 {
			e.skip = seconds
		}
	}
}

// WithClock overrides the wall clock used to measure tick deltas.
func WithClock(now func() time.Time) Option {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithPublishers adds event sinks.
func WithPublishers(p ...Publisher) Option {
	return func(e *Editor) {
		e.publishers = append(e.publishers, p...)
	}
}

// New creates an Editor. Methods block until Run is serving the loop.
func New(opts ...Option) *Editor {
	e := &Editor{
		log:          slog.Default(),
		tl:           timeline.New(),
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		tickInterval: DefaultTickInterval,
		skip:         DefaultSkipInterval,
		now:          time.Now,
		cmds:         make(chan command),
		stopped:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives the editor until ctx is cancelled. It must be called exactly once.
func (e *Editor) Run(ctx context.Context) error {
	defer close(e.stopped)

	var (
		ticker   *time.Ticker
		tickC    <-chan time.Time
		lastTick time.Time
	)
	arm := func() {
		switch {
		case e.tl.State() == timeline.Playing && ticker == nil:
			ticker = time.NewTicker(e.tickInterval)
			tickC = ticker.C
			lastTick = e.now()
		case e.tl.State() != timeline.Playing && ticker != nil:
			ticker.Stop()
			ticker, tickC = nil, nil
		}
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	e.log.Info("editor started",
		slog.Int("tracks", len(e.tl.Tracks())),
		slog.Float64("duration", e.tl.Duration()))

	for {
		select {
		case <-ctx.Done():
			e.log.Info("editor stopped")
			return nil

		case cmd := <-e.cmds:
			cmd.apply(e.tl)
			close(cmd.done)
			arm()

		case <-tickC:
			now := e.now()
			delta := now.Sub(lastTick).Seconds()
			lastTick = now
			ended := e.tl.Tick(delta)
			e.emit(sse.TypeTransportPlayhead, map[string]float64{
				"current_time": e.tl.CurrentTime(),
				"duration":     e.tl.Duration(),
			})
			if ended {
				e.log.Debug("playback reached end of timeline")
				e.emit(sse.TypeTransportState, e.status())
				arm()
			}
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (e *Editor) do(ctx context.Context, fn func(tl *timeline.Timeline)) error {
	cmd := command{apply: fn, done: make(chan struct{})}
	select {
	case e.cmds <- cmd:
	case <-e.stopped:
		return fmt.Errorf("editor: %w", apperr.ErrUnavailable)
	case <-ctx.Done():
		return ctx.Err()
	}
	<-cmd.done
	return nil
}

func (e *Editor) emit(typ string, data any) {
	ev := sse.Event{Type: typ, Data: data}
	for _, p := range e.publishers {
		p.Publish(ev)
	}
}

func (e *Editor) status() Status {
	return Status{
		State:       e.tl.State().String(),
		CurrentTime: e.tl.CurrentTime(),
		Duration:    e.tl.Duration(),
		Timecode:    geometry.Timecode(e.tl.CurrentTime()),
	}
}

func (e *Editor) timelineUpdated() {
	e.emit(sse.TypeTimelineUpdated, e.tl.Snapshot())
}

// Snapshot returns a deep copy of the timeline.
func (e *Editor) Snapshot(ctx context.Context) (timeline.Snapshot, error) {
	var snap timeline.Snapshot
	err := e.do(ctx, func(tl *timeline.Timeline) {
		snap = tl.Snapshot()
	})
	return snap, err
}

// Status returns the transport state.
func (e *Editor) Status(ctx context.Context) (Status, error) {
	var st Status
	err := e.do(ctx, func(*timeline.Timeline) {
		st = e.status()
	})
	return st, err
}

// Place appends a clip for asset to the first track of its kind.
func (e *Editor) Place(ctx context.Context, asset models.Asset) (models.Clip, bool, error) {
	var (
		clip models.Clip
		ok   bool
	)
	err := e.do(ctx, func(tl *timeline.Timeline) {
		clip, ok = tl.PlaceOnTrack(asset)
		if !ok {
			e.log.Debug("placement skipped",
				slog.String("asset_id", asset.ID),
				slog.String("kind", string(asset.Kind)))
			return
		}
		e.log.Info("clip placed",
			slog.String("clip_id", clip.ID),
			slog.String("track_id", clip.TrackID),
			slog.Float64("start_time", clip.StartTime))
		e.timelineUpdated()
	})
	return clip, ok, err
}

// UpdateTrack merges patch into a track.
func (e *Editor) UpdateTrack(ctx context.Context, id string, patch timeline.TrackPatch) (models.Track, bool, error) {
	var (
		track models.Track
		ok    bool
	)
	err := e.do(ctx, func(tl *timeline.Timeline) {
		track, ok = tl.UpdateTrack(id, patch)
		if ok {
			e.timelineUpdated()
		}
	})
	return track, ok, err
}

// DeleteTrack removes a track and its clips.
func (e *Editor) DeleteTrack(ctx context.Context, id string) (models.Track, bool, error) {
	var (
		track models.Track
		ok    bool
	)
	err := e.do(ctx, func(tl *timeline.Timeline) {
		track, ok = tl.DeleteTrack(id)
		if ok {
			e.log.Info("track deleted",
				slog.String("track_id", id),
				slog.Int("clips", len(track.Items)))
			e.timelineUpdated()
		}
	})
	return track, ok, err
}

// AddTrack appends an empty track.
func (e *Editor) AddTrack(ctx context.Context, kind models.Kind, name string) (models.Track, bool, error) {
	var (
		track models.Track
		ok    bool
	)
	err := e.do(ctx, func(tl *timeline.Timeline) {
		track, ok = tl.AddTrack(kind, name)
		if ok {
			e.timelineUpdated()
		}
	})
	return track, ok, err
}

func (e *Editor) transport(ctx context.Context, fn func(tl *timeline.Timeline) bool) (Status, error) {
	var st Status
	err := e.do(ctx, func(tl *timeline.Timeline) {
		if fn(tl) {
			e.emit(sse.TypeTransportState, e.status())
		}
		st = e.status()
	})
	return st, err
}

// Play starts playback.
func (e *Editor) Play(ctx context.Context) (Status, error) {
	return e.transport(ctx, (*timeline.Timeline).Play)
}

// Pause stops playback in place.
func (e *Editor) Pause(ctx context.Context) (Status, error) {
	return e.transport(ctx, (*timeline.Timeline).Pause)
}

// Toggle flips between playing and stopped.
func (e *Editor) Toggle(ctx context.Context) (Status, error) {
	return e.transport(ctx, func(tl *timeline.Timeline) bool {
		tl.Toggle()
		return true
	})
}

// Seek moves the playhead to t seconds, clamped into the timeline.
func (e *Editor) Seek(ctx context.Context, t float64) (Status, error) {
	return e.transport(ctx, func(tl *timeline.Timeline) bool {
		tl.Seek(t)
		return true
	})
}

// SeekPosition moves the playhead to the time under pixel x at scale.
func (e *Editor) SeekPosition(ctx context.Context, x float64, scale geometry.Scale) (Status, error) {
	return e.Seek(ctx, scale.OrDefault().PositionToTime(x))
}

// Skip seeks by delta seconds relative to the playhead.
func (e *Editor) Skip(ctx context.Context, delta float64) (Status, error) {
	return e.transport(ctx, func(tl *timeline.Timeline) bool {
		tl.Skip(delta)
		return true
	})
}

// SkipForward skips ahead by the configured interval.
func (e *Editor) SkipForward(ctx context.Context) (Status, error) {
	return e.Skip(ctx, e.skip)
}

// SkipBackward skips back by the configured interval.
func (e *Editor) SkipBackward(ctx context.Context) (Status, error) {
	return e.Skip(ctx, -e.skip)
}

// Reorder shuffles every unlocked audio track in one step.
func (e *Editor) Reorder(ctx context.Context) (timeline.ReorderResult, error) {
	var res timeline.ReorderResult
	err := e.do(ctx, func(tl *timeline.Timeline) {
		res = tl.Reorder(e.rng)
		e.log.Info("audio tracks reordered", slog.Int("tracks", len(res.ShuffledTracks)))
		e.timelineUpdated()
		e.emit(sse.TypeReorderCompleted, res)
	})
	return res, err
}
