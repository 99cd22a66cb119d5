package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/fractal/internal/apperr"
	"github.com/starford/fractal/internal/editor"
	"github.com/starford/fractal/internal/geometry"
	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/timeline"
)

// commandTimeout bounds how long a command waits for the editor.
const commandTimeout = 5 * time.Second

// Controller is the part of the editor the control channel drives.
// *editor.Editor satisfies it.
type Controller interface {
	Play(ctx context.Context) (editor.Status, error)
	Pause(ctx context.Context) (editor.Status, error)
	Toggle(ctx context.Context) (editor.Status, error)
	Seek(ctx context.Context, t float64) (editor.Status, error)
	SeekPosition(ctx context.Context, x float64, scale geometry.Scale) (editor.Status, error)
	Skip(ctx context.Context, delta float64) (editor.Status, error)
	UpdateTrack(ctx context.Context, id string, patch timeline.TrackPatch) (models.Track, bool, error)
	Reorder(ctx context.Context) (timeline.ReorderResult, error)
}

var _ Controller = (*editor.Editor)(nil)

// Command types accepted from clients.
const (
	CmdPlay         = "play"
	CmdPause        = "pause"
	CmdToggle       = "toggle"
	CmdSeek         = "seek"
	CmdSeekPosition = "seek_position"
	CmdSkip         = "skip"
	CmdUpdateTrack  = "update_track"
	CmdReorder      = "reorder"
)

// Command is a client request. Only the fields its type needs are read.
type Command struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`

	Time     *float64 `json:"time,omitempty"`
	Position *float64 `json:"position,omitempty"`
	PPS      float64  `json:"pps,omitempty"`
	Delta    *float64 `json:"delta,omitempty"`

	TrackID string              `json:"track_id,omitempty"`
	Patch   timeline.TrackPatch `json:"patch"`
}

// Ack answers one Command.
type Ack struct {
	Type  string `json:"type"` // always "ack"
	ID    string `json:"id,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

func (h *Hub) handle(raw []byte) Ack {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Ack{Type: "ack", Error: "invalid command: " + err.Error()}
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	data, err := h.dispatch(ctx, cmd)
	if err != nil {
		return Ack{Type: "ack", ID: cmd.ID, Error: err.Error()}
	}
	return Ack{Type: "ack", ID: cmd.ID, OK: true, Data: data}
}

func (h *Hub) dispatch(ctx context.Context, cmd Command) (any, error) {
	switch cmd.Type {
	case CmdPlay:
		return h.ctrl.Play(ctx)
	case CmdPause:
		return h.ctrl.Pause(ctx)
	case CmdToggle:
		return h.ctrl.Toggle(ctx)
	case CmdSeek:
		if cmd.Time == nil {
			return nil, missing("time")
		}
		return h.ctrl.Seek(ctx, *cmd.Time)
	case CmdSeekPosition:
		if cmd.Position == nil {
			return nil, missing("position")
		}
		return h.ctrl.SeekPosition(ctx, *cmd.Position, geometry.Scale(cmd.PPS))
	case CmdSkip:
		if cmd.Delta == nil {
			return nil, missing("delta")
		}
		return h.ctrl.Skip(ctx, *cmd.Delta)
	case CmdUpdateTrack:
		if cmd.TrackID == "" {
			return nil, missing("track_id")
		}
		tr, ok, err := h.ctrl.UpdateTrack(ctx, cmd.TrackID, cmd.Patch)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("track %s: %w", cmd.TrackID, apperr.ErrNotFound)
		}
		return tr, nil
	case CmdReorder:
		return h.ctrl.Reorder(ctx)
	default:
		return nil, fmt.Errorf("unknown command %q: %w", cmd.Type, apperr.ErrInvalidInput)
	}
}

func missing(field string) error {
	return fmt.Errorf("%w: %s is required", apperr.ErrInvalidInput, field)
}
