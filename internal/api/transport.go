package api

import (
	"net/http"

	"github.com/starford/fractal/internal/editor"
	"github.com/starford/fractal/internal/geometry"
)

func (h *Handler) writeStatus(w http.ResponseWriter, op string, st editor.Status, err error) {
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// TransportStatus handles GET /api/transport.
//
//	@Summary		Get the transport state
//	@Tags			transport
//	@Produce		json
//	@Success		200	{object}	TransportStatus
//	@Security		BearerAuth
//	@Router			/transport [get]
func (h *Handler) TransportStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.ed.Status(r.Context())
	h.writeStatus(w, "transport status", st, err)
}

// Play handles POST /api/transport/play.
//
//	@Summary	Start playback
//	@Tags		transport
//	@Produce	json
//	@Success	200	{object}	TransportStatus
//	@Security	BearerAuth
//	@Router		/transport/play [post]
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	st, err := h.ed.Play(r.Context())
	h.writeStatus(w, "play", st, err)
}

// Pause handles POST /api/transport/pause.
//
//	@Summary	Pause playback
//	@Tags		transport
//	@Produce	json
//	@Success	200	{object}	TransportStatus
//	@Security	BearerAuth
//	@Router		/transport/pause [post]
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	st, err := h.ed.Pause(r.Context())
	h.writeStatus(w, "pause", st, err)
}

// Toggle handles POST /api/transport/toggle.
//
//	@Summary	Toggle between playing and stopped
//	@Tags		transport
//	@Produce	json
//	@Success	200	{object}	TransportStatus
//	@Security	BearerAuth
//	@Router		/transport/toggle [post]
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	st, err := h.ed.Toggle(r.Context())
	h.writeStatus(w, "toggle", st, err)
}

// Seek handles POST /api/transport/seek.
//
//	@Summary		Move the playhead
//	@Description	Pass either a time in seconds or a pixel position (with optional pps).
//	@Tags			transport
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SeekRequest	true	"Target"
//	@Success		200		{object}	TransportStatus
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/transport/seek [post]
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var (
		st  editor.Status
		err error
	)
	if req.Time != nil {
		st, err = h.ed.Seek(r.Context(), *req.Time)
	} else {
		scale := h.opts.Scale
		if req.PPS > 0 {
			scale = geometry.Scale(req.PPS)
		}
		st, err = h.ed.SeekPosition(r.Context(), *req.Position, scale)
	}
	h.writeStatus(w, "seek", st, err)
}

// Skip handles POST /api/transport/skip.
//
//	@Summary	Move the playhead relative to its position
//	@Tags		transport
//	@Accept		json
//	@Produce	json
//	@Param		body	body		SkipRequest	true	"Delta or direction"
//	@Success	200		{object}	TransportStatus
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/transport/skip [post]
func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	var req SkipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var (
		st  editor.Status
		err error
	)
	switch {
	case req.Delta != nil:
		st, err = h.ed.Skip(r.Context(), *req.Delta)
	case req.Direction == "backward":
		st, err = h.ed.SkipBackward(r.Context())
	default:
		st, err = h.ed.SkipForward(r.Context())
	}
	h.writeStatus(w, "skip", st, err)
}
