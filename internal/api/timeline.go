package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fractal/internal/apperr"
	"github.com/starford/fractal/internal/export"
	"github.com/starford/fractal/internal/geometry"
	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/timeline"
)

// GetTimeline handles GET /api/timeline.
//
//	@Summary		Get the tracks, clips and transport state
//	@Tags			timeline
//	@Produce		json
//	@Success		200	{object}	TimelineResponse
//	@Security		BearerAuth
//	@Router			/timeline [get]
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ed.Snapshot(r.Context())
	if err != nil {
		writeError(w, "get timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, TimelineResponse{Snapshot: snap, Timecode: geometry.Timecode(snap.CurrentTime)})
}

// Layout handles GET /api/timeline/layout.
//
//	@Summary		Get the timeline in pixel coordinates
//	@Tags			timeline
//	@Produce		json
//	@Param			pps	query		number	false	"Pixels per second"
//	@Success		200	{object}	geometry.View
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timeline/layout [get]
func (h *Handler) Layout(w http.ResponseWriter, r *http.Request) {
	scale := h.opts.Scale
	if raw := r.URL.Query().Get("pps"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || !geometry.Scale(v).Valid() {
			writeJSON(w, http.StatusBadRequest, errorBody("pps must be a positive number"))
			return
		}
		scale = geometry.Scale(v)
	}
	snap, err := h.ed.Snapshot(r.Context())
	if err != nil {
		writeError(w, "layout", err)
		return
	}
	writeJSON(w, http.StatusOK, scale.Layout(snap))
}

// ExportEDL handles GET /api/timeline/export.edl.
//
//	@Summary		Export a track as a CMX 3600 EDL
//	@Tags			timeline
//	@Produce		plain
//	@Param			track	query		string	false	"Track id (default: first video track)"
//	@Param			fps		query		number	false	"Frame rate"
//	@Param			title	query		string	false	"EDL title"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timeline/export.edl [get]
func (h *Handler) ExportEDL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fps := h.opts.FrameRate
	if raw := q.Get("fps"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("fps must be a positive number"))
			return
		}
		fps = v
	}
	title := q.Get("title")
	if title == "" {
		title = "FRACTAL"
	}

	snap, err := h.ed.Snapshot(r.Context())
	if err != nil {
		writeError(w, "export edl", err)
		return
	}
	track, ok := pickTrack(snap.Tracks, q.Get("track"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("track not found"))
		return
	}

	ctx := r.Context()
	clips, unresolved := export.Resolve(track, func(id string) (models.Asset, bool) {
		a, err := h.lib.Get(ctx, id)
		return a, err == nil
	})
	if len(unresolved) > 0 {
		w.Header().Set("X-Unresolved-Clips", strings.Join(unresolved, ","))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.SanitizeName(track.Name, 64)+".edl"))
	_, _ = w.Write([]byte(export.GenerateEDL(clips, title, track.Kind, fps)))
}

func pickTrack(tracks []models.Track, id string) (models.Track, bool) {
	for _, t := range tracks {
		if (id == "" && t.Kind == models.KindVideo) || (id != "" && t.ID == id) {
			return t, true
		}
	}
	return models.Track{}, false
}

// Place handles POST /api/timeline/place.
//
//	@Summary		Append an asset to the first track of its kind
//	@Tags			timeline
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PlaceRequest	true	"Asset to place"
//	@Success		201		{object}	PlaceResponse
//	@Success		200		{object}	PlaceResponse	"Not placed (locked or no track of the kind)"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/timeline/place [post]
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	var req PlaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	asset, err := h.lib.Get(r.Context(), req.AssetID)
	if err != nil {
		writeError(w, "place", err)
		return
	}
	clip, ok, err := h.ed.Place(r.Context(), asset)
	if err != nil {
		writeError(w, "place", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, PlaceResponse{})
		return
	}
	writeJSON(w, http.StatusCreated, PlaceResponse{Placed: true, Clip: &clip})
}

// Reorder handles POST /api/timeline/reorder.
//
//	@Summary		Shuffle the clips of every unlocked audio track
//	@Tags			timeline
//	@Produce		json
//	@Success		200	{object}	timeline.ReorderResult
//	@Security		BearerAuth
//	@Router			/timeline/reorder [post]
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	res, err := h.ed.Reorder(r.Context())
	if err != nil {
		writeError(w, "reorder", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateTrack handles POST /api/tracks.
//
//	@Summary		Add an empty track
//	@Tags			tracks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTrackRequest	true	"Track to add"
//	@Success		201		{object}	models.Track
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tracks [post]
func (h *Handler) CreateTrack(w http.ResponseWriter, r *http.Request) {
	var req CreateTrackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	track, ok, err := h.ed.AddTrack(r.Context(), req.Kind, req.Name)
	if err != nil {
		writeError(w, "create track", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid track kind"))
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

// UpdateTrack handles PATCH /api/tracks/{id}.
//
//	@Summary		Rename, lock or mute a track
//	@Tags			tracks
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Track id"
//	@Param			body	body		UpdateTrackRequest	true	"Fields to change"
//	@Success		200		{object}	models.Track
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tracks/{id} [patch]
func (h *Handler) UpdateTrack(w http.ResponseWriter, r *http.Request) {
	var req UpdateTrackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	track, ok, err := h.ed.UpdateTrack(r.Context(), chi.URLParam(r, "id"), timeline.TrackPatch(req))
	if err != nil {
		writeError(w, "update track", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, track)
}

// DeleteTrack handles DELETE /api/tracks/{id}.
//
//	@Summary		Delete a track and its clips
//	@Description	The caller must confirm with ?confirm=true; without it the request fails with 428.
//	@Tags			tracks
//	@Produce		json
//	@Param			id		path		string	true	"Track id"
//	@Param			confirm	query		bool	true	"Confirmation"
//	@Success		200		{object}	models.Track
//	@Failure		404		{object}	errResponse
//	@Failure		428		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tracks/{id} [delete]
func (h *Handler) DeleteTrack(w http.ResponseWriter, r *http.Request) {
	if confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !confirmed {
		writeError(w, "delete track", fmt.Errorf("%w: pass confirm=true to delete a track and its clips", apperr.ErrConfirmationRequired))
		return
	}
	track, ok, err := h.ed.DeleteTrack(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "delete track", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, track)
}
