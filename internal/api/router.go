package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fractal/internal/editor"
	"github.com/starford/fractal/internal/geometry"
	"github.com/starford/fractal/internal/library"
)

// Options configures the API router.
type Options struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// Remote, if non-nil, is mounted at GET /ws inside the auth group.
	Remote http.Handler
	// Scale is the layout scale used when a request does not pass one.
	Scale geometry.Scale
	// FrameRate is the default EDL frame rate.
	FrameRate float64
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(ed *editor.Editor, lib *library.Service, opts Options) chi.Router {
	h := NewHandler(ed, lib, opts)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))

	// Assets.
	r.Get("/assets", h.ListAssets)
	r.Post("/assets", h.UploadAsset)
	r.Post("/assets/remote", h.RegisterRemote)
	r.Get("/assets/{id}", h.GetAsset)
	r.Post("/library/sync", h.SyncLibrary)

	// Timeline.
	r.Get("/timeline", h.GetTimeline)
	r.Get("/timeline/layout", h.Layout)
	r.Get("/timeline/export.edl", h.ExportEDL)
	r.Post("/timeline/place", h.Place)
	r.Post("/timeline/reorder", h.Reorder)

	// Tracks.
	r.Post("/tracks", h.CreateTrack)
	r.Patch("/tracks/{id}", h.UpdateTrack)
	r.Delete("/tracks/{id}", h.DeleteTrack)

	// Transport.
	r.Get("/transport", h.TransportStatus)
	r.Post("/transport/play", h.Play)
	r.Post("/transport/pause", h.Pause)
	r.Post("/transport/toggle", h.Toggle)
	r.Post("/transport/seek", h.Seek)
	r.Post("/transport/skip", h.Skip)

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}
	if opts.Remote != nil {
		r.Get("/ws", opts.Remote.ServeHTTP)
	}

	return r
}

// Handler holds API route handlers.
type Handler struct {
	ed   *editor.Editor
	lib  *library.Service
	opts Options
}

// NewHandler creates a new Handler.
func NewHandler(ed *editor.Editor, lib *library.Service, opts Options) *Handler {
	opts.Scale = opts.Scale.OrDefault()
	return &Handler{ed: ed, lib: lib, opts: opts}
}
