// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the editor to the assistant, over stdio or streamable HTTP.
package mcpserver

import (
	"context"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/fractal/internal/editor"
	"github.com/starford/fractal/internal/library"
	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/registry"
	"github.com/starford/fractal/internal/timeline"
)

// ContractURI names the timeline contract resource.
const ContractURI = "fractal://timeline-contract"

// Editor is the part of the editor the tools drive.
type Editor interface {
	Snapshot(ctx context.Context) (timeline.Snapshot, error)
	Status(ctx context.Context) (editor.Status, error)
	Place(ctx context.Context, asset models.Asset) (models.Clip, bool, error)
	UpdateTrack(ctx context.Context, id string, patch timeline.TrackPatch) (models.Track, bool, error)
	Reorder(ctx context.Context) (timeline.ReorderResult, error)
	Seek(ctx context.Context, t float64) (editor.Status, error)
	Play(ctx context.Context) (editor.Status, error)
	Pause(ctx context.Context) (editor.Status, error)
}

// Library is the part of the asset library the tools use.
type Library interface {
	List(ctx context.Context, f registry.Filter) ([]models.Asset, int, error)
	Get(ctx context.Context, id string) (models.Asset, error)
	ImportURL(ctx context.Context, d library.Download) (models.Asset, bool, error)
	RegisterRemote(ctx context.Context, ra library.RemoteAsset) (models.Asset, bool, error)
}

var (
	_ Editor  = (*editor.Editor)(nil)
	_ Library = (*library.Service)(nil)
)

// Server wraps the MCP server with Fractal tools.
type Server struct {
	mcp *server.MCPServer
	ed  Editor
	lib Library
}

// New creates a new MCP server with all Fractal tools registered.
func New(ed Editor, lib Library) *Server {
	s := &Server{ed: ed, lib: lib}

	s.mcp = server.NewMCPServer(
		"Fractal",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_assets",
		mcp.WithDescription("List registered media assets."),
		mcp.WithString("kind", mcp.Description("Optional kind filter"), mcp.Enum("VIDEO", "AUDIO", "IMAGE")),
		mcp.WithString("query", mcp.Description("Optional name substring")),
	), s.listAssets)

	s.mcp.AddTool(mcp.NewTool("get_timeline",
		mcp.WithDescription("Return the tracks, clips and transport state of the timeline."),
	), s.getTimeline)

	s.mcp.AddTool(mcp.NewTool("place_asset",
		mcp.WithDescription("Append an asset to the first track of its kind. "+
			"Read the contract first via get_timeline_contract."),
		mcp.WithString("asset_id", mcp.Required(), mcp.Description("Id of a registered asset")),
	), s.placeAsset)

	s.mcp.AddTool(mcp.NewTool("update_track",
		mcp.WithDescription("Rename, lock/unlock or mute/unmute a track."),
		mcp.WithString("track_id", mcp.Required(), mcp.Description("Track id")),
		mcp.WithString("name", mcp.Description("New track name")),
		mcp.WithBoolean("locked", mcp.Description("Lock state")),
		mcp.WithBoolean("muted", mcp.Description("Mute state")),
	), s.updateTrack)

	s.mcp.AddTool(mcp.NewTool("reorder_audio",
		mcp.WithDescription("Randomly reorder the clips of every unlocked audio track."),
	), s.reorderAudio)

	s.mcp.AddTool(mcp.NewTool("seek",
		mcp.WithDescription("Move the playhead. The time is clamped to the timeline."),
		mcp.WithNumber("time", mcp.Required(), mcp.Description("Seconds from the start")),
	), s.seek)

	s.mcp.AddTool(mcp.NewTool("play",
		mcp.WithDescription("Start playback."),
	), s.play)

	s.mcp.AddTool(mcp.NewTool("pause",
		mcp.WithDescription("Pause playback."),
	), s.pause)

	s.mcp.AddTool(mcp.NewTool("register_generated_asset",
		mcp.WithDescription("Add a generated asset from an http(s) or base64 data: URL. "+
			"By default the file is downloaded into the library."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("name", mcp.Description("Display name")),
		mcp.WithString("kind", mcp.Description("Asset kind, required when download is false"), mcp.Enum("VIDEO", "AUDIO", "IMAGE")),
		mcp.WithNumber("duration", mcp.Description("Nominal duration in seconds")),
		mcp.WithString("filename", mcp.Description("Target filename when downloading")),
		mcp.WithBoolean("download", mcp.Description("Store the file in the library (default true)")),
	), s.registerGeneratedAsset)

	s.mcp.AddTool(mcp.NewTool("describe_project",
		mcp.WithDescription("Summarize the library and the timeline in one sentence, "+
			"as context for edit suggestions."),
	), s.describeProject)

	s.mcp.AddTool(mcp.NewTool("get_timeline_contract",
		mcp.WithDescription("Returns the timeline editing contract. "+
			"Call this before placing assets or changing tracks."),
	), s.getTimelineContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Timeline Contract",
			mcp.WithResourceDescription("Placement, reorder and transport rules of the timeline."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio serves one session over in/out until ctx is cancelled or in
// reaches EOF.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// Handler returns a streamable HTTP handler so that the assistant shares the
// running editor.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}
