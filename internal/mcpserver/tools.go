package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/fractal/internal/apperr"
	"github.com/starford/fractal/internal/library"
	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/registry"
	"github.com/starford/fractal/internal/timeline"
)

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listAssets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := registry.Filter{Query: req.GetString("query", "")}
	if k := req.GetString("kind", ""); k != "" {
		kind, err := models.ParseKind(k)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		f.Kind = kind
	}
	assets, _, err := s.lib.List(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(assets)
}

type timelineView struct {
	timeline.Snapshot
	Timecode string `json:"timecode"`
}

func (s *Server) getTimeline(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.ed.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.ed.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(timelineView{Snapshot: snap, Timecode: st.Timecode})
}

type placeResult struct {
	Placed bool         `json:"placed"`
	Clip   *models.Clip `json:"clip,omitempty"`
	Reason string       `json:"reason,omitempty"`
}

func (s *Server) placeAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("asset_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	asset, err := s.lib.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("asset not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	clip, ok, err := s.ed.Place(ctx, asset)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return jsonResult(placeResult{Reason: fmt.Sprintf("no unlocked %s track", asset.Kind)})
	}
	return jsonResult(placeResult{Placed: true, Clip: &clip})
}

func (s *Server) updateTrack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("track_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	var patch timeline.TrackPatch
	if _, ok := args["name"]; ok {
		name := req.GetString("name", "")
		patch.Name = &name
	}
	if _, ok := args["locked"]; ok {
		locked := req.GetBool("locked", false)
		patch.Locked = &locked
	}
	if _, ok := args["muted"]; ok {
		muted := req.GetBool("muted", false)
		patch.Muted = &muted
	}
	if patch.Empty() {
		return mcp.NewToolResultError("nothing to update: pass name, locked or muted"), nil
	}
	tr, ok, err := s.ed.UpdateTrack(ctx, id, patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("track not found: %s", id)), nil
	}
	return jsonResult(tr)
}

func (s *Server) reorderAudio(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.ed.Reorder(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) seek(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := req.RequireFloat("time")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := s.ed.Seek(ctx, t)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) play(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.ed.Play(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) pause(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.ed.Pause(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

type registerResult struct {
	Asset   models.Asset `json:"asset"`
	Created bool         `json:"created"`
}

func (s *Server) registerGeneratedAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name := req.GetString("name", "")
	duration := req.GetFloat("duration", 0)

	var (
		asset   models.Asset
		created bool
	)
	if req.GetBool("download", true) {
		asset, created, err = s.lib.ImportURL(ctx, library.Download{
			URL:      rawURL,
			Filename: req.GetString("filename", ""),
			Name:     name,
			Duration: duration,
		})
	} else {
		kind, kerr := models.ParseKind(req.GetString("kind", ""))
		if kerr != nil {
			return mcp.NewToolResultError("kind is required when download is false"), nil
		}
		asset, created, err = s.lib.RegisterRemote(ctx, library.RemoteAsset{
			Name:     name,
			Kind:     kind,
			Source:   rawURL,
			Duration: duration,
		})
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(registerResult{Asset: asset, Created: created})
}

func (s *Server) describeProject(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	assets, _, err := s.lib.List(ctx, registry.Filter{})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.ed.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(Describe(assets, snap)), nil
}

// Describe summarizes the library and the timeline for the assistant.
func Describe(assets []models.Asset, snap timeline.Snapshot) string {
	names := make([]string, len(assets))
	for i, a := range assets {
		names[i] = a.Name
	}
	return fmt.Sprintf("I have %d files: %s. The timeline has %d clips placed.",
		len(assets), strings.Join(names, ", "), snap.ClipCount())
}

func (s *Server) getTimelineContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TimelineContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     TimelineContract,
		},
	}, nil
}
