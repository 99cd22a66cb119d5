package timeline

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/starford/fractal/internal/models"
)

// TrackPatch carries the track-level fields to merge. Nil fields are left
// untouched.
type TrackPatch struct {
	Name   *string `json:"name,omitempty"`
	Locked *bool   `json:"locked,omitempty"`
	Muted  *bool   `json:"muted,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p TrackPatch) Empty() bool {
	return p.Name == nil && p.Locked == nil && p.Muted == nil
}

// Tracks returns a deep copy of the ordered track list.
func (tl *Timeline) Tracks() []models.Track {
	return cloneTracks(tl.tracks)
}

// Track returns a copy of the track with the given id.
func (tl *Timeline) Track(id string) (models.Track, bool) {
	i := tl.indexOf(id)
	if i < 0 {
		return models.Track{}, false
	}
	return tl.tracks[i].Clone(), true
}

// PlaceOnTrack appends a clip for asset to the first track of the same kind.
// Clips are laid end to end in append order. Nothing is placed when no track
// of that kind exists, when that track is locked, or when the asset carries a
// negative or infinite nominal duration.
func (tl *Timeline) PlaceOnTrack(asset models.Asset) (models.Clip, bool) {
	i := tl.firstOfKind(asset.Kind)
	if i < 0 {
		return models.Clip{}, false
	}
	track := &tl.tracks[i]
	if track.Locked {
		return models.Clip{}, false
	}

	dur := asset.Duration
	switch {
	case dur < 0 || math.IsInf(dur, 0):
		return models.Clip{}, false
	case dur == 0 || math.IsNaN(dur):
		dur = tl.clipDuration
	}

	clip := models.Clip{
		ID:           tl.newID(),
		AssetID:      asset.ID,
		TrackID:      track.ID,
		Name:         asset.Name,
		StartTime:    track.End(),
		Duration:     dur,
		SourceOffset: 0,
	}
	track.Items = append(track.Items, clip)
	tl.grow(clip.End())
	return clip, true
}

// UpdateTrack merges patch into the track with the given id. Locked tracks
// accept updates so that they can be unlocked.
func (tl *Timeline) UpdateTrack(id string, patch TrackPatch) (models.Track, bool) {
	i := tl.indexOf(id)
	if i < 0 {
		return models.Track{}, false
	}
	track := &tl.tracks[i]
	if patch.Name != nil {
		if name := strings.TrimSpace(*patch.Name); name != "" {
			track.Name = name
		}
	}
	if patch.Locked != nil {
		track.Locked = *patch.Locked
	}
	if patch.Muted != nil {
		track.Muted = *patch.Muted
	}
	return track.Clone(), true
}

// DeleteTrack removes the track and all of its clips. Confirmation is the
// caller's business.
func (tl *Timeline) DeleteTrack(id string) (models.Track, bool) {
	i := tl.indexOf(id)
	if i < 0 {
		return models.Track{}, false
	}
	removed := tl.tracks[i]
	tl.tracks = slices.Delete(tl.tracks, i, i+1)
	return removed, true
}

// AddTrack appends an empty track. An empty name becomes <KIND>_TRACK_NN.
func (tl *Timeline) AddTrack(kind models.Kind, name string) (models.Track, bool) {
	if !kind.Valid() {
		return models.Track{}, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		n := 1
		for _, t := range tl.tracks {
			if t.Kind == kind {
				n++
			}
		}
		name = fmt.Sprintf("%s_TRACK_%02d", kind, n)
	}
	track := models.Track{
		ID:    tl.newID(),
		Kind:  kind,
		Name:  name,
		Items: []models.Clip{},
	}
	tl.tracks = append(tl.tracks, track)
	return track.Clone(), true
}

func (tl *Timeline) indexOf(id string) int {
	for i := range tl.tracks {
		if tl.tracks[i].ID == id {
			return i
		}
	}
	return -1
}

func (tl *Timeline) firstOfKind(kind models.Kind) int {
	for i := range tl.tracks {
		if tl.tracks[i].Kind == kind {
			return i
		}
	}
	return -1
}
