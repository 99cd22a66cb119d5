// Package export renders timeline tracks as CMX 3600 edit decision lists so
// that a cut can be conformed in an external editor.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/starford/fractal/internal/models"
)

// DefaultFrameRate is used when the caller passes a non-positive rate.
const DefaultFrameRate = 30.0

// ResolvedClip is a placed clip joined with the asset it plays.
type ResolvedClip struct {
	ClipName  string
	MediaPath string
	// SourceIn and SourceOut are seconds into the asset.
	SourceIn  float64
	SourceOut float64
	// RecordIn is the clip's start on the timeline, in seconds.
	RecordIn float64
}

// Resolve joins the clips of track with their assets. Clips whose asset
// cannot be found are returned by id in unresolved and left out of the list.
func Resolve(track models.Track, lookup func(assetID string) (models.Asset, bool)) (clips []ResolvedClip, unresolved []string) {
	clips = make([]ResolvedClip, 0, len(track.Items))
	for _, c := range track.Items {
		a, ok := lookup(c.AssetID)
		if !ok {
			unresolved = append(unresolved, c.ID)
			continue
		}
		clips = append(clips, ResolvedClip{
			ClipName:  c.Name,
			MediaPath: a.Source,
			SourceIn:  c.SourceOffset,
			SourceOut: c.SourceOffset + c.Duration,
			RecordIn:  c.StartTime,
		})
	}
	return clips, unresolved
}

// GenerateEDL renders clips as one EDL event each. kind selects the channel
// column: audio tracks are cut on A, video and stills on V.
func GenerateEDL(clips []ResolvedClip, title string, kind models.Kind, frameRate float64) string {
	if frameRate <= 0 || math.IsInf(frameRate, 0) || math.IsNaN(frameRate) {
		frameRate = DefaultFrameRate
	}
	fps := int(math.Round(frameRate))
	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	channel := "V"
	if kind == models.KindAudio {
		channel = "A"
	}

	lines := []string{fmt.Sprintf("TITLE: %s", SanitizeName(title, 70))}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for i, clip := range clips {
		length := clip.SourceOut - clip.SourceIn
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", channel,
				secondsToTimecode(clip.SourceIn, fps),
				secondsToTimecode(clip.SourceOut, fps),
				secondsToTimecode(clip.RecordIn, fps),
				secondsToTimecode(clip.RecordIn+length, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", SanitizeName(clip.ClipName, 0)),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToTimecode(sec float64, fps int) string {
	if sec < 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		sec = 0
	}
	totalFrames := int(math.Round(sec * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
