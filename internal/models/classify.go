package models

import (
	"path/filepath"
	"strings"
)

var extKinds = map[string]Kind{
	".mp4":  KindVideo,
	".m4v":  KindVideo,
	".mov":  KindVideo,
	".webm": KindVideo,
	".mkv":  KindVideo,
	".avi":  KindVideo,

	".mp3":  KindAudio,
	".wav":  KindAudio,
	".aac":  KindAudio,
	".m4a":  KindAudio,
	".flac": KindAudio,
	".ogg":  KindAudio,

	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".webp": KindImage,
	".bmp":  KindImage,
}

// KindFromMIME classifies an uploaded file by its MIME type. Anything that is
// neither video/* nor audio/* is treated as an image.
func KindFromMIME(mime string) Kind {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	default:
		return KindImage
	}
}

// KindFromPath classifies a library file by extension. ok is false for files
// that are not media.
func KindFromPath(path string) (Kind, bool) {
	k, ok := extKinds[strings.ToLower(filepath.Ext(path))]
	return k, ok
}

// IsMedia reports whether path has a known media extension.
func IsMedia(path string) bool {
	_, ok := KindFromPath(path)
	return ok
}
