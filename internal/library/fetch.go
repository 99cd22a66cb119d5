package library

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/fractal/internal/apperr"
	"github.com/starford/fractal/internal/checksum"
	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/sidecar"
)

const (
	defaultMaxDownload = 200 << 20 // 200 MB
	generatedDir       = "generated"
)

var (
	mimeToExt = map[string]string{
		"video/mp4":       ".mp4",
		"video/webm":      ".webm",
		"video/quicktime": ".mov",
		"audio/mpeg":      ".mp3",
		"audio/wav":       ".wav",
		"audio/wave":      ".wav",
		"audio/x-wav":     ".wav",
		"audio/ogg":       ".ogg",
		"audio/aac":       ".aac",
		"audio/flac":      ".flac",
		"image/png":       ".png",
		"image/jpeg":      ".jpg",
		"image/gif":       ".gif",
		"image/webp":      ".webp",
		"image/bmp":       ".bmp",
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

type fetcher struct {
	client    *http.Client
	maxBytes  int64
	checkHost func(host string) error
}

func newFetcher() *fetcher {
	f := &fetcher{maxBytes: defaultMaxDownload, checkHost: checkBlockedHost}
	f.client = &http.Client{
		Timeout: 2 * time.Minute,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return f.checkHost(req.URL.Hostname())
		},
	}
	return f
}

// Download describes a generated asset to fetch into the library.
type Download struct {
	URL      string  `json:"url"`
	Filename string  `json:"filename,omitempty"`
	Name     string  `json:"name,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// ImportURL downloads an http(s) or base64 data: URL into the library's
// generated folder and registers it. A display name or duration is kept in
// a sidecar next to the file so that later syncs preserve it.
func (s *Service) ImportURL(ctx context.Context, d Download) (models.Asset, bool, error) {
	if d.Duration < 0 {
		return models.Asset{}, false, fmt.Errorf("library: import url: %w: negative duration", apperr.ErrInvalidInput)
	}
	var (
		data []byte
		ext  string
		err  error
	)
	if strings.HasPrefix(d.URL, "data:") {
		data, ext, err = decodeDataURI(d.URL)
	} else {
		data, ext, err = s.fetcher.fetch(ctx, d.URL)
	}
	if err != nil {
		return models.Asset{}, false, fmt.Errorf("library: import url: %w: %v", apperr.ErrInvalidInput, err)
	}
	if int64(len(data)) > s.fetcher.maxBytes {
		return models.Asset{}, false, fmt.Errorf("library: import url: %w: file too large: %d bytes (max %d)",
			apperr.ErrInvalidInput, len(data), s.fetcher.maxBytes)
	}
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "text/html") {
		return models.Asset{}, false, fmt.Errorf("library: import url: %w: content is an HTML page", apperr.ErrUnsupportedMedia)
	}

	filename := d.Filename
	if filename == "" {
		filename = filenameFromURL(d.URL, ext)
	}
	filename = sanitizeFilename(filename)
	if !models.IsMedia(filename) && ext != "" {
		filename += ext
	}
	if !models.IsMedia(filename) {
		return models.Asset{}, false, fmt.Errorf("library: import url: %s: %w", filename, apperr.ErrUnsupportedMedia)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.reg.FindByChecksum(checksum.Sum(data)); err == nil {
		return existing, false, nil
	}

	rel := s.uniquePath(path.Join(generatedDir, filename))
	if d.Name != "" || d.Duration > 0 {
		side, err := (&sidecar.Meta{Name: d.Name, Duration: sidecar.Seconds(d.Duration)}).Marshal()
		if err != nil {
			return models.Asset{}, false, err
		}
		if err := s.store.Write(sidecar.Path(rel), side); err != nil {
			return models.Asset{}, false, fmt.Errorf("library: import url: %w", err)
		}
	}
	meta, err := s.store.WriteFrom(rel, bytes.NewReader(data))
	if err != nil {
		return models.Asset{}, false, fmt.Errorf("library: import url: %w", err)
	}
	return s.register(meta, "")
}

func (f *fetcher) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := f.checkHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", f.maxBytes)
	}

	ct := resp.Header.Get("Content-Type")
	return data, mimeToExt[strings.TrimSpace(strings.Split(ct, ";")[0])], nil
}

// decodeDataURI parses a data:[<mediatype>][;base64],<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	commaIdx := strings.Index(rest, ",")
	if commaIdx < 0 {
		return nil, "", errors.New("invalid data URI: missing comma separator")
	}

	meta := rest[:commaIdx]
	encoded := rest[commaIdx+1:]

	if !strings.Contains(meta, ";base64") {
		return nil, "", errors.New("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}

	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := mimeToExt[mime]
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}
	return data, ext, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	// AWS/GCP/Azure metadata endpoint.
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// filenameFromURL tries to extract a filename from a URL, falling back to a UUID.
func filenameFromURL(rawURL, fallbackExt string) string {
	if !strings.HasPrefix(rawURL, "data:") {
		if parsed, err := url.Parse(rawURL); err == nil {
			base := path.Base(parsed.Path)
			if base != "" && base != "." && base != "/" && strings.Contains(base, ".") {
				return base
			}
		}
	}
	return uuid.NewString() + fallbackExt
}

// sanitizeFilename strips path separators and unsafe characters.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = safeFilenameRe.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = uuid.NewString()
	}
	return name
}
