// Package library turns files and URLs into registered assets. It owns the
// media folder (uploads, generated downloads, files dropped in by the user)
// and keeps the registry in step with it.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/url"
	"path"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/starford/fractal/internal/apperr"
	"github.com/starford/fractal/internal/checksum"
	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/registry"
	"github.com/starford/fractal/internal/sidecar"
	"github.com/starford/fractal/internal/storage"
)

// DefaultImportDuration is the nominal duration given to imported files that
// carry no sidecar.
const DefaultImportDuration = 10.0

// MediaPrefix is the URL prefix under which library files are served.
const MediaPrefix = "/media/"

// ImportCallback is called after an asset was created or changed.
type ImportCallback func(models.Asset)

// Service coordinates the media folder and the asset registry.
type Service struct {
	store    storage.Provider
	reg      registry.Registry
	log      *slog.Logger
	duration float64
	fetcher  *fetcher
	onImport ImportCallback

	// mu serializes registrations so that duplicate detection and unique
	// file naming see a consistent folder.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDefaultDuration sets the nominal duration of imported files.
func WithDefaultDuration(d float64) Option {
	return func(s *Service) {
		if d > 0 && !math.IsInf(d, 0) {
			s.duration = d
		}
	}
}

// WithImportCallback registers fn to be called after every import.
func WithImportCallback(fn ImportCallback) Option {
	return func(s *Service) {
		s.onImport = fn
	}
}

// WithMaxDownload caps the size of assets fetched by ImportURL.
func WithMaxDownload(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.fetcher.maxBytes = n
		}
	}
}

// WithHostCheck replaces the outbound host filter used by ImportURL.
func WithHostCheck(fn func(host string) error) Option {
	return func(s *Service) {
		if fn != nil {
			s.fetcher.checkHost = fn
		}
	}
}

// NewService creates a library service.
func NewService(store storage.Provider, reg registry.Registry, opts ...Option) *Service {
	s := &Service{
		store:    store,
		reg:      reg,
		log:      slog.Default(),
		duration: DefaultImportDuration,
		fetcher:  newFetcher(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeName puts a display name into canonical form: NFC, trimmed and
// upper-cased.
func NormalizeName(name string) string {
	return cases.Upper(language.Und).String(norm.NFC.String(strings.TrimSpace(name)))
}

// SourceFor returns the asset source of a library file.
func SourceFor(rel string) string {
	return MediaPrefix + strings.TrimPrefix(path.Clean("/"+rel), "/")
}

// List returns registered assets.
func (s *Service) List(_ context.Context, f registry.Filter) ([]models.Asset, int, error) {
	return s.reg.List(f)
}

// Get returns one asset.
func (s *Service) Get(_ context.Context, id string) (models.Asset, error) {
	return s.reg.Get(id)
}

// Import stores an uploaded file in the library and registers it. Uploads
// are classified by MIME type. Content that is already registered returns
// the existing asset and created=false; the duplicate file is discarded.
func (s *Service) Import(_ context.Context, filename, mime string, r io.Reader) (models.Asset, bool, error) {
	name := sanitizeFilename(filename)
	kind, err := classifyUpload(name, mime)
	if err != nil {
		return models.Asset{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rel := s.uniquePath(name)
	meta, err := s.store.WriteFrom(rel, r)
	if err != nil {
		return models.Asset{}, false, fmt.Errorf("library: import: %w", err)
	}

	if existing, err := s.reg.FindByChecksum(meta.Checksum); err == nil {
		s.discard(rel)
		s.log.Info("import: duplicate content",
			slog.String("file", name),
			slog.String("asset_id", existing.ID))
		return existing, false, nil
	} else if !errors.Is(err, apperr.ErrNotFound) {
		s.discard(rel)
		return models.Asset{}, false, fmt.Errorf("library: import: %w", err)
	}

	asset, err := s.reg.Upsert(models.Asset{
		Name:     NormalizeName(name),
		Kind:     kind,
		Source:   SourceFor(meta.Path),
		Duration: s.duration,
		Checksum: meta.Checksum,
	})
	if err != nil {
		s.discard(rel)
		return models.Asset{}, false, fmt.Errorf("library: import: %w", err)
	}
	s.log.Info("import: registered",
		slog.String("asset_id", asset.ID),
		slog.String("source", asset.Source),
		slog.String("kind", string(asset.Kind)))
	s.notify(asset)
	return asset, true, nil
}

// RemoteAsset describes an asset that lives at a URL, such as the output of
// a generation service.
type RemoteAsset struct {
	Name     string      `json:"name"`
	Kind     models.Kind `json:"kind"`
	Source   string      `json:"source"`
	Duration float64     `json:"duration"`
}

// Validate implements validation.Validatable.
func (r RemoteAsset) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Source, validation.Required, validation.By(httpURL)),
		validation.Field(&r.Kind, validation.Required, validation.In(models.KindVideo, models.KindAudio, models.KindImage)),
		validation.Field(&r.Duration, validation.Min(0.0), validation.By(finite)),
	)
}

// RegisterRemote registers an asset by URL without downloading it. The
// source is the registry key: registering the same URL again updates the
// existing asset. created reports whether a new asset was added.
func (s *Service) RegisterRemote(_ context.Context, ra RemoteAsset) (models.Asset, bool, error) {
	if err := ra.Validate(); err != nil {
		return models.Asset{}, false, fmt.Errorf("library: register remote: %w: %v", apperr.ErrInvalidInput, err)
	}
	name := ra.Name
	if strings.TrimSpace(name) == "" {
		name = filenameFromURL(ra.Source, "")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.reg.GetBySource(ra.Source)
	created := errors.Is(err, apperr.ErrNotFound)

	asset, err := s.reg.Upsert(models.Asset{
		Name:     NormalizeName(name),
		Kind:     ra.Kind,
		Source:   ra.Source,
		Duration: ra.Duration,
	})
	if err != nil {
		return models.Asset{}, false, fmt.Errorf("library: register remote: %w", err)
	}
	s.log.Info("remote asset registered",
		slog.String("asset_id", asset.ID),
		slog.String("source", asset.Source),
		slog.Bool("created", created))
	s.notify(asset)
	return asset, created, nil
}

// ImportFile registers the library file at rel, honouring its sidecar. It
// is a no-op when the registered fingerprint is unchanged.
func (s *Service) ImportFile(_ context.Context, rel string) (models.Asset, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.store.Stat(rel)
	if err != nil {
		return models.Asset{}, false, fmt.Errorf("library: import file: %w", err)
	}
	return s.register(meta, "")
}

// register upserts a library file. known is the fingerprint already stored
// for it, if the caller has one at hand. s.mu must be held.
func (s *Service) register(meta storage.FileMeta, known string) (models.Asset, bool, error) {
	kind, ok := models.KindFromPath(meta.Path)
	if !ok {
		return models.Asset{}, false, fmt.Errorf("library: %s: %w", meta.Path, apperr.ErrUnsupportedMedia)
	}
	fp, side := s.fingerprint(meta)
	src := SourceFor(meta.Path)

	if known == "" {
		if existing, err := s.reg.GetBySource(src); err == nil {
			if existing.Checksum == fp {
				return existing, false, nil
			}
		}
	} else if known == fp {
		return models.Asset{}, false, nil
	}

	asset := models.Asset{
		Name:     path.Base(meta.Path),
		Kind:     kind,
		Source:   src,
		Duration: s.duration,
		Checksum: fp,
	}
	side.Apply(&asset)
	asset.Name = NormalizeName(asset.Name)

	stored, err := s.reg.Upsert(asset)
	if err != nil {
		return models.Asset{}, false, fmt.Errorf("library: register %s: %w", meta.Path, err)
	}
	s.notify(stored)
	return stored, true, nil
}

// fingerprint combines the media checksum with the sidecar content so that
// editing a sidecar re-registers its file.
func (s *Service) fingerprint(meta storage.FileMeta) (string, *sidecar.Meta) {
	data, err := s.store.Read(sidecar.Path(meta.Path))
	if err != nil {
		return meta.Checksum, nil
	}
	side, err := sidecar.Parse(data)
	if err != nil {
		s.log.Warn("sidecar ignored",
			slog.String("path", sidecar.Path(meta.Path)),
			slog.String("error", err.Error()))
		side = nil
	}
	return meta.Checksum + ":" + checksum.Sum(data)[:16], side
}

func (s *Service) notify(a models.Asset) {
	if s.onImport != nil {
		s.onImport(a)
	}
}

func (s *Service) discard(rel string) {
	if err := s.store.Delete(rel); err != nil {
		s.log.Warn("import: cleanup failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

// uniquePath returns name, or name with a numeric suffix when a file of that
// name already exists.
func (s *Service) uniquePath(name string) string {
	if !s.store.Exists(name) {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if !s.store.Exists(candidate) {
			return candidate
		}
	}
}

// classifyUpload decides the kind of an uploaded file. A media MIME type
// wins; otherwise the extension decides. The extension must be a known
// media extension either way so that the file is picked up by Sync later.
func classifyUpload(name, mime string) (models.Kind, error) {
	extKind, ok := models.KindFromPath(name)
	if !ok {
		return "", fmt.Errorf("library: %s: %w", name, apperr.ErrUnsupportedMedia)
	}
	mime = strings.ToLower(mime)
	if strings.HasPrefix(mime, "video/") || strings.HasPrefix(mime, "audio/") || strings.HasPrefix(mime, "image/") {
		return models.KindFromMIME(mime), nil
	}
	return extKind, nil
}

func httpURL(v any) error {
	s, _ := v.(string)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http(s) URL")
	}
	return nil
}

func finite(v any) error {
	f, _ := v.(float64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return errors.New("must be a finite number")
	}
	return nil
}
