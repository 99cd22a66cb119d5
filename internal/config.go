package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/fractal/internal/editor"
	"github.com/starford/fractal/internal/export"
	"github.com/starford/fractal/internal/geometry"
	"github.com/starford/fractal/internal/library"
	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/timeline"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Library  LibraryConfig     `yaml:"library"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Auth     AuthConfig        `yaml:"auth"`
	Timeline TimelineConfig    `yaml:"timeline"`
	Events   EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Timeline.Validate(); err != nil {
		return fmt.Errorf("timeline: %w", err)
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// LibraryConfig holds the media library folder. Files dropped into it are
// registered as assets; uploads and generated downloads are written to it.
type LibraryConfig struct {
	Path string `yaml:"path"`
	// Watch enables the fsnotify watcher. Without it the folder is only
	// scanned at startup and on POST /api/library/sync.
	Watch bool `yaml:"watch"`
	// ImportDuration is the nominal duration of imported files that carry
	// no sidecar.
	ImportDuration float64 `yaml:"import_duration"`
	MaxDownloadMB  int64   `yaml:"max_download_mb"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.ImportDuration, validation.Min(0.0)),
		validation.Field(&c.MaxDownloadMB, validation.Min(int64(0))),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// TrackConfig seeds one track of the initial timeline.
type TrackConfig struct {
	ID   string      `yaml:"id"`
	Kind models.Kind `yaml:"kind"`
	Name string      `yaml:"name"`
}

// Validate validates one seed track.
func (c TrackConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Kind, validation.Required, validation.In(models.KindVideo, models.KindAudio, models.KindImage)),
		validation.Field(&c.Name, validation.Required),
	)
}

// TimelineConfig holds the editor defaults.
type TimelineConfig struct {
	InitialDuration     float64       `yaml:"initial_duration"`
	GrowthMargin        float64       `yaml:"growth_margin"`
	DefaultClipDuration float64       `yaml:"default_clip_duration"`
	PixelsPerSecond     float64       `yaml:"pixels_per_second"`
	TickInterval        time.Duration `yaml:"tick_interval"`
	SkipInterval        float64       `yaml:"skip_interval"`
	FrameRate           float64       `yaml:"frame_rate"`
	SeedTracks          []TrackConfig `yaml:"seed_tracks"`
}

// Validate validates the timeline configuration.
func (c *TimelineConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.InitialDuration, validation.Required, validation.Min(0.0)),
		validation.Field(&c.GrowthMargin, validation.Min(0.0)),
		validation.Field(&c.DefaultClipDuration, validation.Required, validation.Min(0.0)),
		validation.Field(&c.PixelsPerSecond, validation.Required, validation.Min(0.0)),
		validation.Field(&c.TickInterval, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.SkipInterval, validation.Required, validation.Min(0.0)),
		validation.Field(&c.FrameRate, validation.Required, validation.Min(1.0)),
		validation.Field(&c.SeedTracks),
	); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.SeedTracks))
	for _, t := range c.SeedTracks {
		if seen[t.ID] {
			return fmt.Errorf("duplicate seed track id %q", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// Tracks returns the seed tracks as empty timeline tracks.
func (c *TimelineConfig) Tracks() []models.Track {
	out := make([]models.Track, len(c.SeedTracks))
	for i, t := range c.SeedTracks {
		out[i] = models.Track{ID: t.ID, Kind: t.Kind, Name: t.Name, Items: []models.Clip{}}
	}
	return out
}

// NewTimeline builds the initial timeline from the configuration.
func (c *TimelineConfig) NewTimeline() *timeline.Timeline {
	return timeline.New(
		timeline.WithTracks(c.Tracks()),
		timeline.WithDuration(c.InitialDuration),
		timeline.WithGrowthMargin(c.GrowthMargin),
		timeline.WithClipDuration(c.DefaultClipDuration),
	)
}

// EventsConfig holds event stream configuration.
type EventsConfig struct {
	// PlayheadThrottle is the minimum gap between two transport.playhead
	// events on the SSE stream.
	PlayheadThrottle time.Duration `yaml:"playhead_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	if c.PlayheadThrottle < 0 {
		return errors.New("events: playhead_throttle must not be negative")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	seed := timeline.DefaultTracks()
	tracks := make([]TrackConfig, len(seed))
	for i, t := range seed {
		tracks[i] = TrackConfig{ID: t.ID, Kind: t.Kind, Name: t.Name}
	}
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Library: LibraryConfig{
			Path:           "./media",
			Watch:          true,
			ImportDuration: library.DefaultImportDuration,
			MaxDownloadMB:  200,
		},
		SQLite: SQLiteConfig{
			Path: "./fractal.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Timeline: TimelineConfig{
			InitialDuration:     timeline.DefaultDuration,
			GrowthMargin:        timeline.DefaultGrowthMargin,
			DefaultClipDuration: timeline.DefaultClipDuration,
			PixelsPerSecond:     float64(geometry.Default),
			TickInterval:        editor.DefaultTickInterval,
			SkipInterval:        editor.DefaultSkipInterval,
			FrameRate:           export.DefaultFrameRate,
			SeedTracks:          tracks,
		},
		Events: EventsConfig{
			PlayheadThrottle: 250 * time.Millisecond,
		},
	}
}
