package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/fractal/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	tracks := cfg.Timeline.Tracks()
	if len(tracks) != 3 || tracks[0].ID != "t1" || tracks[2].Kind != "AUDIO" {
		t.Errorf("seed tracks = %+v", tracks)
	}
	if tracks[0].Items == nil {
		t.Error("seed tracks should start with an empty, non-nil clip list")
	}
}

func TestTimelineConfig_Invalid(t *testing.T) {
	cases := map[string]func(c *TimelineConfig){
		"zero duration":      func(c *TimelineConfig) { c.InitialDuration = 0 },
		"negative margin":    func(c *TimelineConfig) { c.GrowthMargin = -1 },
		"zero tick":          func(c *TimelineConfig) { c.TickInterval = 0 },
		"sub-ms tick":        func(c *TimelineConfig) { c.TickInterval = time.Microsecond },
		"zero frame rate":    func(c *TimelineConfig) { c.FrameRate = 0 },
		"duplicate track id": func(c *TimelineConfig) { c.SeedTracks = append(c.SeedTracks, c.SeedTracks[0]) },
		"track without name": func(c *TimelineConfig) { c.SeedTracks[1].Name = "" },
	}
	for name, mutate := range cases {
		cfg := NewDefaultConfig()
		mutate(&cfg.Timeline)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestTimelineConfig_NewTimeline(t *testing.T) {
	cfg := NewDefaultConfig().Timeline
	cfg.InitialDuration = 90
	cfg.SeedTracks = []TrackConfig{{ID: "a", Kind: "AUDIO", Name: "MUSIC"}}

	tl := cfg.NewTimeline()
	if tl.Duration() != 90 {
		t.Errorf("duration = %v, want 90", tl.Duration())
	}
	tracks := tl.Tracks()
	if len(tracks) != 1 || tracks[0].Name != "MUSIC" {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	t.Setenv("FRACTAL_TEST_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
app:
  http:
    port: 9090
library:
  path: /tmp/fractal-media
auth:
  mode: token
  token: ${FRACTAL_TEST_TOKEN}
timeline:
  initial_duration: 120
  tick_interval: 50ms
  seed_tracks:
    - {id: v1, kind: video, name: MAIN}
events:
  playhead_throttle: 1s
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.Auth.Token != "from-env" || !cfg.Auth.AuthEnabled() {
		t.Errorf("app/auth = %+v %+v", cfg.App, cfg.Auth)
	}
	if cfg.Timeline.InitialDuration != 120 || cfg.Timeline.TickInterval != 50*time.Millisecond {
		t.Errorf("timeline = %+v", cfg.Timeline)
	}
	// Unset keys keep their defaults.
	if cfg.Timeline.SkipInterval != 5 || cfg.SQLite.Path != "./fractal.db" {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if len(cfg.Timeline.SeedTracks) != 1 || cfg.Timeline.SeedTracks[0].Kind != "VIDEO" {
		t.Errorf("seed tracks = %+v", cfg.Timeline.SeedTracks)
	}
	if cfg.Events.PlayheadThrottle != time.Second {
		t.Errorf("throttle = %v", cfg.Events.PlayheadThrottle)
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("timeline:\n  seed_tracks:\n    - {id: x, kind: text, name: X}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := pkgconfig.Load(path, NewDefaultConfig()); err == nil {
		t.Error("expected error for unknown track kind")
	}
	if err := pkgconfig.Load(filepath.Join(t.TempDir(), "missing.yaml"), NewDefaultConfig()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOptional_MissingFileUsesDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	read, err := pkgconfig.LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), cfg)
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if read {
		t.Error("missing file reported as read")
	}
	if cfg.App.HTTP.Port != 8080 {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}

	bad := NewDefaultConfig()
	bad.Auth.Mode = AuthModeToken
	if _, err := pkgconfig.LoadOptional(filepath.Join(t.TempDir(), "none.yaml"), bad); err == nil {
		t.Error("defaults should still be validated")
	}
}
