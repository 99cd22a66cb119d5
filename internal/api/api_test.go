package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fractal/internal/editor"
	"github.com/starford/fractal/internal/library"
	"github.com/starford/fractal/internal/models"
	"github.com/starford/fractal/internal/storage"
	"github.com/starford/fractal/internal/testutil"
)

type env struct {
	ed     *editor.Editor
	lib    *library.Service
	store  *storage.FS
	router http.Handler
	stop   context.CancelFunc
}

func testEnv(t *testing.T, token string) *env {
	t.Helper()
	return testEnvWithOptions(t, Options{AuthEnabled: token != "", Token: token})
}

func testEnvWithOptions(t *testing.T, opts Options) *env {
	t.Helper()
	_, store := testutil.TestLibrary(t)
	reg := testutil.TestRegistry(t)
	lib := library.NewService(store, reg, library.WithLogger(testutil.DiscardLogger()))

	ed := editor.New(editor.WithLogger(testutil.DiscardLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ed.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	r := chi.NewRouter()
	r.Mount("/", NewRouter(ed, lib, opts))
	r.Get("/media/*", MediaHandler(store))
	return &env{ed: ed, lib: lib, store: store, router: r, stop: cancel}
}

func (e *env) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) upload(t *testing.T, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func (e *env) uploadAsset(t *testing.T, name, content string) AssetResponse {
	t.Helper()
	w := e.upload(t, name, content)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload %s = %d: %s", name, w.Code, w.Body.String())
	}
	return decode[AssetResponse](t, w)
}

func TestUploadAndGetAsset(t *testing.T) {
	e := testEnv(t, "")

	resp := e.uploadAsset(t, "intro.mp4", "fake video bytes")
	a := resp.Asset
	if !resp.Created || a.ID == "" {
		t.Fatalf("resp = %+v", resp)
	}
	if a.Name != "INTRO.MP4" || a.Kind != "VIDEO" || a.Source != "/media/intro.mp4" || a.Duration != 10 {
		t.Errorf("asset = %+v", a)
	}

	w := e.do(t, http.MethodGet, "/assets/"+a.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	if got := decode[models.Asset](t, w); got != a {
		t.Errorf("got %+v, want %+v", got, a)
	}

	dup := e.upload(t, "copy.mp4", "fake video bytes")
	if dup.Code != http.StatusOK {
		t.Fatalf("duplicate upload = %d, want 200", dup.Code)
	}
	if d := decode[AssetResponse](t, dup); d.Created || d.Asset.ID != a.ID {
		t.Errorf("duplicate = %+v", d)
	}
	if e.store.Exists("copy.mp4") {
		t.Error("duplicate file should be discarded")
	}
}

func TestUploadAsset_Rejects(t *testing.T) {
	e := testEnv(t, "")

	if w := e.upload(t, "notes.txt", "hello"); w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("txt upload = %d, want 415", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/assets", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-multipart = %d, want 400", w.Code)
	}
}

func TestGetAsset_NotFound(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodGet, "/assets/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing asset = %d, want 404", w.Code)
	}
}

func TestListAssets(t *testing.T) {
	e := testEnv(t, "")
	e.uploadAsset(t, "beach.mp4", "v1")
	e.uploadAsset(t, "waves.wav", "a1")
	e.uploadAsset(t, "still.png", "i1")

	all := decode[AssetListResponse](t, e.do(t, http.MethodGet, "/assets", nil))
	if all.Total != 3 || len(all.Assets) != 3 {
		t.Errorf("all = %+v", all)
	}

	audio := decode[AssetListResponse](t, e.do(t, http.MethodGet, "/assets?kind=audio", nil))
	if audio.Total != 1 || audio.Assets[0].Name != "WAVES.WAV" {
		t.Errorf("audio = %+v", audio)
	}

	if w := e.do(t, http.MethodGet, "/assets?kind=text", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad kind = %d, want 400", w.Code)
	}
}

func TestRegisterRemote(t *testing.T) {
	e := testEnv(t, "")

	body := map[string]any{"name": "Sunset Gen", "kind": "VIDEO", "source": "https://gen.example/out/sunset.mp4", "duration": 6}
	w := e.do(t, http.MethodPost, "/assets/remote", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d: %s", w.Code, w.Body.String())
	}
	first := decode[AssetResponse](t, w)
	if first.Asset.Name != "SUNSET GEN" || first.Asset.Duration != 6 {
		t.Errorf("asset = %+v", first.Asset)
	}

	body["duration"] = 8
	w = e.do(t, http.MethodPost, "/assets/remote", body)
	if w.Code != http.StatusOK {
		t.Fatalf("re-register = %d, want 200", w.Code)
	}
	if again := decode[AssetResponse](t, w); again.Asset.ID != first.Asset.ID || again.Asset.Duration != 8 {
		t.Errorf("re-register = %+v", again)
	}

	for _, bad := range []map[string]any{
		{"kind": "VIDEO", "source": "ftp://x/y.mp4"},
		{"kind": "TEXT", "source": "https://x/y.mp4"},
		{"kind": "AUDIO", "source": "https://x/y.wav", "duration": -1},
	} {
		if w := e.do(t, http.MethodPost, "/assets/remote", bad); w.Code != http.StatusBadRequest {
			t.Errorf("register %v = %d, want 400", bad, w.Code)
		}
	}
}

func TestPlace(t *testing.T) {
	e := testEnv(t, "")
	a := e.uploadAsset(t, "intro.mp4", "v").Asset

	w := e.do(t, http.MethodPost, "/timeline/place", map[string]string{"asset_id": a.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("place = %d: %s", w.Code, w.Body.String())
	}
	first := decode[PlaceResponse](t, w)
	if !first.Placed || first.Clip.TrackID != "t1" || first.Clip.StartTime != 0 || first.Clip.Duration != 10 {
		t.Errorf("first = %+v", first.Clip)
	}

	second := decode[PlaceResponse](t, e.do(t, http.MethodPost, "/timeline/place", map[string]string{"asset_id": a.ID}))
	if second.Clip.StartTime != 10 {
		t.Errorf("second start = %v, want 10", second.Clip.StartTime)
	}

	tl := decode[TimelineResponse](t, e.do(t, http.MethodGet, "/timeline", nil))
	if len(tl.Tracks[0].Items) != 2 || tl.Duration != 60 || tl.Timecode != "00:00.000" {
		t.Errorf("timeline = %+v", tl)
	}

	if w := e.do(t, http.MethodPatch, "/tracks/t1", map[string]bool{"locked": true}); w.Code != http.StatusOK {
		t.Fatalf("lock = %d", w.Code)
	}
	w = e.do(t, http.MethodPost, "/timeline/place", map[string]string{"asset_id": a.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("place on locked = %d, want 200", w.Code)
	}
	if res := decode[PlaceResponse](t, w); res.Placed || res.Clip != nil {
		t.Errorf("locked placement = %+v", res)
	}
}

func TestPlace_Errors(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodPost, "/timeline/place", map[string]string{"asset_id": "ghost"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown asset = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/timeline/place", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing asset_id = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/timeline/place", strings.NewReader("{"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestTracks(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/tracks", map[string]string{"kind": "AUDIO", "name": "AUD_CHANNEL_B"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", w.Code, w.Body.String())
	}
	created := decode[map[string]any](t, w)
	if created["kind"] != "AUDIO" || created["name"] != "AUD_CHANNEL_B" || created["id"] == nil {
		t.Errorf("created = %v", created)
	}
	if w := e.do(t, http.MethodPost, "/tracks", map[string]string{"kind": "TEXT"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad kind = %d, want 400", w.Code)
	}

	w = e.do(t, http.MethodPatch, "/tracks/t3", map[string]any{"name": "DIALOGUE", "muted": true})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d: %s", w.Code, w.Body.String())
	}
	if tr := decode[map[string]any](t, w); tr["name"] != "DIALOGUE" || tr["muted"] != true {
		t.Errorf("patched = %v", tr)
	}
	if w := e.do(t, http.MethodPatch, "/tracks/t3", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty patch = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPatch, "/tracks/t3", map[string]any{"name": "   "}); w.Code != http.StatusBadRequest {
		t.Errorf("blank name = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodPatch, "/tracks/nope", map[string]any{"locked": true}); w.Code != http.StatusNotFound {
		t.Errorf("patch unknown = %d, want 404", w.Code)
	}

	if w := e.do(t, http.MethodDelete, "/tracks/t3", nil); w.Code != http.StatusPreconditionRequired {
		t.Errorf("unconfirmed delete = %d, want 428", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/tracks/nope?confirm=true", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete unknown = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/tracks/t3?confirm=true", nil); w.Code != http.StatusOK {
		t.Errorf("delete = %d, want 200", w.Code)
	}

	tl := decode[TimelineResponse](t, e.do(t, http.MethodGet, "/timeline", nil))
	for _, tr := range tl.Tracks {
		if tr.ID == "t3" {
			t.Error("t3 still present after delete")
		}
	}
}

func TestTransport(t *testing.T) {
	e := testEnv(t, "")

	st := decode[TransportStatus](t, e.do(t, http.MethodGet, "/transport", nil))
	if st.State != "stopped" || st.CurrentTime != 0 || st.Duration != 60 {
		t.Errorf("initial = %+v", st)
	}

	st = decode[TransportStatus](t, e.do(t, http.MethodPost, "/transport/seek", map[string]float64{"time": 12.5}))
	if st.CurrentTime != 12.5 || st.Timecode != "00:12.500" {
		t.Errorf("seek time = %+v", st)
	}

	st = decode[TransportStatus](t, e.do(t, http.MethodPost, "/transport/seek", map[string]float64{"position": 100, "pps": 10}))
	if st.CurrentTime != 10 {
		t.Errorf("seek position = %v, want 10", st.CurrentTime)
	}

	st = decode[TransportStatus](t, e.do(t, http.MethodPost, "/transport/seek", map[string]float64{"time": 500}))
	if st.CurrentTime != 60 {
		t.Errorf("seek past end = %v, want 60", st.CurrentTime)
	}

	st = decode[TransportStatus](t, e.do(t, http.MethodPost, "/transport/skip", map[string]float64{"delta": -15}))
	if st.CurrentTime != 45 {
		t.Errorf("skip delta = %v, want 45", st.CurrentTime)
	}
	st = decode[TransportStatus](t, e.do(t, http.MethodPost, "/transport/skip", map[string]string{"direction": "backward"}))
	if st.CurrentTime != 40 {
		t.Errorf("skip backward = %v, want 40", st.CurrentTime)
	}

	st = decode[TransportStatus](t, e.do(t, http.MethodPost, "/transport/play", nil))
	if st.State != "playing" {
		t.Errorf("play = %+v", st)
	}
	st = decode[TransportStatus](t, e.do(t, http.MethodPost, "/transport/toggle", nil))
	if st.State != "stopped" {
		t.Errorf("toggle = %+v", st)
	}
	st = decode[TransportStatus](t, e.do(t, http.MethodPost, "/transport/pause", nil))
	if st.State != "stopped" {
		t.Errorf("pause = %+v", st)
	}
}

func TestTransport_Validation(t *testing.T) {
	e := testEnv(t, "")
	cases := []struct {
		path string
		body any
	}{
		{"/transport/seek", map[string]any{}},
		{"/transport/seek", map[string]float64{"time": 1, "position": 2}},
		{"/transport/seek", map[string]float64{"position": 2, "pps": -1}},
		{"/transport/skip", map[string]any{}},
		{"/transport/skip", map[string]string{"direction": "sideways"}},
	}
	for _, c := range cases {
		if w := e.do(t, http.MethodPost, c.path, c.body); w.Code != http.StatusBadRequest {
			t.Errorf("%s %v = %d, want 400", c.path, c.body, w.Code)
		}
	}
}

func TestReorder(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodPost, "/timeline/reorder", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reorder = %d", w.Code)
	}
	res := decode[map[string]any](t, w)
	if res["message"] == "" {
		t.Errorf("reorder = %v", res)
	}
}

func TestLayout(t *testing.T) {
	e := testEnv(t, "")
	a := e.uploadAsset(t, "intro.mp4", "v").Asset
	e.do(t, http.MethodPost, "/timeline/place", map[string]string{"asset_id": a.ID})

	view := decode[map[string]any](t, e.do(t, http.MethodGet, "/timeline/layout", nil))
	if view["width"] != 1200.0 || view["pixels_per_second"] != 20.0 {
		t.Errorf("default layout = %v", view)
	}

	view = decode[map[string]any](t, e.do(t, http.MethodGet, "/timeline/layout?pps=10", nil))
	lanes := view["lanes"].([]any)
	span := lanes[0].(map[string]any)["spans"].([]any)[0].(map[string]any)
	if view["width"] != 600.0 || span["width"] != 100.0 {
		t.Errorf("layout pps=10 = %v", view)
	}

	for _, bad := range []string{"abc", "0", "-5"} {
		if w := e.do(t, http.MethodGet, "/timeline/layout?pps="+bad, nil); w.Code != http.StatusBadRequest {
			t.Errorf("pps=%s = %d, want 400", bad, w.Code)
		}
	}
}

func TestExportEDL(t *testing.T) {
	e := testEnv(t, "")
	a := e.uploadAsset(t, "intro.mp4", "v").Asset
	e.do(t, http.MethodPost, "/timeline/place", map[string]string{"asset_id": a.ID})

	w := e.do(t, http.MethodGet, "/timeline/export.edl?title=Rough+Cut", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"TITLE: Rough Cut",
		"001  AX       V     C        00:00:00:00 00:00:10:00 00:00:00:00 00:00:10:00",
		"* MEDIA PATH:  /media/intro.mp4",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("edl missing %q:\n%s", want, body)
		}
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "VID_STREAM_01.edl") {
		t.Errorf("content-disposition = %q", cd)
	}

	if w := e.do(t, http.MethodGet, "/timeline/export.edl?track=t3", nil); w.Code != http.StatusOK || strings.Contains(w.Body.String(), "001") {
		t.Errorf("empty audio export = %d: %s", w.Code, w.Body.String())
	}
	if w := e.do(t, http.MethodGet, "/timeline/export.edl?track=nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown track = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/timeline/export.edl?fps=0", nil); w.Code != http.StatusBadRequest {
		t.Errorf("fps=0 = %d, want 400", w.Code)
	}
}

func TestSyncLibrary(t *testing.T) {
	e := testEnv(t, "")
	if err := e.store.Write("dropped/clip.mov", []byte("mov")); err != nil {
		t.Fatal(err)
	}
	w := e.do(t, http.MethodPost, "/library/sync", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sync = %d", w.Code)
	}
	if rep := decode[library.Report](t, w); rep.Scanned != 1 || rep.Imported != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestMedia(t *testing.T) {
	e := testEnv(t, "")
	e.uploadAsset(t, "intro.mp4", "0123456789")

	w := e.do(t, http.MethodGet, "/media/intro.mp4", nil)
	if w.Code != http.StatusOK || w.Body.String() != "0123456789" {
		t.Errorf("media = %d %q", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/media/intro.mp4", nil)
	req.Header.Set("Range", "bytes=2-4")
	rw := httptest.NewRecorder()
	e.router.ServeHTTP(rw, req)
	if rw.Code != http.StatusPartialContent || rw.Body.String() != "234" {
		t.Errorf("range = %d %q", rw.Code, rw.Body.String())
	}

	if err := e.store.Write(".hidden/secret.mp4", []byte("x")); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/media/missing.mp4", "/media/../go.mod", "/media/.hidden/secret.mp4", "/media/intro.mp4.yaml"} {
		if w := e.do(t, http.MethodGet, p, nil); w.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", p, w.Code)
		}
	}
}

func TestEditorStopped(t *testing.T) {
	e := testEnv(t, "")
	e.stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		w := e.do(t, http.MethodGet, "/timeline", nil)
		if w.Code == http.StatusServiceUnavailable {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeline after stop = %d, want 503", w.Code)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/timeline", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret123")

	if w := e.do(t, http.MethodGet, "/assets", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/assets", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	e := testEnv(t, "secret123")

	if w := e.do(t, http.MethodGet, "/transport?token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("query token = %d, want 200", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/transport?token=nope", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong query token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, "")

	if w := e.do(t, http.MethodGet, "/assets", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestMedia_OutsideAuth(t *testing.T) {
	e := testEnv(t, "secret123")
	if err := e.store.Write("a.wav", []byte("RIFF")); err != nil {
		t.Fatal(err)
	}
	if w := e.do(t, http.MethodGet, "/media/a.wav", nil); w.Code != http.StatusOK {
		t.Errorf("media with auth on = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := testEnvWithSSE(t, true, "secret")

	// No token → 401.
	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	e := testEnvWithSSE(t, false, "")

	// Disabled mode → should not 401. The stub blocks until the request
	// context ends, so cancel it after a short time.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	e := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("SSE with token = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
}

// testEnvWithSSE creates a router with a dummy SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) *env {
	t.Helper()
	// Minimal SSE handler stub: writes headers and blocks until context done.
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
	return testEnvWithOptions(t, Options{AuthEnabled: authEnabled, Token: token, Events: sseHandler})
}
