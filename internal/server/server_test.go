package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/fpang/claw-cam/internal/dataurl"
	"github.com/fpang/claw-cam/internal/generation"
	"github.com/fpang/claw-cam/internal/metrics"
	"github.com/fpang/claw-cam/internal/photo"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	metrics.SetEnabled(false)
	os.Exit(m.Run())
}

var capture = "data:image/jpeg;base64," + strings.Repeat("/9j/4AAQSkZJRg", 10)

func testImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 80, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return dataurl.Encode("image/png", buf.Bytes())
}

type stubProvider struct {
	out string
}

func (p *stubProvider) Name() string                   { return generation.ProviderGemini }
func (p *stubProvider) RequiresKey() bool              { return true }
func (p *stubProvider) Check(generation.Request) error { return nil }
func (p *stubProvider) Generate(context.Context, string, generation.Request) (string, error) {
	return p.out, nil
}

type stubPublisher struct {
	got []byte
}

func (p *stubPublisher) PublishGIF(_ context.Context, data []byte) (string, error) {
	p.got = data
	return "https://example.test/claw-cam.gif", nil
}

func newTestServer(t *testing.T, keys []string, opts Options) (http.Handler, *photo.Orchestrator) {
	t.Helper()
	client := generation.NewClient(generation.NewKeyPool(keys), generation.Options{}, &stubProvider{out: testImage(t)})
	booth := photo.New(photo.Config{
		State:  photo.NewState(photo.Settings{Provider: generation.ProviderGemini}),
		Client: client,
	})
	return New(booth, opts), booth
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func snapBody(wait bool) string {
	b, _ := json.Marshal(map[string]any{"image": capture, "wait": wait})
	return string(b)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{Version: "test"})
	rec := do(t, h, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestSnapWaitAndFetchOutput(t *testing.T) {
	h, _ := newTestServer(t, []string{"k1"}, Options{})

	rec := do(t, h, http.MethodPost, "/api/photos", snapBody(true))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var snap struct {
		Photo  photo.Photo `json:"photo"`
		Output string      `json:"output"`
	}
	decode(t, rec, &snap)
	if snap.Photo.ID == "" || snap.Photo.IsBusy || !dataurl.IsValidOutput(snap.Output) {
		t.Fatalf("snap = %+v", snap)
	}

	out := do(t, h, http.MethodGet, "/api/photos/"+snap.Photo.ID+"/output", "")
	if out.Code != http.StatusOK || out.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("output status = %d type = %q", out.Code, out.Header().Get("Content-Type"))
	}
	if _, err := png.Decode(out.Body); err != nil {
		t.Errorf("output is not a PNG: %v", err)
	}

	in := do(t, h, http.MethodGet, "/api/photos/"+snap.Photo.ID+"/input?format=dataurl", "")
	var inBody map[string]string
	decode(t, in, &inBody)
	if inBody["dataUrl"] != capture {
		t.Errorf("input = %q", inBody["dataUrl"])
	}
}

func TestSnapAsync(t *testing.T) {
	h, booth := newTestServer(t, []string{"k1"}, Options{})
	rec := do(t, h, http.MethodPost, "/api/photos", snapBody(false))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	booth.Wait()
	photos := booth.Photos()
	if len(photos) != 1 || photos[0].IsBusy {
		t.Errorf("photos = %+v", photos)
	}
}

func TestSnapErrors(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		body     string
		wantCode int
		wantKind string
	}{
		{"no keys", nil, snapBody(true), http.StatusUnprocessableEntity, "ConfigError"},
		{"missing image", []string{"k1"}, `{}`, http.StatusBadRequest, ""},
		{"not an image", []string{"k1"}, `{"image":"hello"}`, http.StatusBadRequest, ""},
		{"unknown mode", []string{"k1"}, `{"image":"` + capture + `","mode":"sepia"}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, booth := newTestServer(t, tt.keys, Options{})
			rec := do(t, h, http.MethodPost, "/api/photos", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["kind"] != tt.wantKind {
				t.Errorf("kind = %q, want %q", body["kind"], tt.wantKind)
			}
			if n := len(booth.Photos()); n != 0 {
				t.Errorf("%d photos left after failure", n)
			}
		})
	}
}

func TestConfigErrorRaisesNotice(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{})
	do(t, h, http.MethodPost, "/api/photos", snapBody(true))

	rec := do(t, h, http.MethodGet, "/api/notices", "")
	var body struct {
		Notices []photo.Notice `json:"notices"`
	}
	decode(t, rec, &body)
	if len(body.Notices) != 1 || body.Notices[0].Kind != photo.NoticeConfig {
		t.Fatalf("notices = %+v", body.Notices)
	}

	do(t, h, http.MethodDelete, "/api/notices/"+body.Notices[0].ID, "")
	decode(t, do(t, h, http.MethodGet, "/api/notices", ""), &body)
	if len(body.Notices) != 0 {
		t.Errorf("notice not dismissed: %+v", body.Notices)
	}
}

func TestGalleryActions(t *testing.T) {
	h, booth := newTestServer(t, []string{"k1"}, Options{})
	var ids []string
	for range 3 {
		rec := do(t, h, http.MethodPost, "/api/photos", snapBody(true))
		var snap struct {
			Photo photo.Photo `json:"photo"`
		}
		decode(t, rec, &snap)
		ids = append(ids, snap.Photo.ID)
	}

	if rec := do(t, h, http.MethodPost, "/api/photos/"+ids[0]+"/favorite", ""); rec.Code != http.StatusOK {
		t.Fatalf("favorite status = %d", rec.Code)
	}
	if got := booth.Favorites(); len(got) != 1 || got[0] != ids[0] {
		t.Errorf("favorites = %v", got)
	}
	if rec := do(t, h, http.MethodPost, "/api/photos/nope/favorite", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown favorite status = %d", rec.Code)
	}

	do(t, h, http.MethodPost, "/api/photos/"+ids[1]+"/select", "")
	do(t, h, http.MethodPost, "/api/photos/"+ids[2]+"/select", "")
	rec := do(t, h, http.MethodPost, "/api/photos/delete-selected", "")
	var del map[string]int
	decode(t, rec, &del)
	if del["deleted"] != 2 {
		t.Errorf("deleted = %d", del["deleted"])
	}
	if got := booth.Photos(); len(got) != 1 || got[0].ID != ids[0] {
		t.Errorf("photos = %+v", got)
	}

	if rec := do(t, h, http.MethodPost, "/api/photos/"+ids[0]+"/cancel", ""); !strings.Contains(rec.Body.String(), `"cancelled":false`) {
		t.Errorf("cancel of a completed photo = %s", rec.Body.String())
	}
	if rec := do(t, h, http.MethodDelete, "/api/photos/"+ids[0], ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/photos/"+ids[0], ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/photos/"+ids[0]+"/output", ""); rec.Code != http.StatusNotFound {
		t.Errorf("output of deleted photo status = %d", rec.Code)
	}
}

func TestSettings(t *testing.T) {
	h, booth := newTestServer(t, []string{"abcdefgh1234"}, Options{})

	rec := do(t, h, http.MethodGet, "/api/settings", "")
	if strings.Contains(rec.Body.String(), "abcdefgh1234") {
		t.Fatalf("settings leaked a key: %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodPut, "/api/settings", `{"autoCaptureInterval":500,"burstCount":0,"model":"m2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := booth.Settings()
	if got.AutoCaptureInterval != photo.MaxCaptureInterval || got.BurstCount != 1 || got.Model != "m2" {
		t.Errorf("settings = %+v", got)
	}

	tests := []struct {
		name string
		body string
	}{
		{"unknown provider", `{"provider":"dall-e"}`},
		{"too many keys", `{"apiKeys":["a","b","c","d","e","f"]}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPut, "/api/settings", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rec.Code)
			}
		})
	}
}

func TestModeAndStyles(t *testing.T) {
	h, booth := newTestServer(t, []string{"k1"}, Options{})

	rec := do(t, h, http.MethodPut, "/api/mode", `{"mode":"custom","customPrompt":"make it gold"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if snap := booth.Snapshot(); snap.Mode != "custom" || snap.CustomPrompt != "make it gold" {
		t.Errorf("mode = %q prompt = %q", snap.Mode, snap.CustomPrompt)
	}
	if rec := do(t, h, http.MethodPut, "/api/mode", `{"mode":"sepia"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown mode status = %d", rec.Code)
	}

	var styles struct {
		Styles []struct {
			ID string `json:"id"`
		} `json:"styles"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/styles", ""), &styles)
	if len(styles.Styles) < 3 || styles.Styles[0].ID != "random" {
		t.Errorf("styles = %+v", styles.Styles)
	}

	do(t, h, http.MethodPut, "/api/live", `{"enabled":true}`)
	if !booth.Snapshot().LiveMode {
		t.Error("live mode not enabled")
	}
}

func TestMakeGIF(t *testing.T) {
	pub := &stubPublisher{}
	h, _ := newTestServer(t, []string{"k1"}, Options{Publisher: pub})

	if rec := do(t, h, http.MethodPost, "/api/gif", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty gallery status = %d", rec.Code)
	}

	do(t, h, http.MethodPost, "/api/photos", snapBody(true))
	do(t, h, http.MethodPost, "/api/photos", snapBody(true))

	rec := do(t, h, http.MethodPost, "/api/gif", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/gif" {
		t.Fatalf("status = %d type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("GIF89a")) {
		t.Error("body is not a GIF")
	}

	rec = do(t, h, http.MethodPost, "/api/gif", `{"delivery":"url"}`)
	var body map[string]any
	decode(t, rec, &body)
	if body["url"] != "https://example.test/claw-cam.gif" || !bytes.HasPrefix(pub.got, []byte("GIF89a")) {
		t.Errorf("url delivery = %v", body)
	}
}

func TestOriginVerify(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{OriginSecret: "s3cret"})

	if rec := do(t, h, http.MethodGet, "/api/photos", ""); rec.Code != http.StatusForbidden {
		t.Errorf("without header status = %d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/photos", nil)
	req.Header.Set("x-origin-verify", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with header status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health should skip origin check, status = %d", rec.Code)
	}
}

func TestLocalCORS(t *testing.T) {
	h, _ := newTestServer(t, nil, Options{LocalCORS: true})

	req := httptest.NewRequest(http.MethodOptions, "/api/photos", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("foreign origin was allowed")
	}
}

type countingFlusher struct {
	n int
}

func (f *countingFlusher) Flush(context.Context) error {
	f.n++
	return nil
}

func TestFlushAfterMutations(t *testing.T) {
	f := &countingFlusher{}
	h, _ := newTestServer(t, nil, Options{Flusher: f})

	do(t, h, http.MethodGet, "/api/photos", "")
	if f.n != 0 {
		t.Errorf("GET flushed %d times", f.n)
	}
	do(t, h, http.MethodDelete, "/api/selection", "")
	if f.n != 1 {
		t.Errorf("DELETE flushed %d times, want 1", f.n)
	}
}
