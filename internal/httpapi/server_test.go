package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"captiond/internal/manager"
	"captiond/pkg/types"
)

type mockService struct {
	mu       sync.Mutex
	caption  string
	err      error
	loaded   bool
	health   types.HealthResponse
	lastReq  manager.GenerateRequest
	calls    int
	unloads  int
	statusFn func() types.StatusResponse
}

func (m *mockService) Generate(ctx context.Context, req manager.GenerateRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return "", m.err
	}
	m.loaded = true
	return m.caption, nil
}

func (m *mockService) Unload() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unloads++
	was := m.loaded
	m.loaded = false
	return was
}

func (m *mockService) Status() types.StatusResponse {
	if m.statusFn != nil {
		return m.statusFn()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st := "unloaded"
	if m.loaded {
		st = "ready"
	}
	return types.StatusResponse{State: st, ModelLoaded: m.loaded, Generation: types.GenerationStatus{Status: types.GenIdle}}
}

func (m *mockService) Health() types.HealthResponse { return m.health }

func testImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x * 30), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func postCaption(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/caption", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var er types.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return er
}

func TestCaption_Success(t *testing.T) {
	svc := &mockService{caption: "Caption: A red square on a plain background."}
	h := NewMux(svc)
	rr := postCaption(t, h, map[string]any{"image": testImage(t), "prepend": "ohwx"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp types.CaptionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success=true")
	}
	if resp.Caption != "ohwx, A red square on a plain background." {
		t.Fatalf("unexpected caption %q", resp.Caption)
	}
	if resp.DurationMS < 0 {
		t.Fatalf("negative duration")
	}
	if svc.calls != 1 {
		t.Fatalf("expected 1 generate call, got %d", svc.calls)
	}
	// image is re-encoded as JPEG before reaching the model
	if len(svc.lastReq.Image) < 2 || svc.lastReq.Image[0] != 0xFF || svc.lastReq.Image[1] != 0xD8 {
		t.Fatalf("expected JPEG bytes in generate request")
	}
	if svc.lastReq.Params.MaxTokens != 512 {
		t.Fatalf("expected default max_tokens 512, got %d", svc.lastReq.Params.MaxTokens)
	}
	if !strings.Contains(svc.lastReq.Prompt, "image captioner") {
		t.Fatalf("expected default prompt, got %q", svc.lastReq.Prompt)
	}
}

func TestCaption_PassesSamplingAndPrompt(t *testing.T) {
	svc := &mockService{caption: "ok"}
	h := NewMux(svc)
	rr := postCaption(t, h, map[string]any{
		"image":         testImage(t),
		"prompt":        "Describe briefly.",
		"prompt_prefix": "Be precise.",
		"temperature":   0.2,
		"top_p":         0.5,
		"max_tokens":    64,
		"top_k":         20,
		"seed":          7,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	p := svc.lastReq.Params
	if p.Temperature != float32(0.2) || p.TopP != float32(0.5) || p.MaxTokens != 64 || p.TopK != 20 || p.Seed != 7 {
		t.Fatalf("unexpected params %+v", p)
	}
	if svc.lastReq.Prompt != "Be precise.\n\nDescribe briefly." {
		t.Fatalf("unexpected prompt %q", svc.lastReq.Prompt)
	}
}

func TestCaption_StripPrefixesDisabled(t *testing.T) {
	svc := &mockService{caption: "Caption: keep me"}
	h := NewMux(svc)
	rr := postCaption(t, h, map[string]any{"image": testImage(t), "strip_prefixes": false})
	var resp types.CaptionResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Caption != "Caption: keep me" {
		t.Fatalf("expected lead-in kept, got %q", resp.Caption)
	}
}

func TestCaption_BadRequests(t *testing.T) {
	img := testImage(t)
	cases := []struct {
		name string
		body any
	}{
		{"missing image", map[string]any{"prompt": "x"}},
		{"bad base64", map[string]any{"image": "!!!not-base64!!!"}},
		{"not an image", map[string]any{"image": base64.StdEncoding.EncodeToString([]byte("hello world"))}},
		{"temperature too high", map[string]any{"image": img, "temperature": 2.5}},
		{"top_p zero", map[string]any{"image": img, "top_p": 0}},
		{"max_tokens too large", map[string]any{"image": img, "max_tokens": 5000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{caption: "x"}
			rr := postCaption(t, NewMux(svc), tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			er := decodeError(t, rr)
			if er.Success || er.Code != http.StatusBadRequest || er.Error == "" {
				t.Fatalf("unexpected error body %+v", er)
			}
			if svc.calls != 0 {
				t.Fatalf("generate must not be called")
			}
		})
	}
}

func TestCaption_InvalidJSON(t *testing.T) {
	h := NewMux(&mockService{})
	req := httptest.NewRequest(http.MethodPost, "/caption", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if er := decodeError(t, rr); er.Error != "invalid JSON body" {
		t.Fatalf("unexpected error %q", er.Error)
	}
}

func TestCaption_WrongContentTypeIs400(t *testing.T) {
	h := NewMux(&mockService{})
	for _, ct := range []string{"text/plain", ""} {
		req := httptest.NewRequest(http.MethodPost, "/caption", strings.NewReader("{}"))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("Content-Type %q: expected 400, got %d", ct, rr.Code)
		}
		if er := decodeError(t, rr); er.Code != http.StatusBadRequest {
			t.Fatalf("unexpected error payload %+v", er)
		}
	}
}

func TestCaption_BodyTooLarge(t *testing.T) {
	SetMaxBodyBytes(64)
	defer SetMaxBodyBytes(0)
	h := NewMux(&mockService{caption: "x"})
	rr := postCaption(t, h, map[string]any{"image": strings.Repeat("A", 256)})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rr.Code)
	}
}

func TestCaption_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"model load", &manager.ModelLoadError{Path: "/m.gguf", Err: errors.New("boom")}, http.StatusServiceUnavailable},
		{"closed", manager.ErrManagerClosed, http.StatusServiceUnavailable},
		{"generation", &manager.GenerationError{Err: errors.New("stream broke")}, http.StatusInternalServerError},
		{"plain", errors.New("weird"), http.StatusInternalServerError},
		{"http error", teapotErr{}, http.StatusTeapot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{err: tc.err}
			rr := postCaption(t, NewMux(svc), map[string]any{"image": testImage(t)})
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
			er := decodeError(t, rr)
			if er.Success || er.Code != tc.want || er.Error != tc.err.Error() {
				t.Fatalf("unexpected error body %+v", er)
			}
		})
	}
}

type teapotErr struct{}

func (teapotErr) Error() string   { return "teapot" }
func (teapotErr) StatusCode() int { return http.StatusTeapot }

func TestUnload(t *testing.T) {
	svc := &mockService{caption: "x"}
	h := NewMux(svc)

	unload := func() types.UnloadResponse {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/unload", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var ur types.UnloadResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &ur); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return ur
	}

	if ur := unload(); !ur.Success || ur.WasLoaded {
		t.Fatalf("expected success with nothing loaded, got %+v", ur)
	}
	postCaption(t, h, map[string]any{"image": testImage(t)})
	if ur := unload(); !ur.Success || !ur.WasLoaded {
		t.Fatalf("expected was_loaded=true, got %+v", ur)
	}
}

func TestHealth(t *testing.T) {
	svc := &mockService{health: types.HealthResponse{Status: "ok", ModelPath: "/m.gguf", ModelExists: true, ProjectorExists: true, GPULayers: -1}}
	h := NewMux(svc)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var hr types.HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &hr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hr.ModelPath != "/m.gguf" || hr.GPULayers != -1 {
		t.Fatalf("unexpected health %+v", hr)
	}

	svc.health = types.HealthResponse{Status: "model_unavailable", ModelPath: "/missing.gguf"}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestStatus(t *testing.T) {
	svc := &mockService{statusFn: func() types.StatusResponse {
		return types.StatusResponse{State: "generating", ModelLoaded: true, IdleTimeoutSeconds: 180,
			Generation: types.GenerationStatus{Status: types.GenGenerating, Progress: 40}}
	}}
	rr := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var sr types.StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &sr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sr.State != "generating" || sr.Generation.Progress != 40 || sr.IdleTimeoutSeconds != 180 {
		t.Fatalf("unexpected status %+v", sr)
	}
}

func TestHealthzAndHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected healthz %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

func TestCORS(t *testing.T) {
	SetCORSOptions(true, []string{"http://ui.local"}, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	h := NewMux(&mockService{})

	req := httptest.NewRequest(http.MethodOptions, "/caption", nil)
	req.Header.Set("Origin", "http://ui.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://ui.local" {
		t.Fatalf("expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.local")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for unknown origin, got %q", got)
	}
}

func TestCORSDisabled(t *testing.T) {
	SetCORSOptions(false, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://ui.local")
	rr := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header when disabled, got %q", got)
	}
}
