package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"hls-proxy-go/internal/client"
	"hls-proxy-go/internal/config"
	"hls-proxy-go/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			BaseURL:         baseURL,
			Prefix:          config.DefaultPrefix,
			UserAgent:       "test-agent",
			TimeoutSeconds:  10,
			IdleConnections: 10,
			MaxRedirects:    5,
		},
		Playlist: config.PlaylistConfig{
			Path:     config.DefaultPlaylistPath,
			MaxBytes: 1 << 20,
		},
		Metrics: config.MetricsConfig{Path: "/metrics"},
	}
}

func newTestProxyHandler(cfg *config.Config) *ProxyHandler {
	logger := discardLogger()
	c := client.NewUpstreamClient(cfg, logger, nil)
	return NewProxyHandler(service.NewProxyService(c, cfg, logger), logger)
}

func TestProxyHandler_Handle(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RequestURI() != "/anime/gogoanime/info?id=one-piece" {
			t.Errorf("upstream URI = %q", r.URL.RequestURI())
		}
		if r.Header.Get("X-Token") != "abc" {
			t.Errorf("X-Token = %q, want override", r.Header.Get("X-Token"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "https://upstream.example")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer upstream.Close()

	h := newTestProxyHandler(testConfig(upstream.URL))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/proxy/anime/gogoanime/info?id=one-piece", http.NoBody)
	req.Header.Set("X-Token", "abc")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if got := rec.Header().Values("Access-Control-Allow-Origin"); len(got) != 1 || got[0] != "*" {
		t.Errorf("Access-Control-Allow-Origin = %v, want [*]", got)
	}
	if rec.Body.String() != `{"result":"ok"}` {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestProxyHandler_Handle_Head(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("upstream method = %q, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "video/mp2t")
		_, _ = w.Write([]byte("segment-bytes"))
	}))
	defer upstream.Close()

	h := newTestProxyHandler(testConfig(upstream.URL))

	e := echo.New()
	req := httptest.NewRequest(http.MethodHead, "/proxy/seg.ts", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD body = %q, want empty", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "video/mp2t" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestProxyHandler_Handle_Debug(t *testing.T) {
	h := newTestProxyHandler(testConfig("http://127.0.0.1:1"))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/proxy/meta/info?id=1&__debug=1", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Dest    string      `json:"dest"`
		Method  string      `json:"method"`
		Headers [][2]string `json:"headers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Dest != "http://127.0.0.1:1/meta/info?id=1&__debug=1" {
		t.Errorf("dest = %q", body.Dest)
	}
	if body.Method != http.MethodGet {
		t.Errorf("method = %q, want GET", body.Method)
	}
	for _, p := range body.Headers {
		if p[0] == "authorization" {
			t.Error("authorization must be redacted")
		}
	}
}

func TestProxyHandler_Handle_FetchFailed(t *testing.T) {
	h := newTestProxyHandler(testConfig("http://127.0.0.1:1"))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/proxy/x", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] != "fetch_failed" {
		t.Errorf("error = %q, want fetch_failed", body["error"])
	}
	if body["dest"] != "http://127.0.0.1:1/x" {
		t.Errorf("dest = %q", body["dest"])
	}
	if body["message"] == "" {
		t.Error("expected non-empty message")
	}
}

func TestProxyHandler_Handle_CanceledContext(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer upstream.Close()

	h := newTestProxyHandler(testConfig(upstream.URL))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/proxy/slow", http.NoBody)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d for canceled request", rec.Code, http.StatusBadGateway)
	}
}
