package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"hls-proxy-go/internal/metrics"
	"hls-proxy-go/internal/middleware"
)

func newTestEcho(t *testing.T, baseURL string, m *metrics.Metrics) *echo.Echo {
	t.Helper()
	cfg := testConfig(baseURL)

	e := echo.New()
	e.Use(middleware.CORS())
	RegisterRoutes(e, cfg,
		newTestProxyHandler(cfg),
		newTestPlaylistHandler(cfg),
		NewHealthHandler(cfg, "test"),
		m,
	)
	return e
}

func TestRegisterRoutes_Wiring(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	e := newTestEcho(t, upstream.URL, metrics.New())

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"GET /status", http.MethodGet, "/status", http.StatusOK},
		{"GET /metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"GET /proxy", http.MethodGet, "/proxy", http.StatusOK},
		{"GET /proxy/anime/info", http.MethodGet, "/proxy/anime/info?id=1", http.StatusOK},
		{"HEAD /proxy/anime/info", http.MethodHead, "/proxy/anime/info", http.StatusOK},
		{"GET playlist", http.MethodGet, "/m3u8proxy/m3u8-proxy?url=" + url.QueryEscape(upstream.URL+"/a.json"), http.StatusOK},
		{"GET playlist without url", http.MethodGet, "/m3u8proxy/m3u8-proxy", http.StatusBadRequest},
		{"POST /proxy/x not allowed", http.MethodPost, "/proxy/x", http.StatusMethodNotAllowed},
		{"GET /unknown", http.MethodGet, "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterRoutes_NoMetrics(t *testing.T) {
	e := newTestEcho(t, "https://api.example.com", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d when metrics are disabled", rec.Code, http.StatusNotFound)
	}
}

func TestRoutes_CORSOnEveryResponse(t *testing.T) {
	e := newTestEcho(t, "http://127.0.0.1:1", nil)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"preflight playlist", http.MethodOptions, "/m3u8proxy/m3u8-proxy?url=x", http.StatusNoContent},
		{"preflight generic", http.MethodOptions, "/proxy/anything", http.StatusNoContent},
		{"bad request", http.MethodGet, "/m3u8proxy/m3u8-proxy", http.StatusBadRequest},
		{"fetch failed", http.MethodGet, "/proxy/x", http.StatusBadGateway},
		{"playlist fetch failed", http.MethodGet, "/m3u8proxy/m3u8-proxy?url=" + url.QueryEscape("http://127.0.0.1:1/a.m3u8"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("missing Access-Control-Allow-Origin")
			}
			if rec.Header().Get("Access-Control-Allow-Methods") != "GET,HEAD,OPTIONS" {
				t.Errorf("Access-Control-Allow-Methods = %q", rec.Header().Get("Access-Control-Allow-Methods"))
			}
			if tt.method == http.MethodOptions && rec.Body.Len() != 0 {
				t.Errorf("preflight body = %q, want empty", rec.Body.String())
			}
		})
	}
}

func TestRoutes_PlaylistLinksUseRequestHost(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte("#EXTM3U\nsegment1.ts\n"))
	}))
	defer upstream.Close()

	e := newTestEcho(t, "https://api.example.com", nil)

	req := httptest.NewRequest(http.MethodGet, "/m3u8proxy/m3u8-proxy?url="+url.QueryEscape(upstream.URL+"/path/playlist.m3u8"), http.NoBody)
	req.Host = "proxy.example"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	lines := strings.Split(rec.Body.String(), "\n")
	if len(lines) < 2 {
		t.Fatalf("body = %q", rec.Body.String())
	}
	u, err := url.Parse(lines[1])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Scheme != "https" || u.Host != "proxy.example" {
		t.Errorf("link origin = %s://%s, want https://proxy.example", u.Scheme, u.Host)
	}
	if got := u.Query().Get("url"); got != upstream.URL+"/path/segment1.ts" {
		t.Errorf("url param = %q, want %q", got, upstream.URL+"/path/segment1.ts")
	}
}
