package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hls-proxy-go/internal/config"
	"hls-proxy-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// The metrics endpoint is mounted only when m is non-nil.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, playlist *PlaylistHandler, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/status", health.Status)

	e.GET(cfg.Playlist.Path, playlist.Handle)
	e.HEAD(cfg.Playlist.Path, playlist.Handle)

	e.GET(cfg.Upstream.Prefix, proxy.Handle)
	e.HEAD(cfg.Upstream.Prefix, proxy.Handle)
	e.GET(cfg.Upstream.Prefix+"/*", proxy.Handle)
	e.HEAD(cfg.Upstream.Prefix+"/*", proxy.Handle)

	if m != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
