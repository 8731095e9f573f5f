package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"hls-proxy-go/internal/client"
	"hls-proxy-go/internal/config"
	"hls-proxy-go/internal/headers"
	"hls-proxy-go/internal/metrics"
	"hls-proxy-go/internal/model"
	"hls-proxy-go/internal/playlist"
	"hls-proxy-go/internal/target"
)

// ErrMissingURL is returned when the url query parameter is absent or empty.
var ErrMissingURL = errors.New("missing url")

// PlaylistPreview is the __debug=1 response of the M3U8 proxy.
type PlaylistPreview struct {
	Target      string      `json:"target"`
	ProxyOrigin string      `json:"proxyOrigin"`
	Headers     [][2]string `json:"headers"`
}

// PlaylistService fetches arbitrary http(s) targets and rewrites HLS
// playlists so that nested references come back through the proxy.
type PlaylistService struct {
	client    *client.UpstreamClient
	logger    *slog.Logger
	metrics   *metrics.Metrics
	path      string
	publicURL string
	maxBytes  int64
	ua        string
}

// NewPlaylistService creates a PlaylistService. The metrics parameter is optional.
func NewPlaylistService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *PlaylistService {
	path := cfg.Playlist.Path
	if path == "" {
		path = config.DefaultPlaylistPath
	}
	return &PlaylistService{
		client:    c,
		logger:    logger.With("component", "playlist_service"),
		metrics:   m,
		path:      path,
		publicURL: strings.TrimRight(cfg.Server.PublicURL, "/"),
		maxBytes:  cfg.Playlist.MaxBytes,
		ua:        userAgent(cfg),
	}
}

// Prepare resolves the url query parameter and builds the forward headers.
// It returns ErrMissingURL, target.ErrInvalidURL or target.ErrUnsupportedProtocol
// for requests that must be rejected before any network call.
func (s *PlaylistService) Prepare(pr *model.ProxyRequest) (*model.Outbound, error) {
	raw := pr.Query.Get("url")
	if raw == "" {
		return nil, ErrMissingURL
	}

	u, err := target.Resolve(raw)
	if err != nil {
		return nil, err
	}

	origin := pr.Origin
	if s.publicURL != "" {
		origin = s.publicURL
	}

	headersParam := pr.Query.Get("headers")
	h := headers.Build(pr.Header, headersParam, headers.Options{
		UserAgent:      s.ua,
		AcceptLanguage: true,
	})
	// Playlists are decoded before rewriting. With no accept-encoding left
	// the transport negotiates gzip and decompresses on its own.
	if ae, ok := h["accept-encoding"]; ok {
		if ae = restrictAcceptEncoding(ae); ae != "" {
			h["accept-encoding"] = ae
		} else {
			delete(h, "accept-encoding")
		}
	}

	return &model.Outbound{
		URL:          u.String(),
		Target:       u,
		Header:       h,
		HeadersParam: headersParam,
		Origin:       origin,
	}, nil
}

// Preview describes out without contacting the upstream.
func (s *PlaylistService) Preview(out *model.Outbound) PlaylistPreview {
	return PlaylistPreview{
		Target:      out.URL,
		ProxyOrigin: out.Origin,
		Headers:     out.Header.Pairs(redactedHeaders...),
	}
}

// Forward fetches out. A successful playlist response is read whole and
// rewritten; anything else is returned for streaming with its upstream
// status. The caller is responsible for closing the response body.
func (s *PlaylistService) Forward(ctx context.Context, out *model.Outbound) (*model.ProxyResponse, error) {
	s.logger.Debug("fetching target", "target", out.URL)

	resp, err := s.client.Fetch(ctx, out.URL, out.Header.Header())
	if err != nil {
		return nil, fmt.Errorf("fetch target: %w", err)
	}
	resp.Header = filterResponseHeaders(resp.Header)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok || !playlist.IsPlaylist(resp.Header.Get("Content-Type"), out.Target.Path) {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	body, err := readPlaylist(resp.Body, resp.Header.Get("Content-Encoding"), s.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}

	rw := &playlist.Rewriter{
		Endpoint:     out.Origin + s.path,
		HeadersParam: out.HeadersParam,
	}
	rewritten := rw.Rewrite(string(body), out.Target)

	h := resp.Header.Clone()
	h.Del("Content-Length")
	h.Del("Content-Encoding")
	h.Set("Content-Type", playlist.ContentType)
	// Rewritten bodies embed this proxy's origin and query shape.
	h.Set("Cache-Control", "no-store")

	if s.metrics != nil {
		s.metrics.PlaylistsRewritten.Inc()
	}
	s.logger.Debug("playlist rewritten",
		"target", out.URL,
		"bytes_in", len(body),
		"bytes_out", len(rewritten),
	)

	return &model.ProxyResponse{
		StatusCode: 200,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(rewritten)),
		Rewritten:  true,
	}, nil
}
