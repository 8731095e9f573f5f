// Package service implements target resolution and upstream forwarding for
// the generic proxy and the M3U8 proxy.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"hls-proxy-go/internal/client"
	"hls-proxy-go/internal/config"
	"hls-proxy-go/internal/headers"
	"hls-proxy-go/internal/model"
)

// redactedHeaders are left out of debug previews.
var redactedHeaders = []string{"authorization"}

// ProxyPreview is the __debug=1 response of the generic proxy.
type ProxyPreview struct {
	Dest    string      `json:"dest"`
	Method  string      `json:"method"`
	Headers [][2]string `json:"headers"`
}

// ProxyService forwards requests under a path prefix to a fixed upstream.
type ProxyService struct {
	client  *client.UpstreamClient
	logger  *slog.Logger
	baseURL string
	prefix  string
	ua      string
}

// NewProxyService creates a ProxyService for cfg.Upstream.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) *ProxyService {
	prefix := cfg.Upstream.Prefix
	if prefix == "" {
		prefix = config.DefaultPrefix
	}
	return &ProxyService{
		client:  c,
		logger:  logger.With("component", "proxy_service"),
		baseURL: strings.TrimRight(cfg.Upstream.BaseURL, "/"),
		prefix:  prefix,
		ua:      userAgent(cfg),
	}
}

// Prepare maps an inbound request onto the upstream base URL. The subpath
// after the prefix and the original query string are kept verbatim.
func (s *ProxyService) Prepare(pr *model.ProxyRequest) *model.Outbound {
	dest := s.buildDestination(pr.Path, pr.RawQuery)
	headersParam := pr.Query.Get("headers")

	return &model.Outbound{
		URL:          dest,
		Header:       headers.Build(pr.Header, headersParam, headers.Options{UserAgent: s.ua}),
		HeadersParam: headersParam,
	}
}

// Preview describes out without contacting the upstream.
func (s *ProxyService) Preview(out *model.Outbound) ProxyPreview {
	return ProxyPreview{
		Dest:    out.URL,
		Method:  http.MethodGet,
		Headers: out.Header.Pairs(redactedHeaders...),
	}
}

// Forward fetches out and returns the upstream status, headers and body unchanged.
// The caller is responsible for closing the response body.
func (s *ProxyService) Forward(ctx context.Context, out *model.Outbound) (*model.ProxyResponse, error) {
	s.logger.Debug("forwarding request", "dest", out.URL)

	resp, err := s.client.Fetch(ctx, out.URL, out.Header.Header())
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	resp.Header = filterResponseHeaders(resp.Header)
	return resp, nil
}

func (s *ProxyService) buildDestination(path, rawQuery string) string {
	sub := path
	if sub == s.prefix || strings.HasPrefix(sub, s.prefix+"/") {
		sub = sub[len(s.prefix):]
	}
	if sub == "" {
		sub = "/"
	}

	dest := s.baseURL + sub
	if rawQuery != "" {
		dest += "?" + rawQuery
	}
	return dest
}

// filterResponseHeaders drops hop-by-hop headers from an upstream response.
func filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if headers.IsHopByHop(key) {
			continue
		}
		dst[key] = vals
	}
	return dst
}

func userAgent(cfg *config.Config) string {
	if cfg.Upstream.UserAgent != "" {
		return cfg.Upstream.UserAgent
	}
	return config.DefaultUserAgent
}
