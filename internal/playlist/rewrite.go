// Package playlist rewrites HLS playlists so every media reference routes
// back through the proxy.
package playlist

import (
	"net/url"
	"strings"

	"hls-proxy-go/internal/target"
)

// Rewriter turns URI lines of an M3U8 body into proxied links.
//
// Directive lines are left alone, including URI="..." attributes inside
// #EXT-X-KEY and #EXT-X-MEDIA. Only standalone reference lines are rewritten.
type Rewriter struct {
	// Endpoint is the absolute URL of the proxy's playlist route,
	// e.g. https://proxy.example/m3u8proxy/m3u8-proxy.
	Endpoint string
	// HeadersParam is the caller's headers override, copied verbatim into
	// every generated link. Empty omits the parameter.
	HeadersParam string
}

// Rewrite processes body line by line against base and joins the result with "\n".
func (r *Rewriter) Rewrite(body string, base *url.URL) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = r.rewriteLine(strings.TrimSuffix(line, "\r"), base)
	}
	return strings.Join(lines, "\n")
}

func (r *Rewriter) rewriteLine(line string, base *url.URL) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return line
	}

	switch {
	case target.IsBlobLike(trimmed):
		// Undecodable blobs stay as-is; the player fails on them instead of looping.
		if decoded, ok := target.DecodeBlob(trimmed); ok {
			return r.ProxyURL(decoded)
		}
		return line
	case hasHTTPPrefix(trimmed):
		return r.ProxyURL(trimmed)
	case strings.HasPrefix(trimmed, "//"):
		return r.ProxyURL(base.Scheme + ":" + trimmed)
	case strings.HasPrefix(trimmed, "/"):
		return r.ProxyURL(base.Scheme + "://" + base.Host + trimmed)
	}

	ref, err := base.Parse(trimmed)
	if err != nil {
		return line
	}
	return r.ProxyURL(ref.String())
}

// ProxyURL builds the link players fetch instead of abs. The query keeps the
// url, headers, safe order downstream clients expect.
func (r *Rewriter) ProxyURL(abs string) string {
	var b strings.Builder
	b.Grow(len(r.Endpoint) + len(abs)*3/2 + len(r.HeadersParam)*3/2 + 24)
	b.WriteString(r.Endpoint)
	b.WriteString("?url=")
	b.WriteString(url.QueryEscape(abs))
	if r.HeadersParam != "" {
		b.WriteString("&headers=")
		b.WriteString(url.QueryEscape(r.HeadersParam))
	}
	b.WriteString("&safe=")
	return b.String()
}

func hasHTTPPrefix(s string) bool {
	lower := strings.ToLower(s[:min(len(s), len("https://"))])
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
