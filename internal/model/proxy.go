// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"hls-proxy-go/internal/headers"
)

// ProxyRequest represents an inbound request to be proxied.
type ProxyRequest struct {
	Ctx      context.Context
	Path     string
	RawQuery string
	Query    url.Values
	Header   http.Header
	// Origin is the proxy's own scheme://host as seen by the caller.
	Origin string
}

// Debug reports whether the caller asked for the introspection preview.
func (pr *ProxyRequest) Debug() bool {
	return pr.Query.Get("__debug") == "1"
}

// Outbound is a resolved upstream fetch that has not been sent yet.
type Outbound struct {
	URL    string
	Target *url.URL
	Header headers.Set
	// HeadersParam is the raw headers query value, carried into rewritten links.
	HeadersParam string
	// Origin is the base of rewritten playlist links. Unset for the generic proxy.
	Origin string
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	// Rewritten is set when Body holds a rewritten playlist.
	Rewritten bool
}
