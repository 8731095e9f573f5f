// Package headers builds the header set forwarded to upstream servers.
package headers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

// hopByHop lists headers meaningful only for a single connection. They are
// never forwarded in either direction.
var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"host":                true,
}

const (
	defaultAccept         = "*/*"
	defaultAcceptLanguage = "en-US,en;q=0.8"
)

// IsHopByHop reports whether name is a hop-by-hop header (case-insensitive).
func IsHopByHop(name string) bool {
	return hopByHop[strings.ToLower(name)]
}

// Options controls the defaults injected by Build.
type Options struct {
	// UserAgent is used when the incoming request has none.
	UserAgent string
	// AcceptLanguage enables the accept-language default.
	AcceptLanguage bool
}

// Set maps lowercase header names to a single value.
type Set map[string]string

// Build returns the headers to send upstream: incoming headers minus
// hop-by-hop ones, then defaults, then the JSON overrides. An override
// string that is not a JSON object is ignored.
func Build(in http.Header, overrides string, opts Options) Set {
	out := make(Set, len(in)+4)

	for key, vals := range in {
		lower := strings.ToLower(key)
		if hopByHop[lower] || len(vals) == 0 {
			continue
		}
		out[lower] = strings.Join(vals, ", ")
	}

	if _, ok := out["user-agent"]; !ok && opts.UserAgent != "" {
		out["user-agent"] = opts.UserAgent
	}
	if _, ok := out["accept"]; !ok {
		out["accept"] = defaultAccept
	}
	if opts.AcceptLanguage {
		if _, ok := out["accept-language"]; !ok {
			out["accept-language"] = defaultAcceptLanguage
		}
	}

	// Upstreams with hotlink protection check these.
	for _, name := range []string{"origin", "referer"} {
		if _, ok := out[name]; ok {
			continue
		}
		if v := in.Get(name); v != "" {
			out[name] = v
		}
	}

	if overrides != "" {
		out.merge(overrides)
	}
	return out
}

// merge applies a JSON object of overrides. Hop-by-hop names are dropped so
// the invariant holds even for caller-supplied values.
func (s Set) merge(raw string) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return
	}
	for k, v := range obj {
		lower := strings.ToLower(k)
		if hopByHop[lower] {
			continue
		}
		s[lower] = stringify(v)
	}
}

// stringify returns a JSON string's contents, or the raw JSON text of any other value.
func stringify(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(v))
}

// Header converts the set into an http.Header for an outbound request.
func (s Set) Header() http.Header {
	h := make(http.Header, len(s))
	for k, v := range s {
		h.Set(k, v)
	}
	return h
}

// Pairs returns the set as name/value pairs sorted by name, without the
// names listed in redact.
func (s Set) Pairs(redact ...string) [][2]string {
	skip := make(map[string]bool, len(redact))
	for _, r := range redact {
		skip[strings.ToLower(r)] = true
	}
	pairs := make([][2]string, 0, len(s))
	for k, v := range s {
		if skip[k] {
			continue
		}
		pairs = append(pairs, [2]string{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return pairs
}
