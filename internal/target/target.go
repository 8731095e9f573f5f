// Package target resolves caller-supplied upstream URLs.
package target

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrInvalidURL is returned when the value is not an absolute URL, even after one percent-decode.
	ErrInvalidURL = errors.New("invalid url")
	// ErrUnsupportedProtocol is returned for schemes other than http and https.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
)

// blobPrefix covers blob:https://..., blob:https:/?... and blob:https:/...
const blobPrefix = "blob:https:/"

// Resolve parses raw as an absolute URL. A value that does not parse is
// percent-decoded once and retried, which handles double-encoded links.
func Resolve(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)

	u, ok := parseAbsolute(raw)
	if !ok {
		decoded, err := url.PathUnescape(raw)
		if err != nil {
			return nil, ErrInvalidURL
		}
		if u, ok = parseAbsolute(strings.TrimSpace(decoded)); !ok {
			return nil, ErrInvalidURL
		}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrUnsupportedProtocol
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// parseAbsolute accepts URLs that carry a scheme; http(s) URLs also need a host.
func parseAbsolute(raw string) (*url.URL, bool) {
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return nil, false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return nil, false
	}
	return u, true
}

// IsBlobLike reports whether line is a blob:https: pseudo-URL (case-insensitive).
func IsBlobLike(line string) bool {
	return len(line) >= len(blobPrefix) && strings.EqualFold(line[:len(blobPrefix)], blobPrefix)
}

// DecodeBlob extracts the real URL carried in the v parameter of a
// blob:https: pseudo-URL. The value is either a percent-encoded URL or
// URL-safe base64 of one. It reports false when neither yields an http(s) URL.
func DecodeBlob(line string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(line))
	if err != nil {
		return "", false
	}
	q, err := url.ParseQuery(u.RawQuery)
	if err != nil && len(q) == 0 {
		return "", false
	}
	v := q.Get("v")
	if v == "" {
		return "", false
	}

	once, err := url.PathUnescape(v)
	if err != nil {
		return "", false
	}
	if isHTTP(once) {
		return once, true
	}

	// Form decoding turned any literal '+' into a space.
	b64 := strings.NewReplacer("-", "+", "_", "/", " ", "+").Replace(once)
	if n := len(b64) % 4; n != 0 {
		b64 += strings.Repeat("=", 4-n)
	}
	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", false
	}
	if s := string(decoded); isHTTP(s) {
		return s, true
	}
	return "", false
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
