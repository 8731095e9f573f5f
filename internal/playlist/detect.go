package playlist

import (
	"strings"

	"github.com/elnormous/contenttype"
)

// ContentType is the media type served for rewritten playlists.
const ContentType = "application/vnd.apple.mpegurl"

// hlsMediaTypes are the MIME types upstreams use for M3U8 playlists.
var hlsMediaTypes = map[string]bool{
	"application/vnd.apple.mpegurl": true,
	"application/x-mpegurl":         true,
	"audio/mpegurl":                 true,
	"audio/x-mpegurl":               true,
}

// IsPlaylist reports whether an upstream response is an HLS playlist, judged
// by its content type or, failing that, a .m3u8 path.
func IsPlaylist(contentType, path string) bool {
	if isHLSMediaType(contentType) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(path), ".m3u8")
}

func isHLSMediaType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, err := contenttype.ParseMediaType(contentType)
	if err == nil {
		return hlsMediaTypes[strings.ToLower(mt.Type+"/"+mt.Subtype)]
	}
	// Some CDNs send malformed parameters; fall back to a substring match.
	lower := strings.ToLower(contentType)
	for mime := range hlsMediaTypes {
		if strings.Contains(lower, mime) {
			return true
		}
	}
	return false
}
