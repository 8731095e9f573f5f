package service

import (
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// decodable lists the content-codings decodeReader understands.
var decodable = map[string]bool{
	"gzip":     true,
	"x-gzip":   true,
	"deflate":  true,
	"br":       true,
	"identity": true,
}

// restrictAcceptEncoding drops codings from an accept-encoding value that
// decodeReader cannot undo, keeping any q parameters. It returns "" when
// nothing usable is left.
func restrictAcceptEncoding(v string) string {
	var kept []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		coding, _, _ := strings.Cut(part, ";")
		if decodable[strings.ToLower(strings.TrimSpace(coding))] {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ", ")
}

// readPlaylist decodes a playlist body according to its Content-Encoding and
// reads it whole. A limit of 0 or less disables the size cap.
func readPlaylist(body io.Reader, encoding string, limit int64) ([]byte, error) {
	r, err := decodeReader(body, encoding)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return io.ReadAll(r)
	}

	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("playlist exceeds %d bytes", limit)
	}
	return out, nil
}

// decodeReader wraps body in a decompressor. The upstream only compresses
// when the caller forwarded accept-encoding, which disables the transport's
// transparent gzip handling.
func decodeReader(body io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return gr, nil
	case "deflate":
		zr, err := zlib.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("deflate: %w", err)
		}
		return zr, nil
	case "br", "brotli":
		return brotli.NewReader(body), nil
	default:
		return nil, fmt.Errorf("unsupported content-encoding: %s", encoding)
	}
}
